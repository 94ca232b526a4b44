package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/pkg/retrieval"
)

// sectionPhase 单章节小状态机的阶段
type sectionPhase int

const (
	phasePlanning sectionPhase = iota
	phaseRetrieving
	phaseMerging
	phaseSynthesizing
	phaseDone
)

// 合成输入的素材截断上限；超长素材保留靠后的新内容
const contextBudget = 12000

// processSection 章节迭代控制器：计划 → 检索 → 合并 → 合成，
// 循环配置的迭代次数。第 k 轮的查询基于前 k-1 轮累积的素材与历史，
// 这是它区别于一次平铺搜索的关键。任何单点失败都降级处理，
// 章节总能到达完成态
func (e *Engine) processSection(ctx context.Context, job *model.ReportJob, sec *model.Section, seeds []string) {
	fanout := e.newFanOut(job)

	iterations := e.cfg.Research.SectionIterations
	completed := 0
	ph := phasePlanning

	var plan retrieval.Plan
	var results []*retrieval.Result

	for ph != phaseDone {
		switch ph {

		case phasePlanning:
			seed := seeds
			if completed > 0 {
				seed = nil // 种子只用于首轮，后续轮次回到正常计划
			}
			planCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
			plan = e.planner.Plan(planCtx, sec, job.Topic, job.Sources, seed)
			cancel()
			ph = phaseRetrieving

		case phaseRetrieving:
			if plan.Empty() {
				logger.Log.Warnf("章节 [%s] 第 %d 轮没有可用查询", sec.Title, completed+1)
				results = nil
			} else {
				results = fanout.Run(ctx, plan)
			}
			ph = phaseMerging

		case phaseMerging:
			retrieval.Merge(sec, results)
			ph = phaseSynthesizing

		case phaseSynthesizing:
			e.synthesize(ctx, job, sec)
			completed++
			if completed < iterations {
				ph = phasePlanning
			} else {
				ph = phaseDone
			}
		}
	}

	sec.Done = true
	logger.Log.Infof("章节 [%s] 完成 (%d 轮迭代, %d 条引用)", sec.Title, completed, len(sec.Citations))
}

// newFanOut 按任务作用域组装检索扇出
func (e *Engine) newFanOut(job *model.ReportJob) *retrieval.FanOut {
	return &retrieval.FanOut{
		Adapters: &retrieval.Adapters{
			Web:       e.web,
			KB:        e.kb,
			Sheet:     e.sheet,
			ScopeID:   job.ScopeID,
			FetchBody: true,
		},
		CallTimeout:   e.callTimeout(),
		WebRetries:    e.cfg.Research.WebRetries,
		WebRetryDelay: time.Duration(e.cfg.Research.WebRetryDelay) * time.Second,
	}
}

// synthesize 章节合成：成功则整体覆盖 Content；失败保留既有内容，
// 合成故障只会让本轮白跑，不会毁掉之前轮次的成果
func (e *Engine) synthesize(ctx context.Context, job *model.ReportJob, sec *model.Section) {
	material := sec.Context
	if material == "" {
		logger.Log.Warnf("章节 [%s] 没有检索素材，跳过本轮合成", sec.Title)
		return
	}
	material = retrieval.ClampTail(material, contextBudget)

	var sb strings.Builder
	fmt.Fprintf(&sb, "调研主题：%s\n章节标题：%s\n章节说明：%s\n\n", job.Topic, sec.Title, sec.Description)
	if sec.Content != "" {
		fmt.Fprintf(&sb, "该章节已有的初稿（请在其基础上改进而非重复）：\n%s\n\n", sec.Content)
	}
	fmt.Fprintf(&sb, "检索素材：\n%s\n\n", material)
	sb.WriteString("请基于以上素材撰写该章节正文（Markdown 格式，300-600 字），只输出正文，不要输出标题。")

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
	defer cancel()

	text, err := e.llm.GenerateText(callCtx, "你是一个资深行业分析师，擅长撰写结构化调研报告。", sb.String())
	if err != nil {
		logger.Log.Errorf("章节 [%s] 合成失败，保留既有内容: %v", sec.Title, err)
		return
	}
	sec.Content = text
}
