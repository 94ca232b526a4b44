package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/pkg/retrieval"
)

// Planner 章节查询计划器：根据章节与历史产出每个启用数据源的查询列表
type Planner struct {
	llm              *llm.Client
	queriesPerSource int
}

// New 创建计划器；queriesPerSource 为单数据源单次计划查询上限
func New(c *llm.Client, queriesPerSource int) *Planner {
	if queriesPerSource <= 0 || queriesPerSource > 5 {
		queriesPerSource = 5
	}
	return &Planner{llm: c, queriesPerSource: queriesPerSource}
}

// 兜底查询后缀：LLM 不可用或产出不可解析时保证流水线不会断粮
var fallbackSuffix = map[citation.Kind]string{
	citation.KindWeb:   "最新进展",
	citation.KindKB:    "相关资料",
	citation.KindExcel: "数据指标",
}

type queryProposal struct {
	Web   []string `json:"web"`
	KB    []string `json:"kb"`
	Excel []string `json:"excel"`
}

// Plan 产出一次迭代的检索计划。seed 非空时（更新模式首轮）直接使用种子
// 查询；否则调用 LLM 结构化生成，失败则退回确定性模板。产出的查询与该
// 章节历史上发出过的任何查询都不重复（忽略大小写与空白差异），且绝不
// 会路由到未启用的数据源
func (p *Planner) Plan(ctx context.Context, sec *model.Section, topic string, enabled model.EnabledSources, seed []string) retrieval.Plan {
	proposal := p.propose(ctx, sec, topic, enabled, seed)

	var plan retrieval.Plan
	if enabled.WebSearch {
		plan.Web = p.accept(sec, citation.KindWeb, proposal.Web)
	}
	if enabled.KnowledgeBase {
		plan.KB = p.accept(sec, citation.KindKB, proposal.KB)
	}
	if enabled.Spreadsheet {
		plan.Sheet = p.accept(sec, citation.KindExcel, proposal.Excel)
	}
	return plan
}

// propose 生成候选查询：种子优先，其次 LLM，最后确定性模板
func (p *Planner) propose(ctx context.Context, sec *model.Section, topic string, enabled model.EnabledSources, seed []string) queryProposal {
	if len(seed) > 0 {
		return queryProposal{Web: seed, KB: seed, Excel: seed}
	}

	if p.llm != nil {
		var proposal queryProposal
		user := p.buildPrompt(sec, topic, enabled)
		if err := p.llm.GenerateJSON(ctx, "你是一个资深研究助理，负责规划检索查询。", user, &proposal); err != nil {
			logger.Log.Warnf("章节 [%s] 查询生成失败，使用模板兜底: %v", sec.Title, err)
		} else if len(proposal.Web)+len(proposal.KB)+len(proposal.Excel) > 0 {
			return proposal
		}
	}

	// 确定性模板兜底：<标题> + 数据源后缀
	return queryProposal{
		Web:   []string{fmt.Sprintf("%s %s %s", topic, sec.Title, fallbackSuffix[citation.KindWeb])},
		KB:    []string{fmt.Sprintf("%s %s", sec.Title, fallbackSuffix[citation.KindKB])},
		Excel: []string{fmt.Sprintf("%s %s", sec.Title, fallbackSuffix[citation.KindExcel])},
	}
}

func (p *Planner) buildPrompt(sec *model.Section, topic string, enabled model.EnabledSources) string {
	var sources []string
	if enabled.WebSearch {
		sources = append(sources, `"web": 开放网页搜索`)
	}
	if enabled.KnowledgeBase {
		sources = append(sources, `"kb": 内部知识库检索`)
	}
	if enabled.Spreadsheet {
		sources = append(sources, `"excel": 表格数据检索`)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "调研主题：%s\n章节标题：%s\n章节说明：%s\n", topic, sec.Title, sec.Description)
	if sec.Context != "" {
		ctxText := retrieval.ClampTail(sec.Context, 2000)
		fmt.Fprintf(&sb, "\n已有素材（续写查询时避免重复覆盖的方向）：\n%s\n", ctxText)
	}
	if issued := append(append(append([]string{}, sec.History.Web...), sec.History.KB...), sec.History.Sheet...); len(issued) > 0 {
		fmt.Fprintf(&sb, "\n已发出过的查询（不要重复）：\n- %s\n", strings.Join(issued, "\n- "))
	}
	fmt.Fprintf(&sb, `
可用数据源：%s
请为每个可用数据源生成最多 %d 条检索查询，按以下 JSON 格式返回：
{"web": ["..."], "kb": ["..."], "excel": ["..."]}`, strings.Join(sources, "，"), p.queriesPerSource)

	return sb.String()
}

// accept 过滤候选查询：去空、与历史查询去重、限制数量，并写入历史
func (p *Planner) accept(sec *model.Section, kind citation.Kind, candidates []string) []string {
	issued := make(map[string]struct{})
	for _, old := range sec.History.For(kind) {
		issued[Normalize(old)] = struct{}{}
	}

	var accepted []string
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		norm := Normalize(q)
		if _, dup := issued[norm]; dup {
			continue
		}
		issued[norm] = struct{}{}
		accepted = append(accepted, q)
		sec.History.Append(kind, q)
		if len(accepted) >= p.queriesPerSource {
			break
		}
	}
	return accepted
}

// Normalize 查询比较口径：小写化并压缩空白
func Normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
