package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/pkg/compiler"
	"github.com/iWorld-y/deep_research/pkg/config"
	kbclient "github.com/iWorld-y/deep_research/pkg/kb"
	"github.com/iWorld-y/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/pkg/outline"
	"github.com/iWorld-y/deep_research/pkg/planner"
	"github.com/iWorld-y/deep_research/pkg/retrieval"
	"github.com/iWorld-y/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/pkg/search/factory"
	"github.com/iWorld-y/deep_research/pkg/sheet"
	"github.com/iWorld-y/deep_research/pkg/storage"
	"github.com/iWorld-y/deep_research/pkg/update"
)

// ErrEmptyTopic 全新任务缺少调研主题
var ErrEmptyTopic = errors.New("topic is required")

// ErrEmptyInstruction 更新任务缺少更新指令
var ErrEmptyInstruction = errors.New("instruction is required for update runs")

// Store 任务持久化协作方；可以为 nil（不落库，仅返回结果）
type Store interface {
	LoadJob(ctx context.Context, id string) (*model.ReportJob, error)
	SaveJob(ctx context.Context, job *model.ReportJob) error
}

// Engine 深度调研报告编排引擎
type Engine struct {
	cfg     *config.Config
	store   Store
	llm     *llm.Client
	web     search.Searcher
	kb      retrieval.KBSearcher
	sheet   retrieval.SheetSearcher
	outline *outline.Planner
	planner *planner.Planner
	rec     *update.Recognizer
}

// NewEngine 创建引擎实例：初始化 LLM、限流器与各数据源客户端
func NewEngine(cfg *config.Config, store Store) (*Engine, error) {
	ctx := context.Background()
	cfg.ApplyDefaults()

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, cfg.Concurrency.QPS)

	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	e := &Engine{
		cfg:   cfg,
		store: store,
		llm:   llm.New(chatModel, limiter),
		web:   searcher,
		rec:   update.New(),
	}
	if cfg.KB.BaseURL != "" {
		e.kb = kbclient.NewClient(cfg.KB.BaseURL, cfg.KB.APIKey)
	}
	if cfg.Sheet.BaseURL != "" {
		e.sheet = sheet.NewClient(cfg.Sheet.BaseURL)
	}
	e.outline = outline.New(e.llm)
	e.planner = planner.New(e.llm, cfg.Research.QueriesPerSource)

	return e, nil
}

// RunOptions 一次编排运行的入参
type RunOptions struct {
	JobID       string           // 非空表示针对已有报告
	Topic       string           // 调研主题（全新任务必填）
	Kind        model.ReportKind // 报告类型
	Instruction string           // 更新指令（更新任务必填）
	ScopeID     string           // 知识库/表格检索作用域
	Progress    func(stage string, percent int)
}

// runState 编排状态机状态
type runState int

const (
	stateCheckExists runState = iota
	stateGenOutline
	stateRecognizeSection
	stateInitSections
	stateGenUpdateQueries
	stateProcessSection
	stateCompileFinal
	stateEnd
)

// Run 执行一次编排：全新生成走大纲路径，更新走目标章节路径，
// 两条路径共享同一套章节处理机制。返回完整报告或明确的错误，
// 失败时不会留下半写入的持久化状态
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.ReportJob, error) {
	report := func(stage string, pct int) {
		if opts.Progress != nil {
			opts.Progress(stage, pct)
		}
	}

	var (
		job    *model.ReportJob
		target *model.Section
		seeds  []string
		specs  []model.SectionSpec
	)

	st := stateCheckExists
	for st != stateEnd {
		switch st {

		case stateCheckExists:
			loaded, err := e.loadExisting(ctx, opts)
			if err != nil {
				return nil, err
			}
			if loaded != nil {
				if strings.TrimSpace(opts.Instruction) == "" {
					return nil, ErrEmptyInstruction
				}
				job = loaded
				job.Mode = model.ModeUpdate
				if opts.ScopeID != "" {
					job.ScopeID = opts.ScopeID
				}
				// 数据源开关不落库，加载后按当前环境重新计算
				job.Sources = e.enabledSources(ctx, job.ScopeID)
				st = stateRecognizeSection
				break
			}
			if strings.TrimSpace(opts.Topic) == "" {
				return nil, ErrEmptyTopic
			}
			job = e.newJob(ctx, opts.Topic, opts.Kind, opts.ScopeID)
			st = stateGenOutline

		case stateGenOutline:
			report("planning outline", 5)
			outCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
			specs = e.outline.Plan(outCtx, job.Topic, job.Kind, e.priorContext(ctx, job))
			cancel()
			st = stateInitSections

		case stateRecognizeSection:
			sec, sd, err := e.rec.Recognize(job, opts.Instruction)
			if errors.Is(err, update.ErrNoMatch) {
				// 无匹配章节：退回全新生成，沿用原任务主题与类型
				logger.Log.Warnf("更新指令未命中任何章节，退回全新生成: %q", opts.Instruction)
				scope := opts.ScopeID
				if scope == "" {
					scope = job.ScopeID
				}
				fresh := e.newJob(ctx, job.Topic, job.Kind, scope)
				fresh.ID = job.ID
				job = fresh
				st = stateGenOutline
				break
			}
			if err != nil {
				return nil, err
			}
			job.TargetSectionID = sec.ID
			target = sec
			seeds = sd
			st = stateGenUpdateQueries

		case stateInitSections:
			job.Outline = make([]*model.Section, 0, len(specs))
			for _, sp := range specs {
				job.Outline = append(job.Outline, &model.Section{
					ID:          uuid.NewString(),
					Title:       sp.Title,
					Description: sp.Description,
				})
			}
			job.CurrentSection = 0
			st = stateProcessSection

		case stateGenUpdateQueries:
			// 种子查询来自指令与现有内容的差异，由识别阶段算好
			st = stateProcessSection

		case stateProcessSection:
			if job.Mode == model.ModeUpdate {
				report(fmt.Sprintf("updating section: %s", target.Title), 30)
				e.processSection(ctx, job, target, seeds)
				st = stateCompileFinal
				break
			}
			if job.CurrentSection >= len(job.Outline) {
				st = stateCompileFinal
				break
			}
			sec := job.Outline[job.CurrentSection]
			pct := 10 + job.CurrentSection*80/len(job.Outline)
			report(fmt.Sprintf("processing section: %s", sec.Title), pct)
			e.processSection(ctx, job, sec, nil)
			job.CurrentSection++

		case stateCompileFinal:
			report("compiling", 95)
			job.FinalReport = compiler.Compile(job.Outline)
			job.Compiled = true
			if e.store != nil {
				if err := e.store.SaveJob(ctx, job); err != nil {
					return nil, fmt.Errorf("保存报告失败: %w", err)
				}
			}
			st = stateEnd
		}
	}

	report("completed", 100)
	return job, nil
}

// loadExisting 加载待更新的任务；未指定 JobID 或任务不存在时返回 nil
func (e *Engine) loadExisting(ctx context.Context, opts RunOptions) (*model.ReportJob, error) {
	if opts.JobID == "" || e.store == nil {
		return nil, nil
	}
	job, err := e.store.LoadJob(ctx, opts.JobID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Log.Warnf("任务 [%s] 不存在，按全新任务处理", opts.JobID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("加载任务失败: %w", err)
	}
	return job, nil
}

// newJob 创建全新任务骨架，数据源开关在此一次性确定
func (e *Engine) newJob(ctx context.Context, topic string, kind model.ReportKind, scopeID string) *model.ReportJob {
	if kind == "" {
		kind = model.KindCompanyProfile
	}
	return &model.ReportJob{
		ID:        uuid.NewString(),
		Topic:     topic,
		Kind:      kind,
		Mode:      model.ModeFresh,
		ScopeID:   scopeID,
		Sources:   e.enabledSources(ctx, scopeID),
		CreatedAt: time.Now(),
	}
}

// enabledSources 任务启动时计算一次数据源开关；
// 表格源只有在作用域下确实存在表格文件时才启用
func (e *Engine) enabledSources(ctx context.Context, scopeID string) model.EnabledSources {
	src := model.EnabledSources{
		WebSearch:     e.web != nil,
		KnowledgeBase: e.kb != nil,
	}
	if e.sheet != nil {
		has, err := e.sheet.HasData(ctx, scopeID)
		if err != nil {
			logger.Log.Warnf("表格文件探测失败，本次任务不启用表格源: %v", err)
		}
		src.Spreadsheet = has
	}
	logger.Log.Infof("数据源开关: web=%v kb=%v sheet=%v", src.WebSearch, src.KnowledgeBase, src.Spreadsheet)
	return src
}

// priorContext 自适应大纲的输入：知识库可用时用主题做一次预检索
func (e *Engine) priorContext(ctx context.Context, job *model.ReportJob) string {
	if !job.Sources.KnowledgeBase || e.kb == nil {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
	defer cancel()
	ans, err := e.kb.Query(callCtx, job.Topic, job.ScopeID)
	if err != nil {
		logger.Log.Warnf("知识库预检索失败，使用固定大纲: %v", err)
		return ""
	}
	return ans.AnswerText
}

func (e *Engine) callTimeout() time.Duration {
	return time.Duration(e.cfg.Research.CallTimeout) * time.Second
}
