package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/logger"
)

// FanOut 单章节检索扇出：每个启用且有查询的数据源一个并发任务，
// 任务内部串行下发查询，任务之间互不影响；全部落定后统一返回
type FanOut struct {
	Adapters      *Adapters
	CallTimeout   time.Duration
	WebRetries    int
	WebRetryDelay time.Duration
}

// Plan 一次迭代中按数据源分组的查询列表
type Plan struct {
	Web   []string
	KB    []string
	Sheet []string
}

// Empty 计划中是否不含任何查询
func (p Plan) Empty() bool {
	return len(p.Web) == 0 && len(p.KB) == 0 && len(p.Sheet) == 0
}

// Run 并发执行检索计划。单个数据源失败只记录日志并产出该源的空结果，
// 绝不中断其它数据源；返回前等待所有任务落定（合并阶段不会看到半成品）
func (f *FanOut) Run(ctx context.Context, plan Plan) []*Result {
	type task struct {
		kind    citation.Kind
		queries []string
		run     func(context.Context, string) (*Result, error)
	}

	var tasks []task
	if len(plan.Web) > 0 && f.Adapters.Web != nil {
		tasks = append(tasks, task{citation.KindWeb, plan.Web, f.searchWebRetry})
	}
	if len(plan.KB) > 0 && f.Adapters.KB != nil {
		tasks = append(tasks, task{citation.KindKB, plan.KB, f.withTimeout(f.Adapters.SearchKB)})
	}
	if len(plan.Sheet) > 0 && f.Adapters.Sheet != nil {
		tasks = append(tasks, task{citation.KindExcel, plan.Sheet, f.withTimeout(f.Adapters.SearchSheet)})
	}

	results := make([]*Result, 0, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			res := f.runSource(ctx, t.kind, t.queries, t.run)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	return results
}

// runSource 串行执行一个数据源的全部查询并聚合；查询级失败跳过该查询
func (f *FanOut) runSource(ctx context.Context, kind citation.Kind, queries []string, run func(context.Context, string) (*Result, error)) *Result {
	agg := &Result{Source: kind}
	var parts []string

	for _, q := range queries {
		res, err := run(ctx, q)
		if err != nil {
			logger.Log.Errorf("数据源 [%s] 查询失败: %v", kind, err)
			continue
		}
		if res.Context != "" {
			parts = append(parts, res.Context)
		}
		agg.Citations = append(agg.Citations, res.Citations...)
	}

	agg.Context = strings.Join(parts, "\n\n")
	return agg
}

// withTimeout 给单次外部调用套上超时上限，避免单个挂起的数据源拖死整个任务
func (f *FanOut) withTimeout(fn func(context.Context, string) (*Result, error)) func(context.Context, string) (*Result, error) {
	return func(ctx context.Context, q string) (*Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, f.CallTimeout)
		defer cancel()
		return fn(callCtx, q)
	}
}

// searchWebRetry 网页搜索瞬时故障重试：固定间隔，每次尝试单独计超时，
// 重试耗尽后视为该查询失败
func (f *FanOut) searchWebRetry(ctx context.Context, query string) (*Result, error) {
	var lastErr error
	attempts := f.WebRetries
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		res, err := f.withTimeout(f.Adapters.SearchWeb)(ctx, query)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if i < attempts-1 {
			logger.Log.Warnf("网页搜索失败，准备重试 (%d/%d): %v", i+1, attempts, err)
			select {
			case <-time.After(f.WebRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}
