package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/kb"
	"github.com/iWorld-y/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/pkg/sheet"
)

// mockSearcher 模拟网页搜索
type mockSearcher struct {
	failures int // 前 N 次调用返回错误
	calls    int
}

func (m *mockSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("upstream unavailable")
	}
	return &search.Response{Results: []search.Result{
		{Title: "结果-" + req.Query, URL: "https://example.com/" + req.Query, Content: strings.Repeat("长文本", 200)},
	}}, nil
}

// mockKB 模拟知识库
type mockKB struct {
	err error
}

func (m *mockKB) Query(ctx context.Context, text, scopeID string) (*kb.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &kb.Answer{
		AnswerText: "知识库回答: " + text,
		References: []kb.Reference{{FileName: "年报.pdf", Page: 1, ChunkText: "片段"}},
	}, nil
}

// mockSheet 模拟表格服务
type mockSheet struct{}

func (m *mockSheet) Query(ctx context.Context, text, scopeID string) ([]sheet.Cell, error) {
	return []sheet.Cell{{FileName: "财务.xlsx", Sheet: "Q1", Row: 1, Col: 2, Value: "100"}}, nil
}

func (m *mockSheet) HasData(ctx context.Context, scopeID string) (bool, error) {
	return true, nil
}

func newTestFanOut(a *Adapters) *FanOut {
	return &FanOut{
		Adapters:      a,
		CallTimeout:   5 * time.Second,
		WebRetries:    3,
		WebRetryDelay: time.Millisecond,
	}
}

func TestFanOutAllSources(t *testing.T) {
	f := newTestFanOut(&Adapters{
		Web:   &mockSearcher{},
		KB:    &mockKB{},
		Sheet: &mockSheet{},
	})

	results := f.Run(context.Background(), Plan{
		Web:   []string{"q1"},
		KB:    []string{"q2"},
		Sheet: []string{"q3"},
	})

	if len(results) != 3 {
		t.Fatalf("Run() results = %d, want 3", len(results))
	}
	got := map[citation.Kind]bool{}
	for _, r := range results {
		got[r.Source] = true
		if len(r.Citations) == 0 {
			t.Errorf("source [%s] returned no citations", r.Source)
		}
	}
	for _, k := range []citation.Kind{citation.KindWeb, citation.KindKB, citation.KindExcel} {
		if !got[k] {
			t.Errorf("missing result for source [%s]", k)
		}
	}
}

func TestFanOutSourceFailureIsolated(t *testing.T) {
	// 知识库持续失败，网页与表格不受影响
	f := newTestFanOut(&Adapters{
		Web:   &mockSearcher{},
		KB:    &mockKB{err: errors.New("kb down")},
		Sheet: &mockSheet{},
	})

	results := f.Run(context.Background(), Plan{
		Web:   []string{"q1"},
		KB:    []string{"q2"},
		Sheet: []string{"q3"},
	})

	if len(results) != 3 {
		t.Fatalf("Run() results = %d, want 3 (failed source yields empty result)", len(results))
	}
	for _, r := range results {
		if r.Source == citation.KindKB {
			if r.Context != "" || len(r.Citations) != 0 {
				t.Errorf("failed kb source should be empty, got context=%q citations=%d", r.Context, len(r.Citations))
			}
		} else if len(r.Citations) == 0 {
			t.Errorf("healthy source [%s] returned no citations", r.Source)
		}
	}
}

func TestFanOutSkipsUnplannedAndNilSources(t *testing.T) {
	f := newTestFanOut(&Adapters{
		Web: &mockSearcher{},
		KB:  &mockKB{},
		// Sheet 未配置
	})

	results := f.Run(context.Background(), Plan{
		Web:   []string{"q1"},
		Sheet: []string{"q3"}, // 有查询但无适配器
	})

	if len(results) != 1 {
		t.Fatalf("Run() results = %d, want 1", len(results))
	}
	if results[0].Source != citation.KindWeb {
		t.Errorf("Run() source = %v, want web", results[0].Source)
	}
}

func TestWebRetryRecovers(t *testing.T) {
	// 前两次失败，第三次成功
	ms := &mockSearcher{failures: 2}
	f := newTestFanOut(&Adapters{Web: ms})

	results := f.Run(context.Background(), Plan{Web: []string{"q1"}})

	if len(results) != 1 || len(results[0].Citations) == 0 {
		t.Fatalf("Run() = %+v, want recovered web result", results)
	}
	if ms.calls != 3 {
		t.Errorf("searcher calls = %d, want 3", ms.calls)
	}
}

func TestWebRetryExhausted(t *testing.T) {
	ms := &mockSearcher{failures: 10}
	f := newTestFanOut(&Adapters{Web: ms})

	results := f.Run(context.Background(), Plan{Web: []string{"q1"}})

	if len(results) != 1 {
		t.Fatalf("Run() results = %d, want 1", len(results))
	}
	if len(results[0].Citations) != 0 {
		t.Errorf("exhausted web source should be empty, got %d citations", len(results[0].Citations))
	}
	if ms.calls != 3 {
		t.Errorf("searcher calls = %d, want 3 (retry budget)", ms.calls)
	}
}

func TestPlanEmpty(t *testing.T) {
	if !(Plan{}).Empty() {
		t.Error("empty plan reported non-empty")
	}
	if (Plan{KB: []string{"q"}}).Empty() {
		t.Error("non-empty plan reported empty")
	}
}
