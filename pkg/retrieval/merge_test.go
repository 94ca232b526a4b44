package retrieval

import (
	"strings"
	"testing"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/model"
)

func TestMergeFixedSourceOrder(t *testing.T) {
	sec := &model.Section{Title: "财务表现"}
	// 结果故意乱序传入，合并后素材顺序必须是 表格 → 网页 → 知识库
	results := []*Result{
		{Source: citation.KindKB, Context: "KB素材"},
		{Source: citation.KindWeb, Context: "WEB素材"},
		{Source: citation.KindExcel, Context: "表格素材"},
	}

	Merge(sec, results)

	iExcel := strings.Index(sec.Context, "表格素材")
	iWeb := strings.Index(sec.Context, "WEB素材")
	iKB := strings.Index(sec.Context, "KB素材")
	if iExcel < 0 || iWeb < 0 || iKB < 0 {
		t.Fatalf("Merge() context missing parts: %q", sec.Context)
	}
	if !(iExcel < iWeb && iWeb < iKB) {
		t.Errorf("Merge() order = excel@%d web@%d kb@%d, want excel < web < kb", iExcel, iWeb, iKB)
	}
}

func TestMergePreservesExistingContext(t *testing.T) {
	sec := &model.Section{Context: "已有素材"}
	Merge(sec, []*Result{{Source: citation.KindWeb, Context: "新素材"}})

	if !strings.HasPrefix(sec.Context, "已有素材") {
		t.Errorf("Merge() context = %q, want existing part first", sec.Context)
	}
	if !strings.Contains(sec.Context, "新素材") {
		t.Errorf("Merge() context = %q, missing new part", sec.Context)
	}
}

func TestMergeDedupAcrossIterations(t *testing.T) {
	sec := &model.Section{}
	web := citation.WebCitation{Title: "官网", URL: "https://example.com", Snippet: "a"}
	kb := citation.KBCitation{FileName: "年报.pdf", Page: 3}

	Merge(sec, []*Result{
		{Source: citation.KindWeb, Citations: []citation.Citation{web}},
		{Source: citation.KindKB, Citations: []citation.Citation{kb}},
	})
	if len(sec.Citations) != 2 {
		t.Fatalf("first Merge() citations = %d, want 2", len(sec.Citations))
	}

	// 第二轮出现相同身份键（内容不同），不得新增
	dup := citation.WebCitation{Title: "官网", URL: "https://example.com", Snippet: "b"}
	Merge(sec, []*Result{{Source: citation.KindWeb, Citations: []citation.Citation{dup}}})
	if len(sec.Citations) != 2 {
		t.Errorf("second Merge() citations = %d, want 2 (duplicate key rejected)", len(sec.Citations))
	}
	// 保留的是首次出现的实例
	if got := sec.Citations[0].(citation.WebCitation).Snippet; got != "a" {
		t.Errorf("kept snippet = %q, want first-seen %q", got, "a")
	}
}

func TestMergeDedupWithinBatch(t *testing.T) {
	sec := &model.Section{}
	c := citation.ExcelCitation{FileName: "f.xlsx", Sheet: "s", Row: 1, Col: 1, Value: "x"}

	Merge(sec, []*Result{
		{Source: citation.KindExcel, Citations: []citation.Citation{c, c}},
	})
	if len(sec.Citations) != 1 {
		t.Errorf("Merge() citations = %d, want 1", len(sec.Citations))
	}
}
