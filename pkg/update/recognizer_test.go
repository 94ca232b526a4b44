package update

import (
	"errors"
	"testing"

	"github.com/iWorld-y/deep_research/pkg/model"
)

func profileJob() *model.ReportJob {
	return &model.ReportJob{
		Topic: "某公司",
		Outline: []*model.Section{
			{ID: "s1", Title: "公司概况", Description: "公司基本信息、成立背景", Content: "成立于 2015 年"},
			{ID: "s2", Title: "财务表现", Description: "收入、利润、增长率等关键财务数据", Content: "2024 年营收 10 亿元"},
			{ID: "s3", Title: "风险因素", Description: "经营、市场、合规等主要风险", Content: ""},
		},
	}
}

func TestRecognizeByTitleContainment(t *testing.T) {
	r := New()
	sec, seeds, err := r.Recognize(profileJob(), "更新财务表现章节，补充 2025 年数据")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if sec.ID != "s2" {
		t.Errorf("Recognize() section = %s, want s2", sec.ID)
	}
	if len(seeds) == 0 {
		t.Error("Recognize() seeds empty")
	}
	// 指令原文始终是第一条种子
	if seeds[0] != "更新财务表现章节，补充 2025 年数据" {
		t.Errorf("seeds[0] = %q", seeds[0])
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	r := New()
	_, _, err := r.Recognize(profileJob(), "xyzzy qwerty zzz")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Recognize() error = %v, want ErrNoMatch", err)
	}
}

func TestRecognizeEmptyInstruction(t *testing.T) {
	r := New()
	_, _, err := r.Recognize(profileJob(), "   ")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Recognize() error = %v, want ErrNoMatch", err)
	}
}

func TestRecognizeIsReadOnly(t *testing.T) {
	r := New()
	job := profileJob()
	before := *job.Outline[1]

	if _, _, err := r.Recognize(job, "财务表现"); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	after := *job.Outline[1]
	if before.Content != after.Content || before.Context != after.Context {
		t.Error("Recognize() mutated section state")
	}
	if len(before.History.Web) != len(after.History.Web) {
		t.Error("Recognize() mutated query history")
	}
}

func TestRecognizeTieBreaksByOutlineOrder(t *testing.T) {
	r := New()
	job := &model.ReportJob{
		Outline: []*model.Section{
			{ID: "a", Title: "竞争格局"},
			{ID: "b", Title: "竞争格局"},
		},
	}
	sec, _, err := r.Recognize(job, "竞争格局")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if sec.ID != "a" {
		t.Errorf("Recognize() section = %s, want first of tie", sec.ID)
	}
}

func TestSeedQueriesIncludeNovelTokens(t *testing.T) {
	sec := &model.Section{Title: "财务表现", Content: "2024 年营收 10 亿元"}
	seeds := seedQueries("补充 2025 年报数据", sec)

	if len(seeds) != 2 {
		t.Fatalf("seedQueries() = %v, want instruction + diff query", seeds)
	}
	if seeds[1] != "财务表现 补充 2025 年报数据" {
		t.Errorf("seeds[1] = %q", seeds[1])
	}
}
