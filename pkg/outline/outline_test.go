package outline

import (
	"context"
	"fmt"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/pkg/model"
)

type fakeGenerator struct {
	reply string
}

func (f *fakeGenerator) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.reply == "" {
		return nil, fmt.Errorf("llm unavailable")
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func newTestLLM(reply string) *llm.Client {
	return llm.New(&fakeGenerator{reply: reply}, rate.NewLimiter(rate.Inf, 1))
}

func TestFixedNeverEmpty(t *testing.T) {
	kinds := []model.ReportKind{
		model.KindCompanyProfile,
		model.KindFinancialStatement,
		model.KindMarketSizing,
		model.ReportKind("unknown"),
	}
	for _, k := range kinds {
		specs := Fixed(k)
		if len(specs) == 0 {
			t.Errorf("Fixed(%s) empty", k)
		}
		for _, s := range specs {
			if s.Title == "" {
				t.Errorf("Fixed(%s) has section without title", k)
			}
		}
	}
}

func TestFixedReturnsCopy(t *testing.T) {
	a := Fixed(model.KindCompanyProfile)
	a[0].Title = "篡改"
	b := Fixed(model.KindCompanyProfile)
	if b[0].Title == "篡改" {
		t.Error("Fixed() shares backing array with caller")
	}
}

func TestPlanWithoutContextUsesFixed(t *testing.T) {
	p := New(newTestLLM(`{"sections":[{"title":"不该出现"}]}`))
	specs := p.Plan(context.Background(), "某公司", model.KindCompanyProfile, "")
	if specs[0].Title != "公司概况" {
		t.Errorf("Plan() first = %q, want fixed outline", specs[0].Title)
	}
}

func TestPlanAdaptive(t *testing.T) {
	p := New(newTestLLM(`{"sections":[{"title":"产品矩阵","description":"d"},{"title":"","description":"空标题被过滤"},{"title":"出海进展","description":"d"}]}`))
	specs := p.Plan(context.Background(), "某公司", model.KindCompanyProfile, "已有文档内容")
	if len(specs) != 2 || specs[0].Title != "产品矩阵" || specs[1].Title != "出海进展" {
		t.Errorf("Plan() = %+v", specs)
	}
}

func TestPlanFallsBackOnLLMError(t *testing.T) {
	p := New(newTestLLM("")) // 持续失败
	specs := p.Plan(context.Background(), "某公司", model.KindFinancialStatement, "已有文档内容")
	if len(specs) == 0 || specs[0].Title != "收入分析" {
		t.Errorf("Plan() = %+v, want fixed financial outline", specs)
	}
}

func TestPlanFallsBackOnEmptyProposal(t *testing.T) {
	p := New(newTestLLM(`{"sections":[]}`))
	specs := p.Plan(context.Background(), "市场", model.KindMarketSizing, "已有文档内容")
	if len(specs) == 0 || specs[0].Title != "市场定义" {
		t.Errorf("Plan() = %+v, want fixed market outline", specs)
	}
}
