package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// fakeGenerator 按预设序列返回回复或错误
type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &schema.Message{Role: schema.Assistant, Content: reply}, nil
}

func newTestClient(g Generator) *Client {
	c := New(g, rate.NewLimiter(rate.Inf, 1))
	c.baseDelay = time.Millisecond
	return c
}

func TestGenerateText(t *testing.T) {
	g := &fakeGenerator{replies: []string{"  本章内容  "}}
	c := newTestClient(g)

	got, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "本章内容" {
		t.Errorf("GenerateText() = %q", got)
	}
}

func TestGenerateTextRetriesOnRateLimit(t *testing.T) {
	g := &fakeGenerator{
		errs:    []error{errors.New("429 Too Many Requests"), nil},
		replies: []string{"", "ok"},
	}
	c := newTestClient(g)

	got, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "ok" || g.calls != 2 {
		t.Errorf("GenerateText() = %q after %d calls, want ok after 2", got, g.calls)
	}
}

func TestGenerateTextNonRetryableError(t *testing.T) {
	g := &fakeGenerator{errs: []error{errors.New("invalid api key")}}
	c := newTestClient(g)

	if _, err := c.GenerateText(context.Background(), "sys", "user"); err == nil {
		t.Error("GenerateText() error = nil, want immediate failure")
	}
	if g.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-429)", g.calls)
	}
}

func TestGenerateJSONStripsFences(t *testing.T) {
	g := &fakeGenerator{replies: []string{"```json\n{\"name\":\"测试\"}\n```"}}
	c := newTestClient(g)

	var out struct {
		Name string `json:"name"`
	}
	if err := c.GenerateJSON(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if out.Name != "测试" {
		t.Errorf("GenerateJSON() name = %q", out.Name)
	}
}

func TestGenerateJSONRetriesOnBadPayload(t *testing.T) {
	g := &fakeGenerator{replies: []string{"这不是 JSON", `{"name":"ok"}`}}
	c := newTestClient(g)

	var out struct {
		Name string `json:"name"`
	}
	if err := c.GenerateJSON(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if out.Name != "ok" || g.calls != 2 {
		t.Errorf("GenerateJSON() name = %q after %d calls", out.Name, g.calls)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{}\n```": "{}",
		"```\n{}\n```":     "{}",
		"{}":               "{}",
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
