package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/pkg/logger"
)

// Generator 收窄的对话模型接口，eino 的 model.ChatModel 天然满足
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client 带限流与重试的 LLM 调用封装
type Client struct {
	cm        Generator
	limiter   *rate.Limiter
	retries   int
	baseDelay time.Duration
}

// New 创建 LLM 客户端
func New(cm Generator, limiter *rate.Limiter) *Client {
	return &Client{
		cm:        cm,
		limiter:   limiter,
		retries:   3,
		baseDelay: 2 * time.Second,
	}
}

// GenerateText 自由文本生成，用于章节合成
func (c *Client) GenerateText(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for i := 0; i <= c.retries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: system},
			{Role: schema.User, Content: user},
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			if isRateLimited(err) && i < c.retries {
				lastErr = err
				time.Sleep(c.baseDelay * time.Duration(1<<i))
				continue
			}
			return "", err
		}

		text := strings.TrimSpace(resp.Content)
		if text == "" {
			lastErr = fmt.Errorf("empty completion")
			if i < c.retries {
				continue
			}
			return "", lastErr
		}
		return text, nil
	}
	return "", lastErr
}

// GenerateJSON 结构化生成：要求模型只输出 JSON 并解析到 out
func (c *Client) GenerateJSON(ctx context.Context, system, user string, out any) error {
	var lastErr error

	for i := 0; i <= c.retries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: system + "\n你是一个 JSON 生成器。请只输出 JSON 字符串，不要包含任何 markdown 标记。"},
			{Role: schema.User, Content: user},
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			if isRateLimited(err) && i < c.retries {
				lastErr = err
				time.Sleep(c.baseDelay * time.Duration(1<<i))
				continue
			}
			return err
		}

		clean := stripFences(resp.Content)
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			lastErr = fmt.Errorf("json unmarshal: %w", err)
			logger.Log.Warnf("LLM 返回的内容无法解析为 JSON (第 %d 次): %v", i+1, err)
			if i < c.retries {
				continue
			}
			return lastErr
		}
		return nil
	}
	return lastErr
}

// stripFences 去掉模型经常附带的 markdown 代码围栏
func stripFences(s string) string {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}
