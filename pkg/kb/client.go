package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client 知识库检索服务客户端
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient 创建知识库客户端
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  http.DefaultClient,
	}
}

// Reference 知识库命中的文档片段
type Reference struct {
	SourceURI string `json:"source_uri"`
	FileName  string `json:"file_name"`
	Page      int    `json:"page"`
	ChunkID   string `json:"chunk_id"`
	ChunkText string `json:"chunk_text"`
}

// Answer 知识库检索结果：回答文本与引用的文档片段
type Answer struct {
	AnswerText string      `json:"answer_text"`
	References []Reference `json:"references"`
}

type queryRequest struct {
	Query   string `json:"query"`
	ScopeID string `json:"scope_id"`
}

// Query 按查询词和作用域检索知识库
func (c *Client) Query(ctx context.Context, text, scopeID string) (*Answer, error) {
	payload, err := json.Marshal(queryRequest{Query: text, ScopeID: scopeID})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Add("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Add("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kb api error (status %d): %s", res.StatusCode, string(body))
	}

	var ans Answer
	if err := json.Unmarshal(body, &ans); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	return &ans, nil
}
