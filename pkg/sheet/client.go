package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client 表格检索服务客户端
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient 创建表格检索客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// Cell 表格命中的单元格
type Cell struct {
	FileName string `json:"file_name"`
	Sheet    string `json:"sheet"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Value    string `json:"value"`
}

type queryRequest struct {
	Query   string `json:"query"`
	ScopeID string `json:"scope_id"`
}

type queryResponse struct {
	Cells []Cell `json:"cells"`
}

// Query 按查询词和作用域检索表格数据
func (c *Client) Query(ctx context.Context, text, scopeID string) ([]Cell, error) {
	payload, err := json.Marshal(queryRequest{Query: text, ScopeID: scopeID})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
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
		return nil, fmt.Errorf("sheet api error (status %d): %s", res.StatusCode, string(body))
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	return qr.Cells, nil
}

// HasData 查询指定作用域下是否存在可检索的表格文件；
// 任务启动时调用一次，用于决定是否启用表格数据源
func (c *Client) HasData(ctx context.Context, scopeID string) (bool, error) {
	u := fmt.Sprintf("%s/files?scope_id=%s", c.baseURL, url.QueryEscape(scopeID))
	httpReq, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return false, fmt.Errorf("create request failed: %w", err)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return false, fmt.Errorf("sheet api error (status %d): %s", res.StatusCode, string(body))
	}

	var fr struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(res.Body).Decode(&fr); err != nil {
		return false, fmt.Errorf("decode response failed: %w", err)
	}

	return len(fr.Files) > 0, nil
}
