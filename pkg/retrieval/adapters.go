package retrieval

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/kb"
	"github.com/iWorld-y/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/pkg/sheet"
)

// Result 单次检索产物：下一步立即被合并消费，不做持久化
type Result struct {
	Source    citation.Kind
	Context   string
	Citations []citation.Citation
}

// KBSearcher 知识库检索能力
type KBSearcher interface {
	Query(ctx context.Context, text, scopeID string) (*kb.Answer, error)
}

// SheetSearcher 表格检索能力
type SheetSearcher interface {
	Query(ctx context.Context, text, scopeID string) ([]sheet.Cell, error)
	HasData(ctx context.Context, scopeID string) (bool, error)
}

// Adapters 三类数据源各自的查询适配器
type Adapters struct {
	Web       search.Searcher
	KB        KBSearcher
	Sheet     SheetSearcher
	ScopeID   string
	FetchBody bool // 网页摘要过短时是否抓取正文
}

const (
	webMaxResults    = 5
	snippetMinLen    = 500
	contentMaxLen    = 2000
	fetchTimeout     = 15 * time.Second
	maxCellsPerQuery = 50
)

// SearchWeb 网页检索：一条查询换一份 (素材, 引用) 结果
func (a *Adapters) SearchWeb(ctx context.Context, query string) (*Result, error) {
	resp, err := a.Web.Search(ctx, &search.Request{
		Query:      query,
		Topic:      "general",
		MaxResults: webMaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("web search [%s]: %w", query, err)
	}

	var sb strings.Builder
	var cites []citation.Citation
	for _, item := range resp.Results {
		content := item.Content
		// 摘要太短时尝试抓取正文
		if a.FetchBody && len(content) < snippetMinLen {
			if fetched, err := fetchAndCleanContent(item.URL); err == nil && len(fetched) > len(content) {
				content = fetched
			}
		}
		content = ClampHead(content, contentMaxLen)
		if content == "" {
			continue
		}

		fmt.Fprintf(&sb, "标题: %s\n链接: %s\n内容: %s\n\n", item.Title, item.URL, content)
		cites = append(cites, citation.WebCitation{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: item.Content,
		})
	}

	return &Result{Source: citation.KindWeb, Context: sb.String(), Citations: cites}, nil
}

// SearchKB 知识库检索
func (a *Adapters) SearchKB(ctx context.Context, query string) (*Result, error) {
	ans, err := a.KB.Query(ctx, query, a.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("kb search [%s]: %w", query, err)
	}

	var cites []citation.Citation
	for _, ref := range ans.References {
		name := ref.FileName
		if name == "" {
			name = path.Base(ref.SourceURI)
		}
		cites = append(cites, citation.KBCitation{
			FileName:  name,
			Page:      ref.Page,
			ChunkText: ref.ChunkText,
			SourceURL: ref.SourceURI,
		})
	}

	return &Result{Source: citation.KindKB, Context: ans.AnswerText, Citations: cites}, nil
}

// SearchSheet 表格检索
func (a *Adapters) SearchSheet(ctx context.Context, query string) (*Result, error) {
	cells, err := a.Sheet.Query(ctx, query, a.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("sheet search [%s]: %w", query, err)
	}
	if len(cells) > maxCellsPerQuery {
		cells = cells[:maxCellsPerQuery]
	}

	var sb strings.Builder
	var cites []citation.Citation
	for _, cell := range cells {
		fmt.Fprintf(&sb, "文件 %s 工作表 %s 单元格(%d,%d): %s\n", cell.FileName, cell.Sheet, cell.Row, cell.Col, cell.Value)
		cites = append(cites, citation.ExcelCitation{
			FileName: cell.FileName,
			Sheet:    cell.Sheet,
			Row:      cell.Row,
			Col:      cell.Col,
			Value:    cell.Value,
		})
	}

	return &Result{Source: citation.KindExcel, Context: sb.String(), Citations: cites}, nil
}

// fetchAndCleanContent 抓取 URL 并提取核心文本
func fetchAndCleanContent(url string) (string, error) {
	article, err := readability.FromURL(url, fetchTimeout)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}
