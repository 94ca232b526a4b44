package factory

import (
	"fmt"

	"github.com/iWorld-y/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/pkg/searxng"
	"github.com/iWorld-y/deep_research/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例；未配置任何提供方时返回 nil Searcher，
// 表示本次任务不启用网页搜索，而不是报错
func NewSearcher(cfg *config.Config) (search.Searcher, error) {
	provider := cfg.Search.Provider
	if provider == "" {
		if cfg.Search.Tavily.APIKey != "" {
			provider = "tavily"
		} else if cfg.Search.SearXNG.BaseURL != "" {
			provider = "searxng"
		} else {
			return nil, nil
		}
	}

	switch provider {
	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey), nil

	case "searxng":
		if cfg.Search.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(cfg.Search.SearXNG.BaseURL, cfg.Search.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
