package conf

import "github.com/iWorld-y/deep_research/pkg/config"

// Bootstrap 服务启动配置
type Bootstrap struct {
	Server *Server
	Engine *Engine
}

type Server struct {
	Http *HTTP
}

type HTTP struct {
	Addr    string
	Timeout string
}

// Engine 与 pkg/config.Config 镜像的引擎配置（kratos config 扫描用）
type Engine struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	Kb          *KB          `json:"kb"`
	Sheet       *Sheet       `json:"sheet"`
	Research    *Research    `json:"research"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
	Db          *DB          `json:"db"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type Search struct {
	Provider string   `json:"provider"`
	Tavily   *Tavily  `json:"tavily"`
	Searxng  *SearXNG `json:"searxng"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type KB struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
}

type Sheet struct {
	BaseUrl string `json:"base_url"`
}

type Research struct {
	SectionIterations int32 `json:"section_iterations"`
	QueriesPerSource  int32 `json:"queries_per_source"`
	CallTimeout       int32 `json:"call_timeout"`
	WebRetries        int32 `json:"web_retries"`
	WebRetryDelay     int32 `json:"web_retry_delay"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps int32 `json:"qps"`
	Rpm int32 `json:"rpm"`
}

type DB struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ToConfig 转换为 pkg/config.Config
func (e *Engine) ToConfig() *config.Config {
	cfg := &config.Config{}
	if e == nil {
		cfg.ApplyDefaults()
		return cfg
	}
	if e.Llm != nil {
		cfg.LLM = config.LLMConfig{BaseURL: e.Llm.BaseUrl, APIKey: e.Llm.ApiKey, Model: e.Llm.Model}
	}
	if e.Search != nil {
		cfg.Search.Provider = e.Search.Provider
		if e.Search.Tavily != nil {
			cfg.Search.Tavily = config.TavilyConfig{APIKey: e.Search.Tavily.ApiKey}
		}
		if e.Search.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{BaseURL: e.Search.Searxng.BaseUrl, Timeout: int(e.Search.Searxng.Timeout)}
		}
	}
	if e.Kb != nil {
		cfg.KB = config.KBConfig{BaseURL: e.Kb.BaseUrl, APIKey: e.Kb.ApiKey}
	}
	if e.Sheet != nil {
		cfg.Sheet = config.SheetConfig{BaseURL: e.Sheet.BaseUrl}
	}
	if e.Research != nil {
		cfg.Research = config.ResearchConfig{
			SectionIterations: int(e.Research.SectionIterations),
			QueriesPerSource:  int(e.Research.QueriesPerSource),
			CallTimeout:       int(e.Research.CallTimeout),
			WebRetries:        int(e.Research.WebRetries),
			WebRetryDelay:     int(e.Research.WebRetryDelay),
		}
	}
	if e.Log != nil {
		cfg.Log = config.LogConfig{Level: e.Log.Level, File: e.Log.File}
	}
	if e.Concurrency != nil {
		cfg.Concurrency = config.Concurrency{QPS: int(e.Concurrency.Qps), RPM: int(e.Concurrency.Rpm)}
	}
	if e.Db != nil {
		cfg.DB = config.DBConfig{
			Host:     e.Db.Host,
			Port:     int(e.Db.Port),
			User:     e.Db.User,
			Password: e.Db.Password,
			Name:     e.Db.Name,
		}
	}
	cfg.ApplyDefaults()
	return cfg
}
