package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig      `yaml:"llm"`
	Search      SearchConfig   `yaml:"search"`
	KB          KBConfig       `yaml:"kb"`
	Sheet       SheetConfig    `yaml:"sheet"`
	Research    ResearchConfig `yaml:"research"`
	Log         LogConfig      `yaml:"log"`
	Concurrency Concurrency    `yaml:"concurrency"`
	DB          DBConfig       `yaml:"db"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// SearchConfig 网页搜索相关配置
type SearchConfig struct {
	Provider string        `yaml:"provider"`
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// KBConfig 知识库检索服务配置，BaseURL 为空表示该任务不启用知识库
type KBConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// SheetConfig 表格检索服务配置
type SheetConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ResearchConfig 调研流程参数
type ResearchConfig struct {
	SectionIterations int `yaml:"section_iterations"` // 每章节 计划→检索→合成 循环次数
	QueriesPerSource  int `yaml:"queries_per_source"` // 单次计划每数据源最多查询数
	CallTimeout       int `yaml:"call_timeout"`       // 单次外部调用超时（秒）
	WebRetries        int `yaml:"web_retries"`        // 网页搜索重试次数
	WebRetryDelay     int `yaml:"web_retry_delay"`    // 网页搜索重试间隔（秒）
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Concurrency 并发控制配置
type Concurrency struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults 填充调研参数缺省值
func (c *Config) ApplyDefaults() {
	if c.Research.SectionIterations <= 0 {
		c.Research.SectionIterations = 2
	}
	if c.Research.QueriesPerSource <= 0 || c.Research.QueriesPerSource > 5 {
		c.Research.QueriesPerSource = 5
	}
	if c.Research.CallTimeout <= 0 {
		c.Research.CallTimeout = 30
	}
	if c.Research.WebRetries <= 0 {
		c.Research.WebRetries = 3
	}
	if c.Research.WebRetryDelay <= 0 {
		c.Research.WebRetryDelay = 2
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
}
