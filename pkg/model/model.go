package model

import (
	"time"

	"github.com/iWorld-y/deep_research/pkg/citation"
)

// ReportKind 报告类型，决定使用哪一组大纲与提示词
type ReportKind string

const (
	KindCompanyProfile     ReportKind = "company_profile"     // 公司画像
	KindFinancialStatement ReportKind = "financial_statement" // 财报解读
	KindMarketSizing       ReportKind = "market_sizing"       // 市场测算
)

// Mode 任务模式：全新生成或针对性更新
type Mode string

const (
	ModeFresh  Mode = "fresh"
	ModeUpdate Mode = "update"
)

// EnabledSources 任务启动时一次性计算的数据源开关
type EnabledSources struct {
	WebSearch     bool
	KnowledgeBase bool
	Spreadsheet   bool
}

// Any 是否至少启用了一个数据源
func (e EnabledSources) Any() bool {
	return e.WebSearch || e.KnowledgeBase || e.Spreadsheet
}

// QueryHistory 按数据源累计的查询历史，跨迭代去重用
type QueryHistory struct {
	Web   []string `json:"web"`
	KB    []string `json:"kb"`
	Sheet []string `json:"sheet"`
}

// For 返回指定来源的历史查询
func (h *QueryHistory) For(k citation.Kind) []string {
	switch k {
	case citation.KindWeb:
		return h.Web
	case citation.KindKB:
		return h.KB
	case citation.KindExcel:
		return h.Sheet
	}
	return nil
}

// Append 追加一条已下发的查询
func (h *QueryHistory) Append(k citation.Kind, q string) {
	switch k {
	case citation.KindWeb:
		h.Web = append(h.Web, q)
	case citation.KindKB:
		h.KB = append(h.KB, q)
	case citation.KindExcel:
		h.Sheet = append(h.Sheet, q)
	}
}

// SectionSpec 大纲条目：标题与调研说明
type SectionSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Section 报告中的一个章节
// Title/Description 在大纲阶段确定后不再修改；
// Content 每次合成整体覆盖；Citations 仅追加且按身份键去重；
// Context 为跨迭代累积的检索素材，不会出现在最终报告里。
type Section struct {
	ID          string
	Title       string
	Description string
	Content     string
	Context     string
	History     QueryHistory
	Citations   []citation.Citation
	Done        bool
}

// ReportJob 一次编排运行的根聚合
// CurrentSection 只会单调前进；Compiled 置位后章节只读。
type ReportJob struct {
	ID              string
	Topic           string
	Kind            ReportKind
	Mode            Mode
	ScopeID         string
	Sources         EnabledSources
	Outline         []*Section
	CurrentSection  int
	TargetSectionID string
	FinalReport     string
	Compiled        bool
	CreatedAt       time.Time
}

// SectionByID 按 ID 查找章节，未找到返回 nil
func (j *ReportJob) SectionByID(id string) *Section {
	for _, s := range j.Outline {
		if s.ID == id {
			return s
		}
	}
	return nil
}
