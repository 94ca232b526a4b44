package outline

import (
	"context"
	"fmt"

	"github.com/iWorld-y/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
)

// fixedOutlines 各报告类型的固定大纲，自适应生成失败时的最终兜底
var fixedOutlines = map[model.ReportKind][]model.SectionSpec{
	model.KindCompanyProfile: {
		{Title: "公司概况", Description: "公司基本信息、成立背景、总部与规模"},
		{Title: "发展历程", Description: "关键里程碑、融资与重大转折"},
		{Title: "主营业务与产品", Description: "核心产品线、服务形态与客户价值"},
		{Title: "商业模式", Description: "收入来源、定价方式与盈利逻辑"},
		{Title: "市场与竞争格局", Description: "所处市场、主要竞争对手与相对优势"},
		{Title: "财务表现", Description: "收入、利润、增长率等关键财务数据"},
		{Title: "管理团队", Description: "创始人与核心高管背景"},
		{Title: "技术与研发", Description: "技术壁垒、专利与研发投入"},
		{Title: "风险因素", Description: "经营、市场、合规等主要风险"},
		{Title: "总结与展望", Description: "综合评价与未来发展判断"},
	},
	model.KindFinancialStatement: {
		{Title: "收入分析", Description: "收入规模、结构与同比变化"},
		{Title: "盈利能力", Description: "毛利率、净利率与利润质量"},
		{Title: "成本结构", Description: "主要成本项及其变动趋势"},
		{Title: "现金流状况", Description: "经营、投资、筹资现金流"},
		{Title: "资产负债结构", Description: "资产构成、负债水平与偿债能力"},
		{Title: "关键财务比率", Description: "ROE、周转率等核心比率"},
		{Title: "同业对比", Description: "与可比公司的关键指标对照"},
		{Title: "财务总结", Description: "整体财务健康度评价"},
	},
	model.KindMarketSizing: {
		{Title: "市场定义", Description: "市场边界、统计口径与细分方式"},
		{Title: "市场规模测算", Description: "TAM/SAM/SOM 估算与依据"},
		{Title: "细分市场", Description: "主要细分赛道及其规模占比"},
		{Title: "增长驱动因素", Description: "需求、技术、政策等驱动力"},
		{Title: "竞争格局", Description: "集中度、头部玩家与份额"},
		{Title: "渠道与客户", Description: "销售渠道结构与客户画像"},
		{Title: "趋势与预测", Description: "未来 3-5 年的增长预测"},
		{Title: "结论", Description: "市场吸引力综合判断"},
	},
}

// Planner 大纲计划器：固定模板或基于已有文档上下文自适应生成
type Planner struct {
	llm *llm.Client
}

// New 创建大纲计划器；c 为 nil 时只使用固定大纲
func New(c *llm.Client) *Planner {
	return &Planner{llm: c}
}

// Fixed 返回指定报告类型的固定大纲副本
func Fixed(kind model.ReportKind) []model.SectionSpec {
	specs, ok := fixedOutlines[kind]
	if !ok {
		specs = fixedOutlines[model.KindCompanyProfile]
	}
	out := make([]model.SectionSpec, len(specs))
	copy(out, specs)
	return out
}

// Plan 产出有序大纲。priorContext 非空时尝试自适应生成；
// 自适应产出为空或失败时退回固定大纲，保证永不返回空大纲。
// 检索类故障不在这里处理，由下游各章节自行容错
func (p *Planner) Plan(ctx context.Context, topic string, kind model.ReportKind, priorContext string) []model.SectionSpec {
	if priorContext == "" || p.llm == nil {
		return Fixed(kind)
	}

	var proposal struct {
		Sections []model.SectionSpec `json:"sections"`
	}
	user := fmt.Sprintf(`调研主题：%s
报告类型：%s
以下是已有的文档上下文，请据此规划一份结构化报告的大纲（6-12 个章节），
按 JSON 格式返回：{"sections": [{"title": "...", "description": "..."}]}

文档上下文：
%s`, topic, kind, priorContext)

	if err := p.llm.GenerateJSON(ctx, "你是一个报告结构规划专家。", user, &proposal); err != nil {
		logger.Log.Warnf("自适应大纲生成失败，使用固定大纲: %v", err)
		return Fixed(kind)
	}

	var specs []model.SectionSpec
	for _, s := range proposal.Sections {
		if s.Title == "" {
			continue
		}
		specs = append(specs, s)
	}
	if len(specs) == 0 {
		logger.Log.Warn("自适应大纲为空，使用固定大纲")
		return Fixed(kind)
	}
	return specs
}
