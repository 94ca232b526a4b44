package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/compiler"
	"github.com/iWorld-y/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/pkg/engine"
	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/pkg/storage"
)

func main() {
	var (
		confPath    = flag.String("conf", "configs/config.yaml", "配置文件路径")
		topic       = flag.String("topic", "", "调研主题（全新报告必填）")
		kind        = flag.String("kind", string(model.KindCompanyProfile), "报告类型: company_profile / financial_statement / market_sizing")
		jobID       = flag.String("update", "", "要更新的已有报告 ID")
		instruction = flag.String("instruction", "", "更新指令（更新报告必填）")
		scopeID     = flag.String("scope", "", "知识库/表格检索作用域 ID")
		outPath     = flag.String("out", "output/report.md", "报告输出文件")
	)
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 验证配置
	if cfg.LLM.APIKey == "" {
		log.Fatal("配置错误: 未设置 llm.api_key")
	}
	if *topic == "" && *jobID == "" {
		log.Fatal("参数错误: 需要 -topic（全新报告）或 -update（更新已有报告）")
	}
	if *jobID != "" && *instruction == "" {
		log.Fatal("参数错误: -update 必须配合 -instruction 使用")
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动深度调研...")

	ctx := context.Background()

	// 3. 初始化数据库连接
	// 如果配置了数据库信息，则尝试连接；未配置时报告仅输出到文件
	var store *storage.Storage
	if cfg.DB.Host != "" {
		s, err := storage.NewStorage(cfg.DB)
		if err != nil {
			if *jobID != "" {
				logger.Log.Fatalf("无法连接数据库: %v. 更新模式必须依赖数据库。", err)
			}
			logger.Log.Errorf("无法连接数据库: %v. 将仅生成 Markdown 文件。", err)
		} else {
			store = s
			defer store.Close()
			logger.Log.Info("已成功连接到数据库")
		}
	} else {
		if *jobID != "" {
			logger.Log.Fatal("更新模式需要配置数据库信息")
		}
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
	}

	// 4. 初始化引擎
	var eng *engine.Engine
	if store != nil {
		eng, err = engine.NewEngine(cfg, store)
	} else {
		eng, err = engine.NewEngine(cfg, nil)
	}
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// 5. 运行编排
	opts := engine.RunOptions{
		JobID:       *jobID,
		Topic:       *topic,
		Kind:        model.ReportKind(*kind),
		Instruction: *instruction,
		ScopeID:     *scopeID,
		Progress: func(stage string, percent int) {
			logger.Log.Infof("进度 [%d%%] %s", percent, stage)
		},
	}

	job, err := eng.Run(ctx, opts)
	if err != nil {
		logger.Log.Fatalf("报告生成失败: %v", err)
	}

	// 6. 写出 Markdown
	if err := writeReport(*outPath, job); err != nil {
		logger.Log.Fatalf("写出报告失败: %v", err)
	}

	logger.Log.Infof("✅ 调研报告生成完毕: %s (任务 ID: %s)", *outPath, job.ID)
}

// writeReport 将编译好的报告写入 Markdown 文件
func writeReport(path string, job *model.ReportJob) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# %s\n\n", job.Topic); err != nil {
		return err
	}
	if _, err := f.WriteString(job.FinalReport); err != nil {
		return err
	}

	// 附上全文引用列表
	cites := compiler.Citations(job.Outline)
	if len(cites) == 0 {
		return nil
	}
	if _, err := f.WriteString("\n## 参考来源\n\n"); err != nil {
		return err
	}
	for _, c := range cites {
		if _, err := fmt.Fprintf(f, "- %s\n", citationLabel(c)); err != nil {
			return err
		}
	}
	return nil
}

// citationLabel 引用的人类可读展示
func citationLabel(c citation.Citation) string {
	switch v := c.(type) {
	case citation.WebCitation:
		return fmt.Sprintf("[%s](%s)", v.Title, v.URL)
	case citation.KBCitation:
		return fmt.Sprintf("%s 第 %d 页", v.FileName, v.Page)
	case citation.ExcelCitation:
		return fmt.Sprintf("%s / %s 单元格(%d,%d)", v.FileName, v.Sheet, v.Row, v.Col)
	default:
		return c.Key()
	}
}
