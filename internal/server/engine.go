package server

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deep_research/internal/conf"
	"github.com/iWorld-y/deep_research/pkg/engine"
	drLogger "github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/storage"
)

// NewResearchEngine 初始化调研引擎及其存储层
func NewResearchEngine(c *conf.Engine, logger log.Logger) (*engine.Engine, *storage.Storage, func(), error) {
	cfg := c.ToConfig()

	// 初始化日志
	if err := drLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.NewHelper(logger).Errorf("Failed to init research logger: %v", err)
		_ = drLogger.InitLogger("info", "") // 降级处理
	}

	// 初始化存储层
	store, err := storage.NewStorage(cfg.DB)
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init storage for engine: %v", err)
		return nil, nil, nil, err
	}

	// 初始化核心引擎
	eng, err := engine.NewEngine(cfg, store)
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init engine: %v", err)
		_ = store.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("Cleaning up research engine")
		_ = store.Close()
	}

	return eng, store, cleanup, nil
}
