package app

import (
	"os"
	"time"

	"github.com/procure-next/internal/config"
	"github.com/procure-next/internal/logger"

	"go.uber.org/zap"
)

// 运行模式：API、队列 Worker 或两者同进程
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

const defaultShutdownTimeout = 10 * time.Second

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// normalizeOptions 补齐默认参数。停机超时优先取配置里的
// server.shutdown_timeout_seconds，再落到内置默认值。
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		if opts.Config != nil && opts.Config.Server.ShutdownTimeoutSeconds > 0 {
			opts.ShutdownTimeout = time.Duration(opts.Config.Server.ShutdownTimeoutSeconds) * time.Second
		} else {
			opts.ShutdownTimeout = defaultShutdownTimeout
		}
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}
