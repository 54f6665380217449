// Package log 提供全局 zerolog 日志器与按组件派生的子日志器。
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 控制全局日志器的初始化。
type Config struct {
	Level   string    // "debug" / "info" / ...；为空时读 LOG_LEVEL，再缺省为 info
	Output  io.Writer // 默认 stderr（stdout 留给 JSON 结果）
	Service string
}

var (
	mu         sync.Mutex
	configured bool
	base       zerolog.Logger
)

// Configure 初始化全局日志器。重复调用时仅第一次生效，除非先 Reset（测试用）。
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if configured {
		return
	}
	configured = true

	level := zerolog.InfoLevel
	raw := cfg.Level
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	if raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	service := cfg.Service
	if service == "" {
		service = "moviefinder"
	}
	base = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// Reset 允许重新 Configure（只在测试里使用）。
func Reset() {
	mu.Lock()
	configured = false
	mu.Unlock()
}

// Base 返回全局日志器；未初始化时按默认配置初始化。
func Base() zerolog.Logger {
	Configure(Config{})
	mu.Lock()
	defer mu.Unlock()
	return base
}

// WithComponent 返回带 component 字段的子日志器。
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
