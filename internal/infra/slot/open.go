package slot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options 选择并配置后端。
//
// Dir 是数据目录：
// - file：<Dir>/<key>.json
// - badger：<Dir>/badger/
// - sqlite：<Dir>/moviefinder.db
type Options struct {
	Backend string
	Dir     string
	Redis   RedisConfig
}

// Open 按 Options 打开后端。调用方负责 Close。
func Open(ctx context.Context, opts Options) (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = BackendFile
	}
	needDir := name == BackendFile || name == BackendBadger || name == BackendSQLite
	if needDir && strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("%s 后端需要数据目录", name)
	}

	switch name {
	case BackendFile:
		return NewFile(opts.Dir)
	case BackendBadger:
		return OpenBadger(filepath.Join(opts.Dir, "badger"))
	case BackendSQLite:
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败：%w", err)
		}
		return OpenSQLite(ctx, filepath.Join(opts.Dir, "moviefinder.db"))
	case BackendRedis:
		if strings.TrimSpace(opts.Redis.Addr) == "" {
			return nil, fmt.Errorf("redis 后端需要 addr")
		}
		return OpenRedis(ctx, opts.Redis)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("未知 slot 后端：%q（可选：file/badger/sqlite/redis/memory）", opts.Backend)
	}
}
