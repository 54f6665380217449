// Package slot 提供“单个具名持久槽位”的抽象与多种后端实现。
package slot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Backend 是具名键值存储。值是不透明字节（调用方自行序列化）。
//
// 约束：
// - Get 在键不存在时返回 (nil, false, nil)，只有真正的 I/O 失败才返回 error
// - Put 整体覆盖旧值（不做合并）
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Slot 是绑定到某个键的持久槽位：启动时读一次，每次变更整体重写。
type Slot interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, value []byte) error
}

type bound struct {
	b   Backend
	key string
}

// Bind 把 backend 与 key 绑定成 Slot。
func Bind(b Backend, key string) (Slot, error) {
	if b == nil {
		return nil, fmt.Errorf("slot backend 不能为空")
	}
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return bound{b: b, key: k}, nil
}

func (s bound) Load(ctx context.Context) ([]byte, bool, error) { return s.b.Get(ctx, s.key) }

func (s bound) Save(ctx context.Context, value []byte) error { return s.b.Put(ctx, s.key, value) }

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// CleanKey 校验槽位名。
// 最小约束：键会被 file 后端用作文件名，因此禁止路径分隔符与以 '.' 开头。
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("slot key 不能为空")
	}
	if !keyRE.MatchString(key) {
		return "", fmt.Errorf("非法 slot key：%q", key)
	}
	return key, nil
}
