package slot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// File 把每个键存成 <Dir>/<key>.json。
//
// 约束：写入走 renameio（临时文件 + fsync + rename），崩溃时要么是旧值要么是新值。
type File struct {
	Dir string
}

func NewFile(dir string) (*File, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("file slot 目录不能为空")
	}
	return &File{Dir: filepath.Clean(dir)}, nil
}

func (*File) Name() string { return "file" }

// Path 返回 key 对应的文件路径。
func (s *File) Path(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, k+".json"), nil
}

func (s *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s *File) Put(_ context.Context, key string, value []byte) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("创建 slot 目录失败：%w", err)
	}
	if err := renameio.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("写入 slot 文件失败：%w", err)
	}
	return nil
}

func (*File) Close() error { return nil }
