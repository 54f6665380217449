package nfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/John-Robertt/moviefinder/internal/domain"
)

// FileName 是每部电影目录下的 NFO 文件名。
const FileName = "movie.nfo"

// ExportResult 记录导出结果（路径均为绝对路径）。
type ExportResult struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

var idRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Export 把 movies 写成 <dir>/<imdbID>/movie.nfo。
//
// 约束：
// - 已存在的 movie.nfo 默认不覆盖（媒体库里可能是用户手改过的版本），overwrite=true 时覆盖
// - 写入走 renameio（临时文件 + fsync + rename）
// - 非法 ID 直接报错，不做“聪明”的转义
func Export(dir string, movies []domain.Movie, overwrite bool) (ExportResult, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ExportResult{}, errors.New("导出目录不能为空")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{Written: []string{}, Skipped: []string{}}
	for _, m := range movies {
		id := strings.TrimSpace(m.ID)
		if !idRE.MatchString(id) {
			return res, fmt.Errorf("非法 imdbID：%q", m.ID)
		}
		movieDir := filepath.Join(root, id)
		dst := filepath.Join(movieDir, FileName)

		if fi, err := os.Lstat(dst); err == nil {
			if fi.IsDir() {
				return res, fmt.Errorf("目标路径类型冲突：%q（期望 file，实际 dir）", dst)
			}
			if !overwrite {
				res.Skipped = append(res.Skipped, dst)
				continue
			}
		} else if !os.IsNotExist(err) {
			return res, err
		}

		b, err := Encode(m)
		if err != nil {
			return res, fmt.Errorf("编码 %s 失败：%w", id, err)
		}
		if err := os.MkdirAll(movieDir, 0o755); err != nil {
			return res, err
		}
		if err := renameio.WriteFile(dst, b, 0o644); err != nil {
			return res, fmt.Errorf("写入 %s 失败：%w", dst, err)
		}
		res.Written = append(res.Written, dst)
	}
	return res, nil
}
