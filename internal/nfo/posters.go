package nfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/infra/imgx"
)

// PosterFileName 是每部电影目录下的海报文件名。
const PosterFileName = "poster.jpg"

// PosterFetcher 下载一张海报的原始字节。
type PosterFetcher func(ctx context.Context, url string) ([]byte, error)

// PosterResult 记录海报导出结果；Failed 形如 "<imdbID>: <原因>"。
type PosterResult struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// ExportPosters 把有海报的 movies 写成 <dir>/<imdbID>/poster.jpg。
//
// 约束：
// - 单张海报下载/解码失败只记入 Failed，不中断其余条目
// - 没有海报（空或 N/A）的条目直接跳过，不记录
// - 已存在的 poster.jpg 默认不覆盖；ctx 取消时立即返回
func ExportPosters(ctx context.Context, dir string, movies []domain.Movie, overwrite bool, fetch PosterFetcher) (PosterResult, error) {
	if fetch == nil {
		return PosterResult{}, errors.New("poster fetcher 不能为空")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return PosterResult{}, errors.New("导出目录不能为空")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return PosterResult{}, err
	}

	res := PosterResult{Written: []string{}, Skipped: []string{}, Failed: []string{}}
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !m.HasPoster() {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if !idRE.MatchString(id) {
			return res, fmt.Errorf("非法 imdbID：%q", m.ID)
		}
		movieDir := filepath.Join(root, id)
		dst := filepath.Join(movieDir, PosterFileName)

		if _, err := os.Lstat(dst); err == nil && !overwrite {
			res.Skipped = append(res.Skipped, dst)
			continue
		}

		raw, err := fetch(ctx, strings.TrimSpace(m.Poster))
		if err != nil {
			res.Failed = append(res.Failed, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		jpg, err := imgx.PosterJPEG(raw, 0)
		if err != nil {
			res.Failed = append(res.Failed, fmt.Sprintf("%s: 解码海报失败：%v", id, err))
			continue
		}
		if err := os.MkdirAll(movieDir, 0o755); err != nil {
			return res, err
		}
		if err := renameio.WriteFile(dst, jpg, 0o644); err != nil {
			return res, fmt.Errorf("写入 %s 失败：%w", dst, err)
		}
		res.Written = append(res.Written, dst)
	}
	return res, nil
}
