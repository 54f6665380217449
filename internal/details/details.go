// Package details 按需把搜索得到的部分记录补全为完整记录。
package details

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/domain"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/provider"
)

// Fetcher 查询单条完整记录。
//
// 约束：
// - 任何失败都只记日志并返回“缺失”，调用方退回到已持有的部分记录
// - 不跨调用缓存
type Fetcher struct {
	p      provider.Provider
	logger zerolog.Logger
}

func New(p provider.Provider, logger zerolog.Logger) *Fetcher {
	return &Fetcher{p: p, logger: logger}
}

// FetchDetails 返回 (完整记录, true)；未配置凭证、传输失败、非 2xx 或“未找到”时返回 (零值, false)。
func (f *Fetcher) FetchDetails(ctx context.Context, id string) (domain.Movie, bool) {
	id = strings.TrimSpace(id)
	if id == "" || f.p == nil || !f.p.HasCredential() {
		return domain.Movie{}, false
	}

	m, err := f.p.Lookup(ctx, id)
	if err != nil {
		ev := f.logger.Warn()
		var re *provider.RemoteError
		if errors.As(err, &re) {
			ev = f.logger.Info()
		}
		ev.Err(err).Str(logx.FieldMovieID, id).Msg("details unavailable, falling back")
		return domain.Movie{}, false
	}
	return m, true
}

// Resolve 尝试补全 partial；失败时原样返回 partial（永远不会返回空白记录）。
func (f *Fetcher) Resolve(ctx context.Context, partial domain.Movie) (domain.Movie, bool) {
	full, ok := f.FetchDetails(ctx, partial.ID)
	if !ok {
		return partial, false
	}
	return partial.Merge(full), true
}
