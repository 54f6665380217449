package app

import (
	"context"
	"fmt"

	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/details"
	"github.com/John-Robertt/moviefinder/internal/favorites"
	"github.com/John-Robertt/moviefinder/internal/infra/httpx"
	"github.com/John-Robertt/moviefinder/internal/infra/slot"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/provider/omdb"
	"github.com/John-Robertt/moviefinder/internal/provider/rottentomatoes"
	"github.com/John-Robertt/moviefinder/internal/session"
)

// Build 按最终配置装配 App。返回的 close 负责释放收藏后端（badger/sqlite/redis）。
//
// 缺少 api_key 不是错误：App 照常构造，搜索/详情走降级路径。
func Build(ctx context.Context, eff config.EffectiveConfig, obs Observer) (*App, func() error, error) {
	apiClient, err := httpx.NewAPIClient(eff.ProxyURL, eff.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("proxy.url 无效：%w", err)
	}
	src := omdb.Provider{
		BaseURL: eff.BaseURL,
		APIKey:  eff.APIKey,
		Client:  apiClient,
		Logger:  logx.WithComponent("omdb"),
	}

	backend, err := slot.Open(ctx, slot.Options{
		Backend: eff.FavoritesBackend,
		Dir:     eff.FavoritesDir,
		Redis: slot.RedisConfig{
			Addr:     eff.Redis.Addr,
			Password: eff.Redis.Password,
			DB:       eff.Redis.DB,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("打开收藏存储失败（%s）：%w", eff.FavoritesBackend, err)
	}
	s, err := slot.Bind(backend, favorites.SlotKey)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	slotLog := logx.WithComponent("slot")
	slotLog.Debug().
		Str(logx.FieldBackend, backend.Name()).
		Str("dir", eff.FavoritesDir).
		Msg("favorites backend opened")

	var scores ScoreSource
	if eff.RTEnabled {
		scrapeClient, err := httpx.NewScrapeClient(eff.ProxyURL, eff.Timeout)
		if err != nil {
			_ = backend.Close()
			return nil, nil, fmt.Errorf("proxy.url 无效：%w", err)
		}
		scores = rottentomatoes.Provider{BaseURL: eff.RTBaseURL, Client: scrapeClient}
	}

	a := New(Deps{
		Session:   session.New(src, logx.WithComponent("session")),
		Favorites: favorites.Open(ctx, s, logx.WithComponent("favorites")),
		Details:   details.New(src, logx.WithComponent("details")),
		Scores:    scores,
		Observer:  obs,
		Logger:    logx.WithComponent("app"),
	})
	return a, backend.Close, nil
}
