// Package server 把搜索/收藏/详情暴露为本地 JSON API（供浏览器前端或脚本调用）。
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/app"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/session"
)

// Service 是 API 需要的核心能力（由 *app.App 实现）。
type Service interface {
	Search(ctx context.Context, term string, genres []string) session.State
	SearchPage(ctx context.Context, term string, genres []string, page int) session.State
	LoadMore(ctx context.Context) session.State
	Retry(ctx context.Context) session.State
	Reset() session.State
	State() session.State

	Toggle(m domain.Movie) bool
	IsFavorite(id string) bool
	Favorites() []domain.Movie
	FavoritesCount() int
	ClearFavorites()

	Lookup(id string) (domain.Movie, bool)
	OpenDetails(ctx context.Context, partial domain.Movie) app.DetailView
}

var _ Service = (*app.App)(nil)

type Options struct {
	// RateLimit 是每个客户端 IP 每分钟的 /api 请求上限；0 表示不限。
	RateLimit int
	Logger    zerolog.Logger
}

// NewHandler 构造带完整中间件栈的路由。
//
// 中间件顺序：recoverer -> request id -> metrics -> access log -> (api) rate limit
func NewHandler(svc Service, opts Options) http.Handler {
	h := &handlers{svc: svc, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	r.Use(AccessLog(opts.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(RateLimit(opts.RateLimit, time.Minute))
		}

		r.Get("/search", h.search)
		r.Delete("/search", h.reset)
		r.Post("/search/more", h.loadMore)
		r.Post("/search/retry", h.retry)

		r.Get("/movies/{id}", h.details)

		r.Get("/favorites", h.listFavorites)
		r.Delete("/favorites", h.clearFavorites)
		r.Post("/favorites/toggle", h.toggleFavorite)
		r.Get("/favorites/{id}", h.isFavorite)
	})
	return r
}

// Run 在 addr 上提供服务，ctx 取消后优雅退出（最多等待 5s）。
// ready 非 nil 时在监听成功后收到实际地址（用于 ":0"）。
func Run(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("api listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info().Msg("api stopped")
	return nil
}
