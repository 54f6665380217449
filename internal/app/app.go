// Package app 把搜索会话、收藏、详情与评分组合成展示层使用的统一入口。
package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/moviefinder/internal/details"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/favorites"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/provider/rottentomatoes"
	"github.com/John-Robertt/moviefinder/internal/session"
)

// ScoreSource 提供可选的第三方评分（未启用时为 nil）。
type ScoreSource interface {
	Scores(ctx context.Context, title, year string) (rottentomatoes.Scores, error)
}

// DetailView 是详情面板需要的全部数据。
type DetailView struct {
	Movie    domain.Movie `json:"movie"`
	Full     bool         `json:"full"`
	Favorite bool         `json:"favorite"`
	// Poster 已替换为占位图（当来源没有海报时）。
	Poster string                 `json:"poster"`
	Scores *rottentomatoes.Scores `json:"scores,omitempty"`
}

// Deps 是 App 的依赖；Scores/Observer 可以为 nil。
type Deps struct {
	Session   *session.Session
	Favorites *favorites.Store
	Details   *details.Fetcher
	Scores    ScoreSource
	Observer  Observer
	Logger    zerolog.Logger
}

// App 是 CLI/TUI/HTTP 共用的门面。
//
// 约束：
// - 不做任何输出；进度通过 Observer 发出
// - 所有远端失败都已在下层转为状态或降级，这里不返回 error
type App struct {
	session   *session.Session
	favorites *favorites.Store
	details   *details.Fetcher
	scores    ScoreSource
	obs       Observer
	logger    zerolog.Logger
}

func New(d Deps) *App {
	obs := d.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &App{
		session:   d.Session,
		favorites: d.Favorites,
		details:   d.Details,
		scores:    d.Scores,
		obs:       obs,
		logger:    d.Logger,
	}
}

// Search 把搜索词与已选类型拼成查询词后，从第一页开始搜索。
func (a *App) Search(ctx context.Context, term string, genres []string) session.State {
	q := domain.ComposeQuery(term, genres)
	return a.observe(q, 1, func() session.State { return a.session.Search(ctx, q, 1) })
}

// SearchPage 直接查询指定页（CLI --page 使用）。
func (a *App) SearchPage(ctx context.Context, term string, genres []string, page int) session.State {
	q := domain.ComposeQuery(term, genres)
	return a.observe(q, page, func() session.State { return a.session.Search(ctx, q, page) })
}

func (a *App) LoadMore(ctx context.Context) session.State {
	cur := a.session.Snapshot()
	return a.observe(cur.Term, cur.Page+1, func() session.State { return a.session.LoadMore(ctx) })
}

// Retry 重发上一次真正发出的请求；进度事件带的是被重发的 term/page。
func (a *App) Retry(ctx context.Context) session.State {
	term, page := a.session.LastAttempt()
	return a.observe(term, page, func() session.State { return a.session.Retry(ctx) })
}

func (a *App) Reset() session.State { return a.session.Reset() }

func (a *App) State() session.State { return a.session.Snapshot() }

func (a *App) observe(term string, page int, fn func() session.State) session.State {
	started := time.Now()
	a.obs.OnSearchStart(term, page)
	st := fn()
	a.obs.OnSearchDone(st, time.Since(started))
	return st
}

// Toggle 切换收藏并返回切换后的状态。
func (a *App) Toggle(m domain.Movie) bool { return a.favorites.Toggle(m) }

func (a *App) IsFavorite(id string) bool { return a.favorites.IsFavorite(id) }

func (a *App) Favorites() []domain.Movie { return a.favorites.List() }

func (a *App) FavoritesCount() int { return a.favorites.Count() }

func (a *App) ClearFavorites() { a.favorites.Clear() }

// Lookup 找到 id 对应的已知记录：当前结果优先，其次收藏。
func (a *App) Lookup(id string) (domain.Movie, bool) {
	if m, ok := a.session.Find(id); ok {
		return m, true
	}
	return a.favorites.Get(id)
}

// OpenDetails 并发获取完整记录与评分；任一失败都退回到已有数据。
// partial 只有 ID 时也能工作（此时失败会得到只有 ID 的记录）。
func (a *App) OpenDetails(ctx context.Context, partial domain.Movie) DetailView {
	started := time.Now()
	partial.ID = strings.TrimSpace(partial.ID)

	var (
		movie  = partial
		full   bool
		scores *rottentomatoes.Scores
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		movie, full = a.details.Resolve(gctx, partial)
		return nil
	})
	if a.scores != nil && strings.TrimSpace(partial.Title) != "" {
		g.Go(func() error {
			s, err := a.scores.Scores(gctx, partial.Title, partial.Year)
			if err != nil {
				a.logger.Debug().Err(err).Str(logx.FieldMovieID, partial.ID).Msg("scores unavailable")
				return nil
			}
			if !s.Empty() {
				scores = &s
			}
			return nil
		})
	}
	_ = g.Wait()

	a.obs.OnDetailsDone(partial.ID, full, time.Since(started))
	return DetailView{
		Movie:    movie,
		Full:     full,
		Favorite: a.favorites.IsFavorite(movie.ID),
		Poster:   movie.PosterOr(domain.PosterPlaceholder),
		Scores:   scores,
	}
}
