// Package session 实现“按词搜索 + 分页加载更多”的状态机。
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/domain"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/metrics"
	"github.com/John-Robertt/moviefinder/internal/provider"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// State 是会话在某一时刻的只读快照（渲染层与 JSON API 直接使用）。
type State struct {
	Term        string         `json:"term"`
	Page        int            `json:"page"`
	Results     []domain.Movie `json:"results"`
	Total       int            `json:"total"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CanLoadMore bool           `json:"can_load_more"`
	// CanRetry 表示存在可以重发的上一次请求（错误状态下展示“重试”入口）。
	CanRetry bool `json:"can_retry"`
}

// Summary 返回 "显示 X / Y 条：<term>" 形式的结果摘要；没有结果时返回空串。
func (s State) Summary() string {
	if len(s.Results) == 0 {
		return ""
	}
	return fmt.Sprintf("显示 %d / %d 条：%s", len(s.Results), s.Total, s.Term)
}

// Session 维护一个搜索会话。
//
// 约束：
// - 同一会话内 LoadMore 在 loading 期间被拒绝，因此分页结果严格按页序追加
// - 每次 Search（包括被校验拒绝的）领取一个递增的 generation；完成时 generation 已变化则丢弃响应（不改状态）
// - 远端错误在调用点转为状态（Status=error + Error 文案），从不以 error 形式返回
// - 网络调用在锁外进行；并发调用安全
type Session struct {
	p      provider.Provider
	logger zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	term    string
	page    int
	results []domain.Movie
	total   int
	status  Status
	lastErr string

	// 上一次真正发出的请求（用于 Retry）。
	attemptTerm string
	attemptPage int
}

func New(p provider.Provider, logger zerolog.Logger) *Session {
	return &Session{
		p:      p,
		logger: logger,
		page:   1,
		status: StatusIdle,
	}
}

// Search 以 term 查询第 page 页（page<1 按 1 处理），返回完成后的状态快照。
func (s *Session) Search(ctx context.Context, term string, page int) State {
	term = strings.TrimSpace(term)
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	if s.p == nil || !s.p.HasCredential() {
		// 校验失败同样作废在途请求，否则旧响应会覆盖这次的错误。
		s.gen++
		s.status = StatusError
		s.lastErr = ErrMsgMissingCredential
		st := s.snapshotLocked()
		s.mu.Unlock()
		metrics.IncSearch(metrics.OutcomeRejected)
		return st
	}
	if term == "" {
		s.gen++
		s.status = StatusError
		s.lastErr = ErrMsgEmptyTerm
		st := s.snapshotLocked()
		s.mu.Unlock()
		metrics.IncSearch(metrics.OutcomeRejected)
		return st
	}

	s.gen++
	gen := s.gen
	s.status = StatusLoading
	s.lastErr = ""
	s.attemptTerm, s.attemptPage = term, page
	s.mu.Unlock()

	log := s.logger.With().
		Str(logx.FieldTerm, term).
		Int(logx.FieldPage, page).
		Uint64(logx.FieldGeneration, gen).
		Logger()
	log.Debug().Msg("search started")

	res, err := s.p.Search(ctx, term, page)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		log.Debug().Uint64("current", s.gen).Msg("stale search response discarded")
		metrics.IncSearch(metrics.OutcomeStale)
		return s.snapshotLocked()
	}

	if err != nil {
		s.status = StatusError
		s.lastErr = humanize(err)
		if page == 1 {
			s.results = nil
			s.total = 0
		}
		var re *provider.RemoteError
		if errors.As(err, &re) {
			log.Info().Str("reason", s.lastErr).Msg("search returned no results")
			metrics.IncSearch(metrics.OutcomeNoResults)
		} else {
			log.Warn().Err(err).Msg("search failed")
			metrics.IncSearch(metrics.OutcomeError)
		}
		return s.snapshotLocked()
	}

	if page == 1 {
		s.results = append([]domain.Movie(nil), res.Movies...)
		s.term = term
	} else {
		s.results = append(s.results, res.Movies...)
	}
	s.total = res.Total
	s.page = page
	s.status = StatusReady
	s.lastErr = ""

	log.Info().Int("count", len(res.Movies)).Int("total", s.total).Msg("search ok")
	metrics.IncSearch(metrics.OutcomeOK)
	return s.snapshotLocked()
}

// LoadMore 查询下一页。尚未成功搜索过或正在加载时为 no-op（返回当前快照）。
func (s *Session) LoadMore(ctx context.Context) State {
	s.mu.Lock()
	if s.term == "" || s.status == StatusLoading {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st
	}
	term, next := s.term, s.page+1
	s.mu.Unlock()
	return s.Search(ctx, term, next)
}

// Retry 重发上一次真正发出的请求（同 term 同 page）。
// 没有发出过请求或正在加载时为 no-op。
func (s *Session) Retry(ctx context.Context) State {
	s.mu.Lock()
	if s.attemptTerm == "" || s.status == StatusLoading {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st
	}
	term, page := s.attemptTerm, s.attemptPage
	s.mu.Unlock()
	return s.Search(ctx, term, page)
}

// LastAttempt 返回上一次真正发出的请求（Retry 会重发它）；没有时 term 为空。
func (s *Session) LastAttempt() (term string, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptTerm, s.attemptPage
}

// Reset 回到初始状态；同时推进 generation，使在途响应被丢弃。
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.term = ""
	s.page = 1
	s.results = nil
	s.total = 0
	s.status = StatusIdle
	s.lastErr = ""
	s.attemptTerm, s.attemptPage = "", 0
	return s.snapshotLocked()
}

// CanLoadMore 当且仅当已加载条数少于总数且不在加载中。
func (s *Session) CanLoadMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canLoadMoreLocked()
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Find 在当前结果中按 ID 查找（详情兜底用）。
func (s *Session) Find(id string) (domain.Movie, bool) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.results {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Movie{}, false
}

func (s *Session) canLoadMoreLocked() bool {
	return len(s.results) < s.total && s.status != StatusLoading
}

func (s *Session) snapshotLocked() State {
	results := make([]domain.Movie, len(s.results))
	copy(results, s.results)
	return State{
		Term:        s.term,
		Page:        s.page,
		Results:     results,
		Total:       s.total,
		Status:      s.status,
		Error:       s.lastErr,
		CanLoadMore: s.canLoadMoreLocked(),
		CanRetry:    s.attemptTerm != "" && s.status == StatusError,
	}
}
