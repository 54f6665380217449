// Package favorites 维护收藏集合，并把每次变更整体写回持久槽位。
package favorites

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/infra/slot"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	"github.com/John-Robertt/moviefinder/internal/metrics"
)

// SlotKey 是收藏集合在持久层中的固定槽位名（与浏览器前端的 localStorage 键保持一致）。
const SlotKey = "movieFinder_favorites"

// persistTimeout 限制单次写回耗时；写回失败只记日志，不影响内存状态。
const persistTimeout = 5 * time.Second

// Store 是按插入顺序排列、按 ID 去重的收藏集合。
//
// 约束：
// - 内存状态是权威：持久化失败只记日志与指标，不回滚、不返回错误
// - 每次变更同步写回完整集合（不做增量）
// - 并发安全：serve 模式下多个请求可能同时修改
type Store struct {
	mu     sync.Mutex
	slot   slot.Slot
	logger zerolog.Logger
	items  []domain.Movie
}

// Open 从 slot 读取已持久化的集合。
// 槽位缺失、读失败或内容损坏都初始化为空集合（记录日志，不返回错误）。
func Open(ctx context.Context, s slot.Slot, logger zerolog.Logger) *Store {
	st := &Store{slot: s, logger: logger}
	if s == nil {
		return st
	}

	b, ok, err := s.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Str(logx.FieldKey, SlotKey).Msg("favorites load failed, starting empty")
		return st
	}
	if !ok || len(strings.TrimSpace(string(b))) == 0 {
		return st
	}

	var items []domain.Movie
	if err := json.Unmarshal(b, &items); err != nil {
		logger.Warn().Err(err).Str(logx.FieldKey, SlotKey).Msg("favorites slot is corrupt, starting empty")
		return st
	}
	st.items = dedupe(items)
	logger.Debug().Int("count", len(st.items)).Msg("favorites loaded")
	return st
}

// Toggle 已收藏则移除，否则追加到末尾。返回切换后的收藏状态。
// ID 为空的记录不入集合。
func (s *Store) Toggle(m domain.Movie) bool {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := false
	if i := s.indexLocked(id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	} else {
		s.items = append(s.items, m)
		now = true
	}
	s.persistLocked()
	return now
}

func (s *Store) IsFavorite(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Get 返回收藏中的记录（用于离线展示/导出）。
func (s *Store) Get(id string) (domain.Movie, bool) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return domain.Movie{}, false
}

// Clear 清空集合并写回空数组。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persistLocked()
}

// List 返回插入顺序（最早收藏在前）的副本。
func (s *Store) List() []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Movie, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	if s.slot == nil {
		return
	}
	items := s.items
	if items == nil {
		items = []domain.Movie{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		s.persistFailed(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.slot.Save(ctx, b); err != nil {
		s.persistFailed(err)
	}
}

func (s *Store) persistFailed(err error) {
	metrics.IncFavoritesPersistFailure()
	s.logger.Error().Err(err).Str(logx.FieldKey, SlotKey).Int("count", len(s.items)).Msg("favorites persist failed, keeping in-memory state")
}

// dedupe 保留每个 ID 的第一次出现（手工编辑过的槽位可能有重复）。
func dedupe(in []domain.Movie) []domain.Movie {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Movie, 0, len(in))
	for _, m := range in {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, m)
	}
	return out
}
