package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/domain"
)

// maxBodyBytes 限制请求体大小（一条电影记录远小于此）。
const maxBodyBytes = 64 << 10

type handlers struct {
	svc    Service
	logger zerolog.Logger
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type favoriteBody struct {
	Favorite bool `json:"favorite"`
	Count    int  `json:"count"`
}

// search：带 q 参数时发起搜索（q 为空白也交给会话，得到 error 状态）；不带 q 时返回当前快照。
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("q") {
		writeJSON(w, http.StatusOK, h.svc.State())
		return
	}

	page := 1
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_page", Detail: "page 必须是正整数"})
			return
		}
		page = n
	}

	genres := q["genre"]
	if page == 1 {
		writeJSON(w, http.StatusOK, h.svc.Search(sessionContext(r), q.Get("q"), genres))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SearchPage(sessionContext(r), q.Get("q"), genres, page))
}

func (h *handlers) loadMore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.LoadMore(sessionContext(r)))
}

func (h *handlers) retry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Retry(sessionContext(r)))
}

// sessionContext：修改共享会话的调用不随客户端断开而取消；上游耗时仍受 HTTP client 超时约束。
func sessionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *handlers) reset(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Reset())
}

// details：部分记录优先取自当前结果/收藏；都没有时只带 ID 去查。
func (h *handlers) details(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	partial, ok := h.svc.Lookup(id)
	if !ok {
		partial = domain.Movie{ID: id}
	}
	v := h.svc.OpenDetails(r.Context(), partial)
	if !ok && !v.Full {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: "未找到该电影：" + id})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// listFavorites：可用 genre 参数（可重复）按类型过滤。
func (h *handlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.FilterByGenres(h.svc.Favorites(), r.URL.Query()["genre"]))
}

func (h *handlers) clearFavorites(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearFavorites()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	var m domain.Movie
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&m); err != nil {
		h.logger.Debug().Err(err).Msg("invalid toggle body")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body", Detail: err.Error()})
		return
	}
	if strings.TrimSpace(m.ID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body", Detail: "imdbID 不能为空"})
		return
	}
	fav := h.svc.Toggle(m)
	writeJSON(w, http.StatusOK, favoriteBody{Favorite: fav, Count: h.svc.FavoritesCount()})
}

func (h *handlers) isFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, favoriteBody{Favorite: h.svc.IsFavorite(id), Count: h.svc.FavoritesCount()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
