package domain

import "strings"

// NotAvailable 是 OMDb 用于“字段缺失”的哨兵值（Poster/imdbRating 等）。
const NotAvailable = "N/A"

// PosterPlaceholder 是无海报时展示层使用的占位图。
const PosterPlaceholder = "https://via.placeholder.com/300x450/1a1a1a/666?text=No+Poster"

const (
	KindMovie   = "movie"
	KindSeries  = "series"
	KindEpisode = "episode"
)

// Movie 是外部电影库返回的一条记录。
//
// 约束：
// - 按词搜索得到的是“部分投影”（只有 ID/Title/Year/Type/Poster）
// - 按 ID 查询得到的是“完整投影”（扩展字段齐全）
// - 两者共享同一 ID 空间：部分记录可以原地升级为完整记录，身份不变
// - JSON 字段名沿用 OMDb 的线上格式，持久化的收藏槽位与之保持一致
type Movie struct {
	ID     string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`

	Plot     string `json:"Plot,omitempty"`
	Rating   string `json:"imdbRating,omitempty"`
	Genre    string `json:"Genre,omitempty"`
	Director string `json:"Director,omitempty"`
	Actors   string `json:"Actors,omitempty"`
	Runtime  string `json:"Runtime,omitempty"`
	Released string `json:"Released,omitempty"`
}

// IsFull 判断记录是否已经是完整投影（任一扩展字段存在即视为完整）。
func (m Movie) IsFull() bool {
	return m.Plot != "" || m.Rating != "" || m.Genre != "" || m.Director != "" ||
		m.Actors != "" || m.Runtime != "" || m.Released != ""
}

func (m Movie) HasPoster() bool {
	p := strings.TrimSpace(m.Poster)
	return p != "" && p != NotAvailable
}

// PosterOr 返回海报 URL；无海报时返回 fallback。
func (m Movie) PosterOr(fallback string) string {
	if m.HasPoster() {
		return strings.TrimSpace(m.Poster)
	}
	return fallback
}

func (m Movie) HasRating() bool {
	r := strings.TrimSpace(m.Rating)
	return r != "" && r != NotAvailable
}

// Genres 把 "Action, Drama" 形式的 Genre 拆成列表（去空白、去 N/A）。
func (m Movie) Genres() []string {
	return splitList(m.Genre)
}

// Cast 把 Actors 拆成列表。
func (m Movie) Cast() []string {
	return splitList(m.Actors)
}

// Merge 用完整记录 full 升级当前记录。
// ID 不一致时不做任何修改（不允许“换身份”）；full 中的空字段不会覆盖已有值。
func (m Movie) Merge(full Movie) Movie {
	if full.ID != m.ID {
		return m
	}
	out := m
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&out.Title, full.Title)
	set(&out.Year, full.Year)
	set(&out.Type, full.Type)
	set(&out.Poster, full.Poster)
	set(&out.Plot, full.Plot)
	set(&out.Rating, full.Rating)
	set(&out.Genre, full.Genre)
	set(&out.Director, full.Director)
	set(&out.Actors, full.Actors)
	set(&out.Runtime, full.Runtime)
	set(&out.Released, full.Released)
	return out
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == NotAvailable {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == NotAvailable {
			continue
		}
		out = append(out, p)
	}
	return out
}
