package domain

import "strings"

// PopularGenres 是类型筛选器提供的固定候选项。
var PopularGenres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music", "Mystery",
	"Romance", "Sci-Fi", "Thriller", "War", "Western",
}

// ComposeQuery 把搜索词与已选类型拼成最终查询词："<term> <g1> <g2>"。
// term 为空白时返回空串（交给 session 报输入错误，不在这里“聪明”地只用类型搜索）。
func ComposeQuery(term string, genres []string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	parts := []string{term}
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g != "" {
			parts = append(parts, g)
		}
	}
	return strings.Join(parts, " ")
}

// ToggleGenre 在已选列表中切换 g（存在则移除，否则追加），返回新切片。
func ToggleGenre(selected []string, g string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, s := range selected {
		if strings.EqualFold(s, g) {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, g)
	}
	return out
}

// FilterByGenres 保留命中任一所选类型的记录。
//
// 规则：
// - genres 为空：原样返回
// - 没有类型信息的部分记录一律保留（无法判断时不丢数据）
func FilterByGenres(movies []Movie, genres []string) []Movie {
	if len(genres) == 0 {
		return movies
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		mg := m.Genres()
		if len(mg) == 0 {
			out = append(out, m)
			continue
		}
		if anyGenre(mg, genres) {
			out = append(out, m)
		}
	}
	return out
}

func anyGenre(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
