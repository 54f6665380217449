package nfo

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/moviefinder/internal/domain"
)

type movie struct {
	XMLName xml.Name `xml:"movie"`

	Title     string `xml:"title"`
	SortTitle string `xml:"sorttitle,omitempty"`
	Year      int    `xml:"year,omitempty"`
	Premiered string `xml:"premiered,omitempty"`
	Runtime   int    `xml:"runtime,omitempty"`
	Plot      string `xml:"plot,omitempty"`

	UniqueID uniqueID `xml:"uniqueid"`
	Rating   *rating  `xml:"ratings>rating,omitempty"`

	Thumb     string   `xml:"thumb,omitempty"`
	Directors []string `xml:"director,omitempty"`
	Genres    []string `xml:"genre,omitempty"`
	Actors    []actor  `xml:"actor,omitempty"`

	Website string `xml:"website,omitempty"`
}

type uniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:",chardata"`
}

type rating struct {
	Name    string  `xml:"name,attr"`
	Max     int     `xml:"max,attr"`
	Default bool    `xml:"default,attr"`
	Value   float64 `xml:"value"`
}

type actor struct {
	Name  string `xml:"name"`
	Order int    `xml:"order"`
}

// Encode 把一条电影记录转成 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
//
// 规则：
// - 字段缺失（含 "N/A"）允许为空；输出结构尽量稳定（去空白、去重、保持输入顺序）
// - title 为空时回退到 imdbID（避免生成空 title）
// - 部分记录也能导出，只是字段更少
func Encode(m domain.Movie) ([]byte, error) {
	id := strings.TrimSpace(m.ID)
	title := clean(m.Title)
	if title == "" {
		title = id
	}

	out := movie{
		Title:     title,
		SortTitle: title,
		Year:      leadingYear(m.Year),
		Premiered: premiered(m.Released),
		Runtime:   firstInt(m.Runtime),
		Plot:      clean(m.Plot),
		UniqueID:  uniqueID{Type: "imdb", Default: true, Value: id},
		Directors: splitNames(m.Director),
		Genres:    m.Genres(),
	}
	if m.HasPoster() {
		out.Thumb = strings.TrimSpace(m.Poster)
	}
	if m.HasRating() {
		if v, err := strconv.ParseFloat(strings.TrimSpace(m.Rating), 64); err == nil {
			out.Rating = &rating{Name: "imdb", Max: 10, Default: true, Value: v}
		}
	}
	if id != "" {
		out.Website = "https://www.imdb.com/title/" + id + "/"
	}

	cast := normList(m.Cast())
	if len(cast) > 0 {
		out.Actors = make([]actor, 0, len(cast))
		for i, a := range cast {
			out.Actors = append(out.Actors, actor{Name: a, Order: i})
		}
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == domain.NotAvailable {
		return ""
	}
	return s
}

func splitNames(s string) []string {
	s = clean(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return normList(parts)
}

// leadingYear 取开头 4 位数字（剧集年份形如 "2008–2013"）。
func leadingYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return n
}

// premiered 把 "15 Jun 2005" 转成 "2005-06-15"；无法识别时返回空串。
func premiered(s string) string {
	s = clean(s)
	if s == "" {
		return ""
	}
	t, err := time.Parse("02 Jan 2006", s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// firstInt 取第一段连续数字（"140 min" -> 140）。
func firstInt(s string) int {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || s == domain.NotAvailable {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
