package rottentomatoes

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	providerx "github.com/John-Robertt/moviefinder/internal/provider"
)

const DefaultBaseURL = "https://www.rottentomatoes.com"

// ErrNoMatch 表示搜索页中没有与标题匹配的条目。
var ErrNoMatch = errors.New("rottentomatoes: no matching title")

// Scores 是详情面板里展示的评分补充信息。空串表示页面上没有该项。
type Scores struct {
	URL       string `json:"url"`
	Critic    string `json:"critic,omitempty"`   // Tomatometer，0-100
	Audience  string `json:"audience,omitempty"` // Popcornmeter，0-100
	Consensus string `json:"consensus,omitempty"`
}

func (s Scores) Empty() bool { return s.Critic == "" && s.Audience == "" && s.Consensus == "" }

// Provider 抓取 Rotten Tomatoes 的评分。
//
// 约束：
// - 需要先搜索再进入详情页（详情 URL 无法由标题可靠推导）
// - 只做一次尝试；失败由调用方降级为“不展示评分”
// - parseScores 是纯函数（只依赖输入 html）
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL。
	BaseURL string
	Client  *http.Client
}

func (Provider) Name() string { return "rottentomatoes" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// Scores 先搜索 {base}/search?search=<title>，再抓取命中条目的详情页。
// year 为空时只按标题匹配。
func (p Provider) Scores(ctx context.Context, title, year string) (Scores, error) {
	if p.Client == nil {
		return Scores{}, errors.New("http client 不能为空")
	}
	title = normSpace(title)
	if title == "" {
		return Scores{}, errors.New("title 不能为空")
	}

	base := p.baseURL()
	searchHTML, err := providerx.FetchPage(ctx, p.Client, base+"/search?search="+url.QueryEscape(title), 0)
	if err != nil {
		return Scores{}, p.stageErr("search", err)
	}
	href, err := findDetailHref(searchHTML, title, year)
	if err != nil {
		return Scores{}, p.stageErr("search", err)
	}

	pageURL := resolveURL(base+"/", href)
	b, err := providerx.FetchPage(ctx, p.Client, pageURL, 0)
	if err != nil {
		return Scores{}, p.stageErr("fetch", err)
	}
	s, err := parseScores(b)
	if err != nil {
		return Scores{}, p.stageErr("parse", err)
	}
	s.URL = pageURL
	return s, nil
}

func (p Provider) stageErr(stage string, err error) error {
	return &providerx.Error{Provider: p.Name(), Stage: stage, Err: err}
}

// findDetailHref 在搜索页的 movie 分组中选择标题一致的条目；有 year 时优先同年。
func findDetailHref(searchHTML []byte, title, year string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return "", err
	}

	want := strings.ToLower(title)
	year = strings.TrimSpace(year)
	// OMDb 的剧集年份形如 "2008–2013"，只取开头四位。
	if len(year) > 4 {
		year = year[:4]
	}

	var titleOnly string
	var exact string
	doc.Find("search-page-media-row").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		got := strings.ToLower(normSpace(s.Find("[slot=title]").First().Text()))
		if got != want {
			return true
		}
		href, ok := s.Find("a[slot=title]").First().Attr("href")
		if !ok {
			href, ok = s.Find("a").First().Attr("href")
		}
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		rowYear, _ := s.Attr("releaseyear")
		if year != "" && strings.TrimSpace(rowYear) == year {
			exact = href
			return false
		}
		if titleOnly == "" {
			titleOnly = href
		}
		return true
	})
	if exact != "" {
		return exact, nil
	}
	if titleOnly != "" {
		return titleOnly, nil
	}
	return "", ErrNoMatch
}

var (
	reAggregate = regexp.MustCompile(`"aggregateRating".*?"ratingValue":"?(\d{1,3})"?`)
	reAudience  = regexp.MustCompile(`"audience[sS]core":\s*"?(\d{1,3})"?`)
	reConsensus = regexp.MustCompile(`(?i)^Critics\s+Consensus:?\s*`)
)

// parseScores 从详情页解析评分。
// 优先读 <score-board> 的属性，其次读 rt-text 插槽，最后回退到 JSON-LD。
func parseScores(html []byte) (Scores, error) {
	if len(html) == 0 {
		return Scores{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Scores{}, err
	}

	var s Scores
	board := doc.Find("score-board, score-board-deprecated").First()
	if v, ok := board.Attr("tomatometerscore"); ok {
		s.Critic = digits(v)
	}
	if v, ok := board.Attr("audiencescore"); ok {
		s.Audience = digits(v)
	}
	if s.Critic == "" {
		s.Critic = digits(doc.Find(`rt-text[slot=criticsScore], [data-qa="tomatometer"]`).First().Text())
	}
	if s.Audience == "" {
		s.Audience = digits(doc.Find(`rt-text[slot=audienceScore], [data-qa="audience-score"]`).First().Text())
	}

	raw := string(html)
	if s.Critic == "" {
		if m := reAggregate.FindStringSubmatch(raw); len(m) > 1 {
			s.Critic = m[1]
		}
	}
	if s.Audience == "" {
		if m := reAudience.FindStringSubmatch(raw); len(m) > 1 {
			s.Audience = m[1]
		}
	}

	for _, sel := range []string{`[data-qa="critics-consensus"]`, "#critics-consensus p", ".what-to-know__consensus", "p.consensus"} {
		text := normSpace(doc.Find(sel).First().Text())
		if text != "" {
			s.Consensus = strings.TrimSpace(reConsensus.ReplaceAllString(text, ""))
			break
		}
	}
	return s, nil
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// digits 返回 s 中第一段连续数字（"87%" -> "87"）；没有数字时返回空串。
func digits(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
