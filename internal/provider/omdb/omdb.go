package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/moviefinder/internal/domain"
	logx "github.com/John-Robertt/moviefinder/internal/log"
	providerx "github.com/John-Robertt/moviefinder/internal/provider"
)

const DefaultBaseURL = "https://www.omdbapi.com"

// maxBody 限制单次响应体大小，避免异常响应撑爆内存。
const maxBody = 4 << 20

// Provider 实现 OMDb 的按词搜索与按 ID 查询。
//
// 约束：
// - 只负责拼 URL 与解析 JSON；超时/代理/UA 由 HTTP 层统一控制
// - Response=False 一律转为 *providerx.RemoteError，保留来源原文
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL；测试里指向 httptest server。
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  zerolog.Logger
}

func (Provider) Name() string { return "omdb" }

func (p Provider) HasCredential() bool { return strings.TrimSpace(p.APIKey) != "" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

type searchResponse struct {
	Search       []domain.Movie `json:"Search"`
	TotalResults string         `json:"totalResults"`
	Response     string         `json:"Response"`
	Error        string         `json:"Error"`
}

type lookupResponse struct {
	domain.Movie
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Search 查询一页结果：GET {base}/?s=<term>&page=<n>&apikey=<key>
func (p Provider) Search(ctx context.Context, term string, page int) (providerx.SearchPage, error) {
	if !p.HasCredential() {
		return providerx.SearchPage{}, providerx.ErrMissingCredential
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return providerx.SearchPage{}, errors.New("term 不能为空")
	}
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("s", term)
	q.Set("page", strconv.Itoa(page))
	q.Set("apikey", strings.TrimSpace(p.APIKey))

	var out searchResponse
	if err := p.getJSON(ctx, q, &out); err != nil {
		return providerx.SearchPage{}, err
	}
	if !isTrue(out.Response) {
		return providerx.SearchPage{}, &providerx.RemoteError{Message: out.Error}
	}

	p.Logger.Debug().
		Str(logx.FieldTerm, term).
		Int(logx.FieldPage, page).
		Int("count", len(out.Search)).
		Str("total", out.TotalResults).
		Msg("omdb search ok")

	return providerx.SearchPage{
		Movies: out.Search,
		Total:  ParseTotal(out.TotalResults),
	}, nil
}

// Lookup 查询完整记录：GET {base}/?i=<id>&plot=full&apikey=<key>
func (p Provider) Lookup(ctx context.Context, id string) (domain.Movie, error) {
	if !p.HasCredential() {
		return domain.Movie{}, providerx.ErrMissingCredential
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Movie{}, errors.New("id 不能为空")
	}

	q := url.Values{}
	q.Set("i", id)
	q.Set("plot", "full")
	q.Set("apikey", strings.TrimSpace(p.APIKey))

	var out lookupResponse
	if err := p.getJSON(ctx, q, &out); err != nil {
		return domain.Movie{}, err
	}
	if !isTrue(out.Response) {
		return domain.Movie{}, &providerx.RemoteError{Message: out.Error}
	}
	if strings.TrimSpace(out.ID) == "" {
		return domain.Movie{}, fmt.Errorf("响应缺少 imdbID：%s", id)
	}
	return out.Movie, nil
}

func (p Provider) getJSON(ctx context.Context, q url.Values, dst any) error {
	if p.Client == nil {
		return errors.New("http client 不能为空")
	}
	u := p.baseURL() + "/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// URL 带 apikey，不能原样暴露到错误文案/日志里。
		return &providerx.HTTPStatusError{URL: redact(u), StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("解析 OMDb 响应失败：%w", err)
	}
	return nil
}

// ParseTotal 解析来源报告的总条数；空白、非数字或负数都视为 0。
func ParseTotal(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func isTrue(s string) bool { return strings.EqualFold(strings.TrimSpace(s), "true") }

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
