package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/moviefinder/internal/metrics"
)

const (
	DefaultTimeout = 15 * time.Second

	// APIUserAgent 用于 JSON API（OMDb）；站点抓取使用浏览器 UA 池。
	APIUserAgent = "moviefinder/1.0 (+https://github.com/John-Robertt/moviefinder)"
)

// Transport 把“UA 策略 + 代理 + keep-alive 策略 + 上游指标”固化为统一策略。
//
// 约束：
// - 只做一次尝试：对电影库的请求不重试、不限速（失败直接交给上层转为状态）
// - provider 只负责拼 URL 与解析响应，不关心网络策略细节
type Transport struct {
	Base *http.Transport

	// UserAgent 非空时固定使用；为空时从浏览器 UA 池随机选择。
	UserAgent string
	ua        *uaPool

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent())
	}
	if t.DisableKeepAlives {
		r.Close = true
	}

	started := time.Now()
	resp, err := t.Base.RoundTrip(r)
	host := ""
	if r.URL != nil {
		host = r.URL.Host
	}
	switch {
	case err != nil:
		metrics.ObserveUpstream(host, metrics.OutcomeError, time.Since(started))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.ObserveUpstream(host, metrics.OutcomeHTTPError, time.Since(started))
	default:
		metrics.ObserveUpstream(host, metrics.OutcomeOK, time.Since(started))
	}
	return resp, err
}

func (t *Transport) userAgent() string {
	if ua := strings.TrimSpace(t.UserAgent); ua != "" {
		return ua
	}
	if t.ua == nil {
		return APIUserAgent
	}
	return t.ua.random()
}

// NewAPIClient 构造访问电影库 JSON API 的 HTTP client。
//
// 规则：
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 固定 UA；总超时 timeout（<=0 时用 DefaultTimeout），超时即视为传输失败
func NewAPIClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL), timeout, APIUserAgent)
}

// NewScrapeClient 构造抓取网页（评分站点）的 HTTP client：每个请求随机浏览器 UA。
func NewScrapeClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL), timeout, "")
}

func newClient(proxyURL string, timeout time.Duration, fixedUA string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		UserAgent:         fixedUA,
		ua:                globalUA,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
