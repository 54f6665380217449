package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/moviefinder/internal/app"
	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/session"
)

var _ app.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// 约束：
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：app 层只发事件，CLI 决定如何展示
// - keepalive：请求迟迟未返回时定期输出一行等待提示
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	started     time.Time
	lastPrinted time.Time
	term        string
	page        int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh chan struct{}
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 3 * time.Second,
		tickerInterval:     time.Second,
	}
}

// PrintConfig 输出生效配置（api_key 只显示是否存在）。
func (p *progressUI) PrintConfig(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] moviefinder\n", time.Now().Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  api_key: %s\n", onOff(strings.TrimSpace(eff.APIKey) != ""))
	fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	fmt.Fprintf(p.w, "  timeout: %s\n", eff.Timeout)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  favorites: %s (%s)\n", eff.FavoritesBackend, favoritesLocation(eff))
	fmt.Fprintf(p.w, "  rottentomatoes: %s\n", onOff(eff.RTEnabled))
	fmt.Fprintln(p.w)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnSearchStart(term string, page int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = time.Now()
	p.term = term
	p.page = page
	if strings.TrimSpace(term) != "" {
		fmt.Fprintf(p.w, "搜索: %q 第 %d 页\n", truncate(term, 80), page)
	}
	p.lastPrinted = time.Now()
	p.startTickerLocked()
}

func (p *progressUI) OnSearchDone(st session.State, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()

	switch st.Status {
	case session.StatusError:
		fmt.Fprintf(p.w, "搜索: FAIL %s (%s)\n", truncate(st.Error, 160), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "搜索: OK results=%d/%d page=%d more=%s (%s)\n",
			len(st.Results), st.Total, st.Page, onOff(st.CanLoadMore), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnDetailsDone(id string, full bool, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "OK"
	if !full {
		status = "FALLBACK"
	}
	fmt.Fprintf(p.w, "详情: %s %s (%s)\n", id, status, formatShortDuration(dur))
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopTickerLocked()
	stop := make(chan struct{})
	p.stopCh = stop

	interval := p.tickerInterval
	if interval <= 0 {
		interval = time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 3 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "等待中: %q 第 %d 页 elapsed=%s\n",
						truncate(p.term, 80), p.page, formatElapsed(time.Since(p.started)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

func favoritesLocation(eff config.EffectiveConfig) string {
	switch eff.FavoritesBackend {
	case "redis":
		return eff.Redis.Addr
	case "memory":
		return "不落盘"
	default:
		return eff.FavoritesDir
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
