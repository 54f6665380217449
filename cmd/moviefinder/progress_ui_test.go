package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/moviefinder/internal/config"
	"github.com/John-Robertt/moviefinder/internal/domain"
	"github.com/John-Robertt/moviefinder/internal/session"
)

func TestProgressUI_SearchLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnSearchStart("matrix", 1)
	p.OnSearchDone(session.State{
		Status:      session.StatusReady,
		Page:        1,
		Total:       25,
		Results:     make([]domain.Movie, 10),
		CanLoadMore: true,
	}, 1500*time.Millisecond)
	p.OnSearchStart("zzz", 1)
	p.OnSearchDone(session.State{Status: session.StatusError, Error: session.ErrMsgNoResults}, 200*time.Millisecond)
	p.OnDetailsDone("tt1", false, time.Second)

	out := buf.String()
	for _, want := range []string{
		`搜索: "matrix" 第 1 页`,
		"搜索: OK results=10/25 page=1 more=on (1.5s)",
		"搜索: FAIL " + session.ErrMsgNoResults,
		"详情: tt1 FALLBACK (1.0s)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestProgressUI_KeepaliveWhileWaiting(t *testing.T) {
	var buf syncBuffer
	p := newProgressUI(&buf)
	p.keepaliveThreshold = 10 * time.Millisecond
	p.tickerInterval = 5 * time.Millisecond

	p.OnSearchStart("slow", 2)
	time.Sleep(60 * time.Millisecond)
	p.OnSearchDone(session.State{Status: session.StatusReady}, 60*time.Millisecond)

	if !strings.Contains(buf.String(), `等待中: "slow" 第 2 页`) {
		t.Fatalf("期望 keepalive 行，实际：\n%s", buf.String())
	}
}

func TestProgressUI_PrintConfigHidesKey(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.PrintConfig(config.EffectiveConfig{
		APIKey:           "secret",
		BaseURL:          "https://www.omdbapi.com",
		ProxyURL:         "http://user:pw@proxy.local:8080",
		FavoritesBackend: "redis",
		Redis:            config.RedisConfig{Addr: "127.0.0.1:6379"},
	})
	out := buf.String()
	if strings.Contains(out, "secret") || strings.Contains(out, "pw@") {
		t.Fatalf("不应输出凭证：\n%s", out)
	}
	if !strings.Contains(out, "api_key: on") || !strings.Contains(out, "auth=on") || !strings.Contains(out, "redis (127.0.0.1:6379)") {
		t.Fatalf("配置输出不完整：\n%s", out)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncate("黑客帝国：重装上阵", 6); got != "黑客帝..." {
		t.Fatalf("truncate 错误：%q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate 错误：%q", got)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
