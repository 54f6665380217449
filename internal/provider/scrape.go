package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultPageLimit 是抓取单个页面时读取的上限。
const DefaultPageLimit = 8 << 20

// FetchPage 抓取一个页面并返回原始字节。
//
// 约束：
// - 非 2xx 返回 *HTTPStatusError（带 Location，便于识别跳转到验证页）
// - 读取最多 limit 字节（<=0 时用 DefaultPageLimit），超出部分静默截断
// - 只做一次请求；重试与否由调用方决定
func FetchPage(ctx context.Context, c *http.Client, u string, limit int64) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("http client 不能为空")
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("读取页面失败：%w", err)
	}
	return b, nil
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此区分失败发生在搜索、抓取还是解析（日志与降级文案）。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "search" / "fetch" / "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
