package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示来源返回了非 2xx 的 HTTP 状态码。
// provider 可以返回该错误，让上层生成更可操作的错误文案。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// RemoteError 表示来源给出了格式正确的“失败”响应（例如 Response=False / Movie not found!）。
// Message 是来源原文，可能为空；为空时由上层使用兜底文案。
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return "remote error"
	}
	return strings.TrimSpace(e.Message)
}
