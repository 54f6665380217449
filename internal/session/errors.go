package session

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/John-Robertt/moviefinder/internal/provider"
)

// 展示给用户的固定文案。
const (
	ErrMsgMissingCredential = "需要 OMDb API key：请在配置文件中设置 api_key，或设置环境变量 OMDB_API_KEY"
	ErrMsgEmptyTerm         = "请输入搜索词"
	ErrMsgNoResults         = "没有找到电影"
	ErrMsgFetchFailed       = "获取电影失败"
)

// humanize 把远端/传输错误转成可操作的中文文案。
func humanize(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, provider.ErrMissingCredential) {
		return ErrMsgMissingCredential
	}

	var re *provider.RemoteError
	if errors.As(err, &re) {
		if msg := strings.TrimSpace(re.Message); msg != "" {
			return msg
		}
		return ErrMsgNoResults
	}

	var he *provider.HTTPStatusError
	if errors.As(err, &he) {
		switch {
		case he.StatusCode == http.StatusUnauthorized:
			return fmt.Sprintf("%s（HTTP 401）：API key 无效或已达当日额度", ErrMsgFetchFailed)
		case he.StatusCode == http.StatusTooManyRequests:
			return fmt.Sprintf("%s（HTTP 429）：请求过于频繁，请稍后重试", ErrMsgFetchFailed)
		case he.StatusCode >= 500:
			return fmt.Sprintf("%s（HTTP %d）：服务暂时不可用，请稍后重试", ErrMsgFetchFailed, he.StatusCode)
		default:
			return fmt.Sprintf("%s（HTTP %d）", ErrMsgFetchFailed, he.StatusCode)
		}
	}

	if errors.Is(err, context.Canceled) {
		return ErrMsgFetchFailed + "：请求已取消"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrMsgFetchFailed + "：请求超时"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrMsgFetchFailed + "：请求超时"
	}

	var ua x509.UnknownAuthorityError
	var hn x509.HostnameError
	if errors.As(err, &ua) || errors.As(err, &hn) {
		return ErrMsgFetchFailed + "：TLS 证书校验失败（检查代理或系统时间）"
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return ErrMsgFetchFailed + "：无法解析域名（检查网络或代理）"
	}

	return ErrMsgFetchFailed
}
