package provider

import (
	"context"
	"errors"

	"github.com/John-Robertt/moviefinder/internal/domain"
)

// ErrMissingCredential 表示没有配置电影库的访问凭证（API key）。
// 调用方必须在发请求之前检查 HasCredential，该错误只作为兜底。
var ErrMissingCredential = errors.New("missing api credential")

// SearchPage 是按词搜索返回的一页结果。
type SearchPage struct {
	Movies []domain.Movie
	// Total 是来源报告的总条数；缺失或非数字时为 0。
	Total int
}

// Provider 把“电影库的线上格式”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 domain.Movie。
//
// 约束：
// - 每个操作只发一次请求：不缓存、不重试、不限速
// - 来源明确报告“无结果/未找到”时返回 *RemoteError（携带来源给出的文案）
// - 非 2xx 返回 *HTTPStatusError；传输失败原样返回（可被 errors.Is 识别超时/取消）
type Provider interface {
	Name() string
	HasCredential() bool
	Search(ctx context.Context, term string, page int) (SearchPage, error)
	Lookup(ctx context.Context, id string) (domain.Movie, error)
}
