package app

import (
	"time"

	"github.com/John-Robertt/moviefinder/internal/session"
)

// Observer 用于把“搜索/详情的进度”从核心流程中解耦出来。
//
// 约束：
// - app 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：serve 模式下事件可能来自多个 goroutine。
type Observer interface {
	// OnSearchStart 在请求发出前调用（LoadMore/Retry 的 no-op 也会触发，由实现自行忽略）。
	OnSearchStart(term string, page int)
	// OnSearchDone 在 Search/LoadMore/Retry 返回时调用。
	OnSearchDone(st session.State, dur time.Duration)
	// OnDetailsDone 在详情面板数据就绪时调用；full=false 表示退回到了部分记录。
	OnDetailsDone(id string, full bool, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnSearchStart(string, int)                 {}
func (nopObserver) OnSearchDone(session.State, time.Duration) {}
func (nopObserver) OnDetailsDone(string, bool, time.Duration) {}
