package run

import (
	"time"

	"github.com/kompoti121/kompoti/internal/domain"
)

// Observer 用于把“周期进度/条目结果”从核心流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不决定如何展示（日志/终端由 CLI 决定）
// - 事件都在 Loop 所在的 goroutine 上同步触发；实现不要阻塞
type Observer interface {
	// OnCycleStart 在每个周期开始、抓取列表页之前调用。
	OnCycleStart(cycleID string, started time.Time)
	// OnItemDone 在每条候选记录合并完成时调用（idx 从 0 开始）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
	// OnCycleDone 在周期结束时调用（无论是否有变更、是否抓取失败）。
	OnCycleDone(rep domain.CycleReport, dur time.Duration)
}
