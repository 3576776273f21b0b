package client

import (
	"math"
	"time"
)

const (
	// SnapThreshold 硬跳阈值：漂移超过 0.5 秒时直接对齐权威位置
	SnapThreshold = 0.5
	// NudgeThreshold 微调阈值：漂移超过 0.2 秒时用速率微调平滑收敛
	NudgeThreshold = 0.2
	// NudgeRateDelta 微调幅度：±5% 播放速率
	NudgeRateDelta = 0.05
	// NudgeDuration 微调持续时间，到期后恢复正常速率
	NudgeDuration = time.Second
	// SeekSuppressWindow 本地跳转后忽略权威校正的窗口
	SeekSuppressWindow = 500 * time.Millisecond
)

// ActionKind 校正动作类型
type ActionKind int

const (
	ActionNone ActionKind = iota // 漂移不可感知，不处理
	ActionSnap                   // 硬跳到权威位置
	ActionNudge                  // 速率微调
)

// Action 漂移校正决策结果
type Action struct {
	Kind     ActionKind
	Rate     float64 // 微调速率（仅 ActionNudge）
	Duration time.Duration
}

// DecideCorrection 根据带符号漂移决定校正动作
// drift = 权威位置 - 本地位置：正值说明本地落后需要加速，负值说明
// 本地超前需要减速；阈值比较用绝对值。
func DecideCorrection(drift float64) Action {
	abs := math.Abs(drift)

	switch {
	case abs > SnapThreshold:
		return Action{Kind: ActionSnap}
	case abs > NudgeThreshold:
		rate := 1.0 + NudgeRateDelta
		if drift < 0 {
			rate = 1.0 - NudgeRateDelta
		}
		return Action{Kind: ActionNudge, Rate: rate, Duration: NudgeDuration}
	default:
		return Action{Kind: ActionNone}
	}
}
