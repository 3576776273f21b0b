package room

import (
	"SyncFM/logger"
)

// runSyncLoop 房间心跳循环
// 房间在播放状态时按固定间隔向所有成员推送权威进度，修正两次状态变更
// 之间累积的时钟漂移。每个房间一个循环，房间销毁时随之退出。
func (reg *Registry) runSyncLoop(r *Room) {
	ticker := reg.clock.NewTicker(reg.opts.SyncInterval)
	defer ticker.Stop()

	logger.Debug("房间心跳循环启动", logger.String("roomId", r.ID))

	for {
		select {
		case now := <-ticker.Chan():
			data, ok := r.SyncState(now)
			if !ok {
				continue // 暂停中无需心跳
			}
			reg.hub.BroadcastMessage(r.ID, MsgTypeSync, data, "")

		case <-r.stop:
			logger.Debug("房间心跳循环退出", logger.String("roomId", r.ID))
			return
		}
	}
}
