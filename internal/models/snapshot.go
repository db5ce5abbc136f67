// internal/models/snapshot.go
package models

import "time"

// SnapshotFormatVersion 存档格式版本
const SnapshotFormatVersion = 1

// Snapshot 会话存档信封
// 记录世界版本号用于过期存档检测
type Snapshot struct {
	FormatVersion int       `json:"format_version"`
	SessionID     string    `json:"session_id"`
	WorldVersion  int64     `json:"world_version"`
	SavedAt       time.Time `json:"saved_at"`
	World         *World    `json:"world"`
}

// NewSnapshot 从当前世界聚合构造存档
func NewSnapshot(sessionID string, world *World) *Snapshot {
	return &Snapshot{
		FormatVersion: SnapshotFormatVersion,
		SessionID:     sessionID,
		WorldVersion:  world.State.Version,
		SavedAt:       time.Now(),
		World:         world.Clone(),
	}
}

// Stale 判断存档是否落后于当前内存中的世界版本
func (s *Snapshot) Stale(currentVersion int64) bool {
	return s.WorldVersion < currentVersion
}
