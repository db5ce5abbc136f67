// internal/services/save_service.go
package services

import (
	"fmt"

	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/storage"
	"github.com/mythren/questweaver/internal/utils"
)

// SaveService 会话存档：基于原子JSON文件存储的快照持久化
// 存档失败是非致命的，内存状态仍然权威
type SaveService struct {
	storage *storage.FileStorage
	worlds  *WorldService
	logger  *utils.Logger
}

// NewSaveService 创建存档服务
func NewSaveService(fileStorage *storage.FileStorage, worlds *WorldService) *SaveService {
	return &SaveService{
		storage: fileStorage,
		worlds:  worlds,
		logger:  utils.GetLogger(),
	}
}

func saveDir(sessionID string) string {
	return "saves/" + sessionID
}

// Save 保存会话快照
func (s *SaveService) Save(session *GameSession) (*models.Snapshot, error) {
	snapshot := models.NewSnapshot(session.ID, session.Snapshot())

	if err := s.storage.SaveJSONFile(saveDir(session.ID), "snapshot.json", snapshot); err != nil {
		s.logger.Error("保存快照失败", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return nil, apperrors.NewPersistenceError("保存存档失败", err)
	}

	s.logger.Info("快照已保存", map[string]interface{}{
		"session_id":    session.ID,
		"world_version": snapshot.WorldVersion,
	})

	return snapshot, nil
}

// Load 读取会话快照并恢复为内存会话
// 快照落后于当前内存版本时返回快照与过期警告标记
func (s *SaveService) Load(sessionID string) (*GameSession, bool, error) {
	var snapshot models.Snapshot
	if err := s.storage.LoadJSONFile(saveDir(sessionID), "snapshot.json", &snapshot); err != nil {
		return nil, false, apperrors.NewPersistenceError("读取存档失败", err)
	}

	if snapshot.FormatVersion != models.SnapshotFormatVersion {
		return nil, false, apperrors.NewPersistenceError(
			fmt.Sprintf("存档格式版本不兼容: %d", snapshot.FormatVersion), nil)
	}
	if snapshot.World == nil {
		return nil, false, apperrors.NewPersistenceError("存档缺少世界数据", nil)
	}

	// 过期检测：存档的世界版本落后于仍在内存中的同ID会话
	stale := false
	if existing, err := s.worlds.GetSession(sessionID); err == nil {
		existing.mu.RLock()
		currentVersion := existing.World.State.Version
		existing.mu.RUnlock()
		stale = snapshot.Stale(currentVersion)
	}

	session := s.worlds.RestoreSession(&snapshot)

	s.logger.Info("快照已恢复", map[string]interface{}{
		"session_id":    sessionID,
		"world_version": snapshot.WorldVersion,
		"stale":         stale,
	})

	return session, stale, nil
}

// HasSave 检查会话是否有存档
func (s *SaveService) HasSave(sessionID string) bool {
	return s.storage.FileExists(saveDir(sessionID), "snapshot.json")
}
