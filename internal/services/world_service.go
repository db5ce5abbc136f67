// internal/services/world_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mythren/questweaver/internal/config"
	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// GameSession 一个游戏会话：权威世界聚合加回合计数
type GameSession struct {
	ID          string
	World       *models.World
	TurnCounter int64 // 已尝试的回合数（含兜底回合），用于确定性选择兜底文案
	CreatedAt   time.Time

	// 保护World指针的替换与读取；回合互斥由编排器负责
	mu sync.RWMutex
}

// Snapshot 返回当前世界聚合的深拷贝，供只读消费
func (gs *GameSession) Snapshot() *models.World {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.World.Clone()
}

// WorldService 世界状态存储：会话注册表与原子提交
// 世界聚合只能经由Commit整体替换，版本号在提交路径上递增
type WorldService struct {
	sessions map[string]*GameSession
	mu       sync.RWMutex

	gameConfig config.GameConfig
	logger     *utils.Logger
}

// NewWorldService 创建世界状态服务
func NewWorldService(gameConfig config.GameConfig) *WorldService {
	return &WorldService{
		sessions:   make(map[string]*GameSession),
		gameConfig: gameConfig,
		logger:     utils.GetLogger(),
	}
}

// CreateSession 创建新会话并播种初始世界
func (s *WorldService) CreateSession(playerName string) *GameSession {
	session := &GameSession{
		ID:        uuid.NewString(),
		World:     s.seedWorld(playerName),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("会话已创建", map[string]interface{}{
		"session_id": session.ID,
		"player":     playerName,
	})

	return session
}

// GetSession 查找会话
func (s *WorldService) GetSession(sessionID string) (*GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("会话不存在: %s", sessionID), nil)
	}
	return session, nil
}

// RestoreSession 从存档恢复会话（覆盖同ID的内存会话）
func (s *WorldService) RestoreSession(snapshot *models.Snapshot) *GameSession {
	session := &GameSession{
		ID:        snapshot.SessionID,
		World:     snapshot.World.Clone(),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Commit 原子提交：用已提交的工作副本整体替换会话的世界聚合
// 调用方（事件应用器）保证副本上的版本号已+1
func (s *WorldService) Commit(session *GameSession, committed *models.World) {
	session.mu.Lock()
	session.World = committed
	session.mu.Unlock()
}

// seedWorld 播种初始世界：林间空地、三个NPC、标准开局属性
func (s *WorldService) seedWorld(playerName string) *models.World {
	if playerName == "" {
		playerName = "Adventurer"
	}

	memCap := s.gameConfig.NPCMemoryCapacity

	world := &models.World{
		State: models.WorldState{
			Version:         0,
			CurrentLocation: "forest_clearing",
			Flags:           make(map[string]bool),
			UpdatedAt:       time.Now(),
		},
		Player: &models.PlayerCharacter{
			ID:    "player",
			Name:  playerName,
			Class: "wanderer",
			Stats: map[string]int{
				"hp":       100,
				"strength": 10,
			},
			Inventory: map[string]int{
				"gold": 10,
			},
			Location: "forest_clearing",
		},
		NPCs: map[string]*models.NPC{
			"goblin": {
				ID:          "goblin",
				Name:        "Goblin",
				Type:        models.NPCTypeEnemy,
				Location:    "forest_clearing",
				Disposition: -50,
				Active:      true,
				Memory:      models.NewNPCMemory(memCap),
			},
			"merchant": {
				ID:          "merchant",
				Name:        "Merchant",
				Type:        models.NPCTypeMerchant,
				Location:    "forest_clearing",
				Disposition: 10,
				Active:      true,
				Memory:      models.NewNPCMemory(memCap),
			},
			"quest_giver": {
				ID:          "quest_giver",
				Name:        "Quest Giver",
				Type:        models.NPCTypeQuestGiver,
				Location:    "forest_clearing",
				Disposition: 20,
				Active:      true,
				Memory:      models.NewNPCMemory(memCap),
			},
		},
		Locations: map[string]*models.Location{
			"forest_clearing": {
				ID:          "forest_clearing",
				Name:        "Forest Clearing",
				Description: "A sunlit clearing ringed by ancient oaks. A worn path leads deeper into the woods.",
				Exits:       []string{"deep_forest"},
			},
			"deep_forest": {
				ID:          "deep_forest",
				Name:        "Deep Forest",
				Description: "The canopy swallows the light here. Something rustles in the undergrowth.",
				Exits:       []string{"forest_clearing"},
			},
		},
		Quests: make(map[string]*models.Quest),
	}

	return world
}
