// internal/services/helpers_test.go
package services

import (
	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/models"
)

// testGameConfig 测试用的标准调优参数
func testGameConfig() config.GameConfig {
	return config.GameConfig{
		NPCMemoryCapacity:     20,
		PromptTurnsPerNPC:     5,
		PromptBudget:          4000,
		GatewayTimeoutSeconds: 30,
		MaxTurnRetries:        2,
		DispositionMin:        -100,
		DispositionMax:        100,
	}
}

// newTestSession 创建带标准种子世界的测试会话
func newTestSession() (*WorldService, *GameSession) {
	worlds := NewWorldService(testGameConfig())
	session := worlds.CreateSession("Tester")
	return worlds, session
}

// seededWorld 返回标准种子世界的独立副本
func seededWorld() *models.World {
	_, session := newTestSession()
	return session.Snapshot()
}
