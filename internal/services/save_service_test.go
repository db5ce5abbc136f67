// internal/services/save_service_test.go
package services

import (
	"testing"

	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/storage"
)

func newTestSaveService(t *testing.T) (*SaveService, *WorldService, *GameSession) {
	t.Helper()

	fileStorage, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}

	worlds, session := newTestSession()
	return NewSaveService(fileStorage, worlds), worlds, session
}

// TestSaveLoadRoundTrip 存档与读档往返
func TestSaveLoadRoundTrip(t *testing.T) {
	saves, _, session := newTestSaveService(t)

	// 造一点可验证的状态
	world := session.Snapshot()
	world.Player.AddItem("sword", 1)
	world.State.Version = 3
	saves.worlds.Commit(session, world)

	if saves.HasSave(session.ID) {
		t.Fatal("存档前HasSave应为false")
	}

	snapshot, err := saves.Save(session)
	if err != nil {
		t.Fatalf("保存快照不应失败: %v", err)
	}
	if snapshot.WorldVersion != 3 {
		t.Errorf("快照版本不正确，期望3，实际: %d", snapshot.WorldVersion)
	}
	if !saves.HasSave(session.ID) {
		t.Fatal("存档后HasSave应为true")
	}

	restored, stale, err := saves.Load(session.ID)
	if err != nil {
		t.Fatalf("读取快照不应失败: %v", err)
	}
	if stale {
		t.Error("存档与内存同版本时不应标记为过期")
	}

	world = restored.Snapshot()
	if world.State.Version != 3 {
		t.Errorf("恢复后的版本不正确，期望3，实际: %d", world.State.Version)
	}
	if !world.Player.HasItem("sword") {
		t.Error("恢复后的背包应包含存档时的物品")
	}
	if len(world.NPCs) != 3 {
		t.Errorf("恢复后的NPC数量不正确: %d", len(world.NPCs))
	}
}

// TestLoadStaleDetection 存档落后于内存进度时标记过期
func TestLoadStaleDetection(t *testing.T) {
	saves, worlds, session := newTestSaveService(t)

	if _, err := saves.Save(session); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	// 存档之后内存继续推进
	world := session.Snapshot()
	world.State.Version = 5
	worlds.Commit(session, world)

	restored, stale, err := saves.Load(session.ID)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if !stale {
		t.Error("存档版本落后于内存时应标记为过期")
	}
	if restored.Snapshot().State.Version != 0 {
		t.Error("恢复应采用存档中的版本")
	}
}

// TestLoadMissingSave 不存在的存档返回持久化错误
func TestLoadMissingSave(t *testing.T) {
	saves, _, _ := newTestSaveService(t)

	_, _, err := saves.Load("no-such-session")
	if !apperrors.IsPersistenceError(err) {
		t.Fatalf("缺失存档应返回PersistenceError，实际: %v", err)
	}
}
