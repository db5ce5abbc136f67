// internal/services/quest_service_test.go
package services

import (
	"testing"

	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
)

// TestQuestLifecycle 标准生命周期：Offer→Accept→Complete
func TestQuestLifecycle(t *testing.T) {
	quests := NewQuestService()
	world := seededWorld()

	quest := quests.Offer(world, "Slay the Goblin", "The goblin menaces the clearing.",
		models.ObjectivePredicate{Kind: models.ObjectiveDefeat, TargetNPC: "goblin"},
		models.Reward{XP: 10, Gold: 5})

	if quest.State != models.QuestOffered {
		t.Fatalf("新任务应处于Offered状态，实际: %s", quest.State)
	}
	if world.Quests[quest.ID] == nil {
		t.Fatal("任务应已登记到世界聚合")
	}

	if err := quests.Accept(world, quest.ID); err != nil {
		t.Fatalf("接受任务不应失败: %v", err)
	}
	if quest.State != models.QuestActive {
		t.Errorf("接受后应为Active，实际: %s", quest.State)
	}

	// 谓词未达成时完成被驳回
	err := quests.Complete(world, quest.ID)
	if !apperrors.IsValidationError(err) {
		t.Fatalf("谓词未达成的完成应返回ValidationError，实际: %v", err)
	}
	if quest.State != models.QuestActive {
		t.Error("被驳回的完成不应改变任务状态")
	}

	world.NPCs["goblin"].Active = false
	if err := quests.Complete(world, quest.ID); err != nil {
		t.Fatalf("谓词达成后完成不应失败: %v", err)
	}
	if quest.State != models.QuestCompleted {
		t.Errorf("完成后应为Completed，实际: %s", quest.State)
	}
	if world.Player.Stats["xp"] != 10 || world.Player.Inventory["gold"] != 15 {
		t.Error("完成后应发放奖励")
	}
}

// TestQuestIllegalTransitions 非法转移的错误类型
func TestQuestIllegalTransitions(t *testing.T) {
	quests := NewQuestService()
	world := seededWorld()

	quest := quests.Offer(world, "Errand", "",
		models.ObjectivePredicate{Kind: models.ObjectiveReach, LocationID: "deep_forest"},
		models.Reward{})

	// Offered状态不能直接Fail
	if err := quests.Fail(world, quest.ID); !apperrors.IsIllegalTransitionError(err) {
		t.Errorf("Offered→Failed应返回IllegalTransitionError，实际: %v", err)
	}

	// 未知任务
	if err := quests.Accept(world, "no_such_quest"); !apperrors.IsReferenceError(err) {
		t.Errorf("未知任务应返回ReferenceError，实际: %v", err)
	}

	// 终态任务不再转移
	quest.State = models.QuestAbandoned
	if err := quests.Accept(world, quest.ID); !apperrors.IsIllegalTransitionError(err) {
		t.Errorf("终态任务的转移应返回IllegalTransitionError，实际: %v", err)
	}
}

// TestQuestDecline 拒绝只对Offered状态合法
func TestQuestDecline(t *testing.T) {
	quests := NewQuestService()
	world := seededWorld()

	quest := quests.Offer(world, "Errand", "",
		models.ObjectivePredicate{Kind: models.ObjectiveReach, LocationID: "deep_forest"},
		models.Reward{})

	if err := quests.Decline(world, quest.ID); err != nil {
		t.Fatalf("拒绝Offered任务不应失败: %v", err)
	}
	if quest.State != models.QuestAbandoned {
		t.Errorf("拒绝后应为Abandoned，实际: %s", quest.State)
	}

	quest2 := quests.Offer(world, "Errand 2", "",
		models.ObjectivePredicate{Kind: models.ObjectiveReach, LocationID: "deep_forest"},
		models.Reward{})
	quests.Accept(world, quest2.ID)
	if err := quests.Decline(world, quest2.ID); !apperrors.IsIllegalTransitionError(err) {
		t.Errorf("拒绝Active任务应返回IllegalTransitionError，实际: %v", err)
	}
}

// TestJournalKeepsTerminalQuests 终态任务保留在日志中
func TestJournalKeepsTerminalQuests(t *testing.T) {
	quests := NewQuestService()
	world := seededWorld()

	q1 := quests.Offer(world, "Done Deal", "",
		models.ObjectivePredicate{Kind: models.ObjectiveReach, LocationID: "forest_clearing"},
		models.Reward{})
	quests.Accept(world, q1.ID)
	quests.Complete(world, q1.ID)

	q2 := quests.Offer(world, "Ongoing", "",
		models.ObjectivePredicate{Kind: models.ObjectiveReach, LocationID: "deep_forest"},
		models.Reward{})
	quests.Accept(world, q2.ID)

	journal := quests.Journal(world)
	if len(journal) != 2 {
		t.Fatalf("日志应包含全部任务（含终态），期望2，实际: %d", len(journal))
	}

	active := quests.ActiveQuests(world)
	if len(active) != 1 || active[0].ID != q2.ID {
		t.Error("活跃任务列表应只包含未终结的任务")
	}
}
