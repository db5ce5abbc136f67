// internal/models/quest_test.go
package models

import "testing"

// TestLegalQuestTransition 测试任务状态机的合法转移边
func TestLegalQuestTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  QuestState
		to    QuestState
		legal bool
	}{
		{"发现任务", QuestUndiscovered, QuestOffered, true},
		{"接受任务", QuestOffered, QuestActive, true},
		{"拒绝任务", QuestOffered, QuestAbandoned, true},
		{"完成任务", QuestActive, QuestCompleted, true},
		{"任务失败", QuestActive, QuestFailed, true},
		{"放弃任务", QuestActive, QuestAbandoned, true},
		{"跳过接受直接完成", QuestOffered, QuestCompleted, false},
		{"未发现直接激活", QuestUndiscovered, QuestActive, false},
		{"完成后再失败", QuestCompleted, QuestFailed, false},
		{"放弃后复活", QuestAbandoned, QuestActive, false},
		{"失败后完成", QuestFailed, QuestCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LegalQuestTransition(tt.from, tt.to); got != tt.legal {
				t.Errorf("%s→%s 的合法性判断不正确，期望: %v，实际: %v", tt.from, tt.to, tt.legal, got)
			}
		})
	}
}

// TestQuestStateIsTerminal 终态判定
func TestQuestStateIsTerminal(t *testing.T) {
	terminal := []QuestState{QuestCompleted, QuestFailed, QuestAbandoned}
	for _, st := range terminal {
		if !st.IsTerminal() {
			t.Errorf("%s 应为终态", st)
		}
	}

	open := []QuestState{QuestUndiscovered, QuestOffered, QuestActive}
	for _, st := range open {
		if st.IsTerminal() {
			t.Errorf("%s 不应为终态", st)
		}
	}
}

func questTestWorld() *World {
	return &World{
		State: WorldState{
			CurrentLocation: "forest_clearing",
			Flags:           make(map[string]bool),
		},
		Player: &PlayerCharacter{
			ID:        "player",
			Stats:     map[string]int{"hp": 100},
			Inventory: map[string]int{"sword": 1},
		},
		NPCs: map[string]*NPC{
			"goblin": {ID: "goblin", Active: true, Memory: NewNPCMemory(5)},
			"smith":  {ID: "smith", Active: true, Memory: NewNPCMemory(5)},
		},
		Locations: map[string]*Location{
			"forest_clearing": {ID: "forest_clearing"},
			"deep_forest":     {ID: "deep_forest"},
		},
		Quests: make(map[string]*Quest),
	}
}

// TestQuestSatisfied 各类目标谓词的独立判定
func TestQuestSatisfied(t *testing.T) {
	t.Run("defeat目标在NPC去活后达成", func(t *testing.T) {
		w := questTestWorld()
		q := &Quest{Objective: ObjectivePredicate{Kind: ObjectiveDefeat, TargetNPC: "goblin"}}

		if q.Satisfied(w) {
			t.Error("NPC仍活跃时defeat目标不应达成")
		}
		w.NPCs["goblin"].Active = false
		if !q.Satisfied(w) {
			t.Error("NPC去活后defeat目标应达成")
		}
	})

	t.Run("talk_to目标在有对话记忆后达成", func(t *testing.T) {
		w := questTestWorld()
		q := &Quest{Objective: ObjectivePredicate{Kind: ObjectiveTalkTo, TargetNPC: "smith"}}

		if q.Satisfied(w) {
			t.Error("无对话记忆时talk_to目标不应达成")
		}
		w.NPCs["smith"].Memory.Append(DialogueTurn{Utterance: "hello", WorldVersion: 1})
		if !q.Satisfied(w) {
			t.Error("有对话记忆后talk_to目标应达成")
		}
	})

	t.Run("deliver目标需要物品离手且交付标志置位", func(t *testing.T) {
		w := questTestWorld()
		q := &Quest{Objective: ObjectivePredicate{Kind: ObjectiveDeliver, TargetNPC: "smith", ItemID: "sword"}}

		if q.Satisfied(w) {
			t.Error("物品仍在玩家背包时deliver目标不应达成")
		}

		// 只置标志、物品未离手：仍不达成
		w.State.Flags[DeliveryFlag("sword", "smith")] = true
		if q.Satisfied(w) {
			t.Error("物品未离手时deliver目标不应达成")
		}

		delete(w.Player.Inventory, "sword")
		if !q.Satisfied(w) {
			t.Error("物品离手且交付标志置位后deliver目标应达成")
		}
	})

	t.Run("reach目标按当前地点判定", func(t *testing.T) {
		w := questTestWorld()
		q := &Quest{Objective: ObjectivePredicate{Kind: ObjectiveReach, LocationID: "deep_forest"}}

		if q.Satisfied(w) {
			t.Error("未到达目标地点时reach目标不应达成")
		}
		w.State.CurrentLocation = "deep_forest"
		if !q.Satisfied(w) {
			t.Error("到达目标地点后reach目标应达成")
		}
	})
}

// TestQuestUnsatisfiable 目标永久无法达成的判定
func TestQuestUnsatisfiable(t *testing.T) {
	w := questTestWorld()
	q := &Quest{
		State:     QuestActive,
		Objective: ObjectivePredicate{Kind: ObjectiveTalkTo, TargetNPC: "smith"},
	}

	if q.Unsatisfiable(w) {
		t.Error("目标NPC活跃时不应判定为无法达成")
	}

	w.NPCs["smith"].Active = false
	if !q.Unsatisfiable(w) {
		t.Error("目标NPC已去活且未达成时应判定为无法达成")
	}

	// 尚未出场的NPC还可能被创建，不应判定为无法达成
	q2 := &Quest{Objective: ObjectivePredicate{Kind: ObjectiveTalkTo, TargetNPC: "stranger"}}
	if q2.Unsatisfiable(w) {
		t.Error("NPC尚未出场时不应判定为无法达成")
	}
}
