// internal/services/prompt_service_test.go
package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mythren/questweaver/internal/models"
)

// TestPromptBuildIncludesMandatorySections 载荷必须包含地点、玩家与指令
func TestPromptBuildIncludesMandatorySections(t *testing.T) {
	builder := NewPromptBuilder(testGameConfig())
	world := seededWorld()

	payload := builder.Build(world, "attack the goblin")

	if !strings.Contains(payload, "Forest Clearing") {
		t.Error("载荷应包含当前地点名称")
	}
	if !strings.Contains(payload, "Tester") {
		t.Error("载荷应包含玩家名字")
	}
	if !strings.Contains(payload, "attack the goblin") {
		t.Error("载荷应包含玩家指令")
	}
	if !strings.Contains(payload, "Goblin") {
		t.Error("载荷应包含在场NPC")
	}
}

// TestPromptBudgetTruncation 超预算时先丢最旧对话，指令与地点永不丢弃
func TestPromptBudgetTruncation(t *testing.T) {
	cfg := testGameConfig()
	cfg.PromptBudget = 600
	cfg.PromptTurnsPerNPC = 10
	builder := NewPromptBuilder(cfg)

	world := seededWorld()
	merchant := world.NPCs["merchant"]
	for i := 1; i <= 10; i++ {
		merchant.Memory.Append(models.DialogueTurn{
			Speaker:      models.SpeakerNPC,
			Utterance:    fmt.Sprintf("DIALOGUE_TURN_%02d with plenty of filler text to consume budget", i),
			WorldVersion: int64(i),
		})
	}

	payload := builder.Build(world, "what do you sell?")

	if len(payload) > cfg.PromptBudget {
		// 只有在强制部分本身超预算时才允许超出，本场景不应发生
		t.Fatalf("载荷超出预算: %d > %d", len(payload), cfg.PromptBudget)
	}

	// 强制部分在裁剪后仍然在场
	if !strings.Contains(payload, "Forest Clearing") {
		t.Error("裁剪后仍应保留当前地点")
	}
	if !strings.Contains(payload, "what do you sell?") {
		t.Error("裁剪后仍应保留玩家指令")
	}

	// 最旧的对话轮先被丢弃，最新的最后丢弃
	if strings.Contains(payload, "DIALOGUE_TURN_01") {
		t.Error("最旧的对话轮应最先被裁剪")
	}
	if !strings.Contains(payload, "DIALOGUE_TURN_10") {
		t.Error("最新的对话轮应最后被裁剪")
	}
}

// TestPromptInactiveQuestTruncation 对话裁尽后再丢非活跃任务摘要
func TestPromptInactiveQuestTruncation(t *testing.T) {
	cfg := testGameConfig()
	cfg.PromptBudget = 550
	builder := NewPromptBuilder(cfg)

	world := seededWorld()
	world.Quests["q_active"] = &models.Quest{
		ID: "q_active", Title: "Slay the Goblin", State: models.QuestActive,
		Summary: "ACTIVE_QUEST_SUMMARY",
	}
	world.Quests["q_done"] = &models.Quest{
		ID: "q_done", Title: "Old Errand", State: models.QuestCompleted,
		Summary: strings.Repeat("INACTIVE_QUEST_FILLER ", 20),
	}

	payload := builder.Build(world, "press on")

	if strings.Contains(payload, "INACTIVE_QUEST_FILLER") {
		t.Error("超预算时应丢弃非活跃任务摘要")
	}
	if !strings.Contains(payload, "ACTIVE_QUEST_SUMMARY") {
		t.Error("活跃任务摘要应保留")
	}
}

// TestPromptDialogueCausalOrder 对话按世界版本号升序呈现
func TestPromptDialogueCausalOrder(t *testing.T) {
	builder := NewPromptBuilder(testGameConfig())
	world := seededWorld()

	world.NPCs["merchant"].Memory.Append(models.DialogueTurn{
		Speaker: models.SpeakerNPC, Utterance: "SECOND_UTTERANCE", WorldVersion: 5,
	})
	world.NPCs["quest_giver"].Memory.Append(models.DialogueTurn{
		Speaker: models.SpeakerNPC, Utterance: "FIRST_UTTERANCE", WorldVersion: 2,
	})

	payload := builder.Build(world, "hello")

	first := strings.Index(payload, "FIRST_UTTERANCE")
	second := strings.Index(payload, "SECOND_UTTERANCE")
	if first == -1 || second == -1 {
		t.Fatal("两轮对话都应出现在载荷中")
	}
	if first > second {
		t.Error("对话应按世界版本号升序排列")
	}
}
