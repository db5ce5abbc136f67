// internal/services/applier_service_test.go
package services

import (
	"testing"

	"github.com/mythren/questweaver/internal/models"
)

func newTestApplier() *EventApplier {
	return NewEventApplier(NewQuestService(), testGameConfig())
}

// TestApplyDeliverScenario 交付场景：把剑交给NPC
// 版本+1、物品转移、交付标志置位、原聚合不被触碰
func TestApplyDeliverScenario(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()
	world.Player.AddItem("sword", 1)
	baseVersion := world.State.Version

	proposal := &models.EffectProposal{
		Narration: "The merchant takes the sword with a grin.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentRemoveItem, ItemID: "sword", Count: 1, Target: "player"},
			{Kind: models.IntentGrantItem, ItemID: "sword", Count: 1, Target: "merchant"},
			{Kind: models.IntentSpeakNPC, NPCID: "merchant", Text: "A fine blade indeed."},
		},
	}

	committed, result, err := applier.Apply(world, proposal, "give the sword to the merchant")
	if err != nil {
		t.Fatalf("应用合法提案不应失败: %v", err)
	}

	if committed.State.Version != baseVersion+1 {
		t.Errorf("版本号应+1，期望: %d，实际: %d", baseVersion+1, committed.State.Version)
	}
	if result.WorldVersion != committed.State.Version {
		t.Error("结果中的版本号应与提交后的聚合一致")
	}

	if committed.Player.HasItem("sword") {
		t.Error("剑应已离开玩家背包")
	}
	if committed.NPCs["merchant"].Inventory["sword"] != 1 {
		t.Error("剑应进入商人的物品栏")
	}
	if !committed.State.Flags[models.DeliveryFlag("sword", "merchant")] {
		t.Error("交付标志应已置位")
	}

	// NPC发言与玩家指令都应进入商人的对话记忆
	memory := committed.NPCs["merchant"].Memory
	if memory.Len() != 2 {
		t.Fatalf("商人记忆应有2轮（NPC发言+玩家指令），实际: %d", memory.Len())
	}
	if memory.Turns[1].Speaker != models.SpeakerPlayer {
		t.Error("玩家指令应计入对话记忆")
	}

	// 原聚合不被触碰
	if world.State.Version != baseVersion {
		t.Error("原聚合的版本号不应改变")
	}
	if !world.Player.HasItem("sword") {
		t.Error("原聚合的玩家背包不应改变")
	}
}

// TestApplyAtomicity 中途失败时不产生任何可见变更
func TestApplyAtomicity(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()
	baseGold := world.Player.Inventory["gold"]

	proposal := &models.EffectProposal{
		Narration: "Chaos.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentGrantItem, ItemID: "gem", Count: 1, Target: "player"},
			// 玩家没有这么多金币，移除会失败
			{Kind: models.IntentRemoveItem, ItemID: "gold", Count: 9999, Target: "player"},
		},
	}

	committed, result, err := applier.Apply(world, proposal, "spend everything")
	if err == nil {
		t.Fatal("数量不足的移除应使整个提案失败")
	}
	if committed != nil || result != nil {
		t.Error("失败时不应返回已提交的聚合或结果")
	}

	if world.Player.HasItem("gem") {
		t.Error("失败的提案不应留下任何部分变更")
	}
	if world.Player.Inventory["gold"] != baseGold {
		t.Error("原聚合的金币数量不应改变")
	}
}

// TestApplyPredicateFalseCompletionSkipped 谓词不成立的完成声明只跳过该意图
func TestApplyPredicateFalseCompletionSkipped(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()
	world.Quests["q1"] = &models.Quest{
		ID: "q1", Title: "Slay the Goblin", State: models.QuestActive,
		Objective: models.ObjectivePredicate{Kind: models.ObjectiveDefeat, TargetNPC: "goblin"},
		Reward:    models.Reward{XP: 10, Gold: 5},
	}

	proposal := &models.EffectProposal{
		Narration: "Victory! ...or so you claim.",
		Intents: []models.EffectIntent{
			// 哥布林仍然活跃，完成声明是模型幻觉
			{Kind: models.IntentCompleteQuest, QuestID: "q1"},
			{Kind: models.IntentModifyDisposition, NPCID: "merchant", Delta: 5},
		},
	}

	committed, result, err := applier.Apply(world, proposal, "I defeated the goblin")
	if err != nil {
		t.Fatalf("谓词不成立的完成声明不应使整个提案失败: %v", err)
	}

	if committed.Quests["q1"].State != models.QuestActive {
		t.Error("谓词不成立时任务状态不应改变")
	}
	if committed.Player.Stats["xp"] != 0 {
		t.Error("未完成的任务不应发放奖励")
	}
	// 其余意图照常应用
	if committed.NPCs["merchant"].Disposition != 15 {
		t.Errorf("后续意图应照常应用，商人好感度期望15，实际: %d", committed.NPCs["merchant"].Disposition)
	}
	if result.WorldVersion != world.State.Version+1 {
		t.Error("提案其余部分应用后版本仍应+1")
	}
}

// TestApplyPredicateTrueCompletion 谓词成立时完成任务并发放奖励
func TestApplyPredicateTrueCompletion(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()
	world.Quests["q1"] = &models.Quest{
		ID: "q1", Title: "Slay the Goblin", State: models.QuestActive,
		Objective: models.ObjectivePredicate{Kind: models.ObjectiveDefeat, TargetNPC: "goblin"},
		Reward:    models.Reward{XP: 10, Gold: 5},
	}
	baseGold := world.Player.Inventory["gold"]

	proposal := &models.EffectProposal{
		Narration: "The goblin falls.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentDeactivateNPC, NPCID: "goblin"},
			{Kind: models.IntentCompleteQuest, QuestID: "q1"},
		},
	}

	committed, _, err := applier.Apply(world, proposal, "strike the goblin down")
	if err != nil {
		t.Fatalf("合法的完成不应失败: %v", err)
	}

	if committed.Quests["q1"].State != models.QuestCompleted {
		t.Errorf("任务应已完成，实际状态: %s", committed.Quests["q1"].State)
	}
	if committed.Player.Stats["xp"] != 10 {
		t.Errorf("应发放10点经验，实际: %d", committed.Player.Stats["xp"])
	}
	if committed.Player.Inventory["gold"] != baseGold+5 {
		t.Errorf("应发放5金币，期望: %d，实际: %d", baseGold+5, committed.Player.Inventory["gold"])
	}
}

// TestApplyDispositionClampedToBounds 好感度应用后钳制在配置边界内
func TestApplyDispositionClampedToBounds(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()

	proposal := &models.EffectProposal{
		Narration: "The goblin is enraged beyond measure.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentModifyDisposition, NPCID: "goblin", Delta: -200},
		},
	}

	committed, _, err := applier.Apply(world, proposal, "insult the goblin")
	if err != nil {
		t.Fatalf("应用失败: %v", err)
	}
	if committed.NPCs["goblin"].Disposition != testGameConfig().DispositionMin {
		t.Errorf("好感度应钳制在下界%d，实际: %d",
			testGameConfig().DispositionMin, committed.NPCs["goblin"].Disposition)
	}
}

// TestApplyCreateNPCDefaults create_npc的默认地点与原型
func TestApplyCreateNPCDefaults(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()

	proposal := &models.EffectProposal{
		Narration: "A stranger steps out of the shadows.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentCreateNPC, NPCID: "stranger", NPCName: "Hooded Stranger"},
		},
	}

	committed, _, err := applier.Apply(world, proposal, "look around")
	if err != nil {
		t.Fatalf("应用失败: %v", err)
	}

	stranger := committed.NPCs["stranger"]
	if stranger == nil {
		t.Fatal("新NPC应已创建")
	}
	if stranger.Location != world.State.CurrentLocation {
		t.Error("未指定地点时新NPC应出现在当前地点")
	}
	if stranger.Type != models.NPCTypeGeneric {
		t.Error("未指定原型时应为generic")
	}
	if !stranger.Active {
		t.Error("新NPC应处于活跃状态")
	}
	if stranger.Memory == nil || stranger.Memory.Capacity != testGameConfig().NPCMemoryCapacity {
		t.Error("新NPC应带有配置容量的对话记忆")
	}
}

// TestApplySweepUnsatisfiable 提交前自动判废无法达成的任务
func TestApplySweepUnsatisfiable(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()
	world.Quests["q1"] = &models.Quest{
		ID: "q1", Title: "Chat with the Merchant", State: models.QuestActive,
		Objective: models.ObjectivePredicate{Kind: models.ObjectiveTalkTo, TargetNPC: "merchant"},
	}

	proposal := &models.EffectProposal{
		Narration: "The merchant collapses.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentDeactivateNPC, NPCID: "merchant"},
		},
	}

	committed, result, err := applier.Apply(world, proposal, "watch in horror")
	if err != nil {
		t.Fatalf("应用失败: %v", err)
	}

	if committed.Quests["q1"].State != models.QuestFailed {
		t.Errorf("目标已无法达成的任务应自动判废，实际状态: %s", committed.Quests["q1"].State)
	}

	found := false
	for _, effect := range result.AppliedEffects {
		if effect == "quest q1 failed: objective no longer attainable" {
			found = true
		}
	}
	if !found {
		t.Error("自动判废应出现在效果摘要中")
	}
}

// TestApplyEmitNarrationAppended emit_narration的文本拼入最终叙述
func TestApplyEmitNarrationAppended(t *testing.T) {
	applier := newTestApplier()
	world := seededWorld()

	proposal := &models.EffectProposal{
		Narration: "Main narration.",
		Intents: []models.EffectIntent{
			{Kind: models.IntentEmitNarration, Text: "EXTRA_SCENE_DETAIL"},
		},
	}

	_, result, err := applier.Apply(world, proposal, "look closer")
	if err != nil {
		t.Fatalf("应用失败: %v", err)
	}
	if result.Narration != "Main narration.\n\nEXTRA_SCENE_DETAIL" {
		t.Errorf("附加叙述应拼接到主叙述之后，实际: %q", result.Narration)
	}
}
