// internal/services/applier_service.go
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/mythren/questweaver/internal/config"
	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// TurnResult 一个已提交回合的对外产物：叙述文本加已应用效果摘要
// 这是跨越展示边界的唯一数据
type TurnResult struct {
	Narration      string   `json:"narration"`
	AppliedEffects []string `json:"applied_effects"`
	WorldVersion   int64    `json:"world_version"`
	Fallback       bool     `json:"fallback"`
}

// EventApplier 事件应用器
// 在工作副本上按序应用效果提案的每条意图，全部成功才整体提交；
// 任务完成声明在这里独立复核目标谓词，作为对模型幻觉的一致性兜底
type EventApplier struct {
	quests     *QuestService
	gameConfig config.GameConfig
	logger     *utils.Logger
}

// NewEventApplier 创建事件应用器
func NewEventApplier(quests *QuestService, gameConfig config.GameConfig) *EventApplier {
	return &EventApplier{
		quests:     quests,
		gameConfig: gameConfig,
		logger:     utils.GetLogger(),
	}
}

// Apply 把已验证的提案应用到世界的工作副本
// 成功返回提交后的新聚合（版本号+1）；失败返回错误且不产生任何可见变更
func (a *EventApplier) Apply(world *models.World, proposal *models.EffectProposal, playerCommand string) (*models.World, *TurnResult, error) {
	working := world.Clone()
	newVersion := working.State.Version + 1

	var effects []string
	var extraNarration []string
	spokenTo := make(map[string]bool)

	for i, intent := range proposal.Intents {
		effect, err := a.applyIntent(working, &intent, newVersion, spokenTo)
		if err != nil {
			// 目标谓词不成立的完成声明只驳回该意图，其余照常应用
			if intent.Kind == models.IntentCompleteQuest && apperrors.IsValidationError(err) {
				a.logger.Warn("完成声明被谓词复核驳回", map[string]interface{}{
					"quest_id": intent.QuestID,
				})
				continue
			}
			return nil, nil, apperrors.WrapError(err,
				fmt.Sprintf("应用第 %d 条意图(%s)失败", i+1, intent.Kind), apperrors.ErrorTypeValidation)
		}
		if effect != "" {
			effects = append(effects, effect)
		}
		if intent.Kind == models.IntentEmitNarration {
			extraNarration = append(extraNarration, intent.Text)
		}
	}

	// 玩家指令计入本回合有对话的NPC记忆（FIFO淘汰在Append内进行）
	for npcID := range spokenTo {
		if npc, ok := working.NPCs[npcID]; ok && npc.Memory != nil {
			npc.Memory.Append(models.DialogueTurn{
				Speaker:      models.SpeakerPlayer,
				Utterance:    playerCommand,
				WorldVersion: newVersion,
			})
		}
	}

	// 提交前扫描：活跃任务的目标是否已永久无法达成
	if failed := a.quests.SweepUnsatisfiable(working); len(failed) > 0 {
		for _, id := range failed {
			effects = append(effects, fmt.Sprintf("quest %s failed: objective no longer attainable", id))
		}
	}

	working.State.Version = newVersion
	working.State.UpdatedAt = time.Now()

	narration := proposal.Narration
	if len(extraNarration) > 0 {
		narration = narration + "\n\n" + strings.Join(extraNarration, "\n\n")
	}

	result := &TurnResult{
		Narration:      narration,
		AppliedEffects: effects,
		WorldVersion:   newVersion,
	}

	return working, result, nil
}

// applyIntent 应用单条意图；spokenTo收集本回合对话过的NPC
func (a *EventApplier) applyIntent(world *models.World, intent *models.EffectIntent, version int64, spokenTo map[string]bool) (string, error) {
	switch intent.Kind {
	case models.IntentEmitNarration:
		return "", nil

	case models.IntentSpeakNPC:
		npc, ok := world.NPCs[intent.NPCID]
		if !ok {
			return "", apperrors.NewReferenceError(fmt.Sprintf("NPC不存在: %s", intent.NPCID), nil)
		}
		if npc.Memory != nil {
			npc.Memory.Append(models.DialogueTurn{
				Speaker:      models.SpeakerNPC,
				Utterance:    intent.Text,
				WorldVersion: version,
			})
		}
		spokenTo[npc.ID] = true
		return fmt.Sprintf("%s spoke", npc.Name), nil

	case models.IntentModifyDisposition:
		npc, ok := world.NPCs[intent.NPCID]
		if !ok {
			return "", apperrors.NewReferenceError(fmt.Sprintf("NPC不存在: %s", intent.NPCID), nil)
		}
		npc.Disposition = clampInt(npc.Disposition+intent.Delta,
			a.gameConfig.DispositionMin, a.gameConfig.DispositionMax)
		return fmt.Sprintf("%s disposition %+d (now %d)", npc.Name, intent.Delta, npc.Disposition), nil

	case models.IntentModifyStat:
		if world.Player == nil {
			return "", apperrors.NewValidationError("会话没有玩家角色", nil)
		}
		value := world.Player.Stats[intent.Stat] + intent.Delta
		if value < 0 {
			value = 0 // 属性不为负
		}
		world.Player.Stats[intent.Stat] = value
		return fmt.Sprintf("player %s %+d (now %d)", intent.Stat, intent.Delta, value), nil

	case models.IntentGrantItem:
		if intent.Target == "player" {
			world.Player.AddItem(intent.ItemID, intent.Count)
			return fmt.Sprintf("player gained %s x%d", intent.ItemID, intent.Count), nil
		}
		npc, ok := world.NPCs[intent.Target]
		if !ok {
			return "", apperrors.NewReferenceError(fmt.Sprintf("NPC不存在: %s", intent.Target), nil)
		}
		npc.ReceiveItem(intent.ItemID, intent.Count)
		// 记录交付事实，供deliver类任务的谓词判定
		world.State.Flags[models.DeliveryFlag(intent.ItemID, npc.ID)] = true
		return fmt.Sprintf("%s received %s x%d", npc.Name, intent.ItemID, intent.Count), nil

	case models.IntentRemoveItem:
		if intent.Target != "player" {
			return "", apperrors.NewValidationError("只能从玩家背包移除物品", nil)
		}
		if !world.Player.RemoveItem(intent.ItemID, intent.Count) {
			return "", apperrors.NewValidationError(
				fmt.Sprintf("玩家背包中 %s 数量不足", intent.ItemID), nil)
		}
		return fmt.Sprintf("player lost %s x%d", intent.ItemID, intent.Count), nil

	case models.IntentSetFlag:
		world.State.Flags[intent.Flag] = true
		return fmt.Sprintf("flag %s set", intent.Flag), nil

	case models.IntentClearFlag:
		delete(world.State.Flags, intent.Flag)
		return fmt.Sprintf("flag %s cleared", intent.Flag), nil

	case models.IntentMoveParty:
		if _, ok := world.Locations[intent.LocationID]; !ok {
			return "", apperrors.NewReferenceError(fmt.Sprintf("地点不存在: %s", intent.LocationID), nil)
		}
		world.State.CurrentLocation = intent.LocationID
		if world.Player != nil {
			world.Player.Location = intent.LocationID
		}
		return fmt.Sprintf("party moved to %s", intent.LocationID), nil

	case models.IntentCreateNPC:
		if _, exists := world.NPCs[intent.NPCID]; exists {
			return "", apperrors.NewReferenceError(fmt.Sprintf("NPC已存在: %s", intent.NPCID), nil)
		}
		location := intent.LocationID
		if location == "" {
			location = world.State.CurrentLocation
		}
		npcType := models.NPCType(intent.NPCType)
		if npcType == "" {
			npcType = models.NPCTypeGeneric
		}
		world.NPCs[intent.NPCID] = &models.NPC{
			ID:       intent.NPCID,
			Name:     intent.NPCName,
			Type:     npcType,
			Location: location,
			Active:   true,
			Memory:   models.NewNPCMemory(a.gameConfig.NPCMemoryCapacity),
		}
		return fmt.Sprintf("%s appeared", intent.NPCName), nil

	case models.IntentDeactivateNPC:
		npc, ok := world.NPCs[intent.NPCID]
		if !ok {
			return "", apperrors.NewReferenceError(fmt.Sprintf("NPC不存在: %s", intent.NPCID), nil)
		}
		npc.Active = false
		return fmt.Sprintf("%s left the scene", npc.Name), nil

	case models.IntentOfferQuest:
		objective := models.ObjectivePredicate{}
		if intent.Objective != nil {
			objective = *intent.Objective
		}
		reward := models.Reward{XP: 10, Gold: 5}
		if intent.Reward != nil {
			reward = *intent.Reward
		}
		quest := a.quests.Offer(world, intent.QuestTitle, intent.QuestSummary, objective, reward)
		return fmt.Sprintf("quest offered: %s (%s)", quest.Title, RewardText(quest.Reward)), nil

	case models.IntentAdvanceQuest:
		if err := a.quests.Accept(world, intent.QuestID); err != nil {
			return "", err
		}
		return fmt.Sprintf("quest %s is now active", intent.QuestID), nil

	case models.IntentCompleteQuest:
		if err := a.quests.Complete(world, intent.QuestID); err != nil {
			return "", err
		}
		quest := world.Quests[intent.QuestID]
		return fmt.Sprintf("quest complete: %s (%s)", quest.Title, RewardText(quest.Reward)), nil

	case models.IntentFailQuest:
		if err := a.quests.Fail(world, intent.QuestID); err != nil {
			return "", err
		}
		return fmt.Sprintf("quest %s failed", intent.QuestID), nil

	default:
		return "", apperrors.NewParseError(fmt.Sprintf("未知的意图类型: %s", intent.Kind), nil)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
