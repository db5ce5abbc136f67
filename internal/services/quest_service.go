// internal/services/quest_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// QuestService 任务跟踪器：状态机转移与目标判定
// 所有转移都在工作副本上进行，由事件应用器统一提交
type QuestService struct {
	logger *utils.Logger
}

// NewQuestService 创建任务跟踪服务
func NewQuestService() *QuestService {
	return &QuestService{logger: utils.GetLogger()}
}

// Offer 创建一个新任务并置为Offered（Undiscovered→Offered）
func (s *QuestService) Offer(world *models.World, title, summary string, objective models.ObjectivePredicate, reward models.Reward) *models.Quest {
	quest := &models.Quest{
		ID:        uuid.NewString(),
		Title:     title,
		State:     models.QuestOffered,
		Summary:   summary,
		Objective: objective,
		Reward:    reward,
	}
	world.Quests[quest.ID] = quest
	return quest
}

// Transition 执行一次状态转移，非法边返回IllegalTransitionError
func (s *QuestService) Transition(world *models.World, questID string, to models.QuestState) error {
	quest, ok := world.Quests[questID]
	if !ok {
		return apperrors.NewReferenceError(fmt.Sprintf("任务不存在: %s", questID), nil)
	}

	if !models.LegalQuestTransition(quest.State, to) {
		return apperrors.NewIllegalTransitionError(
			fmt.Sprintf("任务 %s 不允许从 %s 转移到 %s", questID, quest.State, to), nil)
	}

	quest.State = to
	return nil
}

// Accept 玩家接受任务（Offered→Active）
func (s *QuestService) Accept(world *models.World, questID string) error {
	return s.Transition(world, questID, models.QuestActive)
}

// Decline 玩家拒绝任务（Offered→Abandoned）
func (s *QuestService) Decline(world *models.World, questID string) error {
	quest, ok := world.Quests[questID]
	if !ok {
		return apperrors.NewReferenceError(fmt.Sprintf("任务不存在: %s", questID), nil)
	}
	if quest.State != models.QuestOffered {
		return apperrors.NewIllegalTransitionError(
			fmt.Sprintf("任务 %s 当前状态 %s 不可拒绝", questID, quest.State), nil)
	}
	quest.State = models.QuestAbandoned
	return nil
}

// Abandon 玩家放弃任务（Offered/Active→Abandoned）
func (s *QuestService) Abandon(world *models.World, questID string) error {
	return s.Transition(world, questID, models.QuestAbandoned)
}

// Complete 完成任务：模型可以声称完成，这里独立复核目标谓词
// 谓词不成立时返回错误，任务状态不变
func (s *QuestService) Complete(world *models.World, questID string) error {
	quest, ok := world.Quests[questID]
	if !ok {
		return apperrors.NewReferenceError(fmt.Sprintf("任务不存在: %s", questID), nil)
	}

	if !models.LegalQuestTransition(quest.State, models.QuestCompleted) {
		return apperrors.NewIllegalTransitionError(
			fmt.Sprintf("任务 %s 不允许从 %s 转移到 %s", questID, quest.State, models.QuestCompleted), nil)
	}

	if !quest.Satisfied(world) {
		return apperrors.NewValidationError(
			fmt.Sprintf("任务 %s 的目标谓词未达成，完成声明被驳回", questID), nil)
	}

	quest.State = models.QuestCompleted

	// 发放奖励
	if world.Player != nil {
		if quest.Reward.XP > 0 {
			world.Player.Stats["xp"] += quest.Reward.XP
		}
		if quest.Reward.Gold > 0 {
			world.Player.AddItem("gold", quest.Reward.Gold)
		}
	}

	return nil
}

// Fail 任务失败（Active→Failed）
func (s *QuestService) Fail(world *models.World, questID string) error {
	return s.Transition(world, questID, models.QuestFailed)
}

// SweepUnsatisfiable 检查活跃任务是否已永久无法达成，自动转为Failed
// 在每次提交前由事件应用器调用
func (s *QuestService) SweepUnsatisfiable(world *models.World) []string {
	var failed []string
	for id, quest := range world.Quests {
		if quest.State == models.QuestActive && quest.Unsatisfiable(world) {
			quest.State = models.QuestFailed
			failed = append(failed, id)
		}
	}
	return failed
}

// ActiveQuests 返回所有活跃任务
func (s *QuestService) ActiveQuests(world *models.World) []*models.Quest {
	var active []*models.Quest
	for _, quest := range world.Quests {
		if quest.State == models.QuestActive {
			active = append(active, quest)
		}
	}
	return active
}

// Journal 返回全部任务（含终态，用于日志展示）
func (s *QuestService) Journal(world *models.World) []*models.Quest {
	quests := make([]*models.Quest, 0, len(world.Quests))
	for _, quest := range world.Quests {
		quests = append(quests, quest)
	}
	return quests
}

// RewardText 奖励的展示文本
func RewardText(r models.Reward) string {
	return fmt.Sprintf("+%d XP, +%d Gold", r.XP, r.Gold)
}
