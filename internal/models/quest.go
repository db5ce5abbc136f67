// internal/models/quest.go
package models

// QuestState 任务生命周期状态
type QuestState string

const (
	QuestUndiscovered QuestState = "undiscovered"
	QuestOffered      QuestState = "offered"
	QuestActive       QuestState = "active"
	QuestCompleted    QuestState = "completed"
	QuestFailed       QuestState = "failed"
	QuestAbandoned    QuestState = "abandoned"
)

// IsTerminal 判断状态是否为终态（终态任务保留在日志中，不再转移）
func (s QuestState) IsTerminal() bool {
	return s == QuestCompleted || s == QuestFailed || s == QuestAbandoned
}

// legalQuestEdges 任务状态机的合法转移边
var legalQuestEdges = map[QuestState][]QuestState{
	QuestUndiscovered: {QuestOffered},
	QuestOffered:      {QuestActive, QuestAbandoned},
	QuestActive:       {QuestCompleted, QuestFailed, QuestAbandoned},
}

// LegalQuestTransition 检查从from到to是否为合法转移
func LegalQuestTransition(from, to QuestState) bool {
	for _, next := range legalQuestEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ObjectiveKind 任务目标类型
type ObjectiveKind string

const (
	ObjectiveDefeat  ObjectiveKind = "defeat"  // 目标NPC被去活
	ObjectiveTalkTo  ObjectiveKind = "talk_to" // 与目标NPC有过对话
	ObjectiveDeliver ObjectiveKind = "deliver" // 把物品X交给NPC Y
	ObjectiveReach   ObjectiveKind = "reach"   // 到达地点
)

// ObjectivePredicate 结构化任务目标，只依据世界状态判定，不信任模型叙述
type ObjectivePredicate struct {
	Kind       ObjectiveKind `json:"kind"`
	TargetNPC  string        `json:"target_npc,omitempty"`
	ItemID     string        `json:"item_id,omitempty"`
	LocationID string        `json:"location_id,omitempty"`
}

// Reward 任务奖励描述
type Reward struct {
	XP   int `json:"xp"`
	Gold int `json:"gold"`
}

// Quest 任务：身份、状态、摘要、结构化目标、奖励
// 任务从不物理删除，终态任务保留用于日志展示
type Quest struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	State     QuestState         `json:"state"`
	Summary   string             `json:"summary"`
	Objective ObjectivePredicate `json:"objective"`
	Reward    Reward             `json:"reward"`
}

// Clone 拷贝任务
func (q *Quest) Clone() *Quest {
	clone := *q
	return &clone
}

// Satisfied 依据世界状态独立判定目标是否达成
// 这是对模型幻觉的一致性兜底：模型可以声称完成，这里说了算
func (q *Quest) Satisfied(w *World) bool {
	switch q.Objective.Kind {
	case ObjectiveDefeat:
		npc, ok := w.NPCs[q.Objective.TargetNPC]
		return ok && !npc.Active
	case ObjectiveTalkTo:
		npc, ok := w.NPCs[q.Objective.TargetNPC]
		return ok && npc.Memory != nil && npc.Memory.Len() > 0
	case ObjectiveDeliver:
		// 交付判定：物品已离开玩家背包且交付标志已置位
		if w.Player != nil && w.Player.HasItem(q.Objective.ItemID) {
			return false
		}
		return w.State.Flags[DeliveryFlag(q.Objective.ItemID, q.Objective.TargetNPC)]
	case ObjectiveReach:
		return w.State.CurrentLocation == q.Objective.LocationID
	default:
		return false
	}
}

// Unsatisfiable 判定目标是否已永久无法达成（如所需NPC已被去活）
func (q *Quest) Unsatisfiable(w *World) bool {
	switch q.Objective.Kind {
	case ObjectiveTalkTo, ObjectiveDeliver:
		npc, ok := w.NPCs[q.Objective.TargetNPC]
		if !ok {
			return false // 尚未出场的NPC还可能被创建
		}
		return !npc.Active && !q.Satisfied(w)
	default:
		return false
	}
}

// DeliveryFlag 交付事实的全局标志键
func DeliveryFlag(itemID, npcID string) string {
	return "delivered:" + itemID + ":" + npcID
}
