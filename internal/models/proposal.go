// internal/models/proposal.go
package models

// IntentKind 效果意图类型
// 模型生成的叙事只能通过这些类型化意图触碰权威状态
type IntentKind string

const (
	IntentEmitNarration     IntentKind = "emit_narration"
	IntentSpeakNPC          IntentKind = "speak_npc"
	IntentModifyDisposition IntentKind = "modify_disposition"
	IntentModifyStat        IntentKind = "modify_stat"
	IntentGrantItem         IntentKind = "grant_item"
	IntentRemoveItem        IntentKind = "remove_item"
	IntentSetFlag           IntentKind = "set_flag"
	IntentClearFlag         IntentKind = "clear_flag"
	IntentMoveParty         IntentKind = "move_party"
	IntentCreateNPC         IntentKind = "create_npc"
	IntentDeactivateNPC     IntentKind = "deactivate_npc"
	IntentOfferQuest        IntentKind = "offer_quest"
	IntentAdvanceQuest      IntentKind = "advance_quest"
	IntentCompleteQuest     IntentKind = "complete_quest"
	IntentFailQuest         IntentKind = "fail_quest"
)

// EffectIntent 单条原子状态变更意图
// 字段按意图类型选用；解析器按类型检查必填字段
type EffectIntent struct {
	Kind IntentKind `json:"kind" jsonschema:"required,enum=emit_narration,enum=speak_npc,enum=modify_disposition,enum=modify_stat,enum=grant_item,enum=remove_item,enum=set_flag,enum=clear_flag,enum=move_party,enum=create_npc,enum=deactivate_npc,enum=offer_quest,enum=advance_quest,enum=complete_quest,enum=fail_quest"`

	// emit_narration / speak_npc
	Text string `json:"text,omitempty"`

	// 指向NPC的意图：speak_npc, modify_disposition, grant_item(target=npc),
	// create_npc, deactivate_npc, deliver目标等
	NPCID string `json:"npc_id,omitempty"`

	// create_npc
	NPCName string `json:"npc_name,omitempty"`
	NPCType string `json:"npc_type,omitempty" jsonschema:"enum=enemy,enum=merchant,enum=quest_giver,enum=generic"`

	// modify_stat
	Stat string `json:"stat,omitempty"`

	// modify_disposition / modify_stat 数值增量（越界会被钳制）
	Delta int `json:"delta,omitempty"`

	// grant_item / remove_item；Target为"player"或NPC ID
	ItemID string `json:"item_id,omitempty"`
	Count  int    `json:"count,omitempty"`
	Target string `json:"target,omitempty"`

	// set_flag / clear_flag
	Flag string `json:"flag,omitempty"`

	// move_party / create_npc地点
	LocationID string `json:"location_id,omitempty"`

	// 任务相关意图
	QuestID      string              `json:"quest_id,omitempty"`
	QuestTitle   string              `json:"quest_title,omitempty"`
	QuestSummary string              `json:"quest_summary,omitempty"`
	Objective    *ObjectivePredicate `json:"objective,omitempty"`
	Reward       *Reward             `json:"reward,omitempty"`
}

// EffectProposal 一次AI回合的解析结果：叙述文本加一组有序原子意图
// 临时对象，不持久化；是生成内容触达状态的唯一通道
type EffectProposal struct {
	Narration string         `json:"narration" jsonschema:"required"`
	Intents   []EffectIntent `json:"intents"`
}
