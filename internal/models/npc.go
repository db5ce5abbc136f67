// internal/models/npc.go
package models

// NPCType NPC原型
type NPCType string

const (
	NPCTypeEnemy      NPCType = "enemy"
	NPCTypeMerchant   NPCType = "merchant"
	NPCTypeQuestGiver NPCType = "quest_giver"
	NPCTypeGeneric    NPCType = "generic"
)

// DispositionBand 好感度档位，用于提示词上下文
type DispositionBand string

const (
	DispositionHostile  DispositionBand = "hostile"
	DispositionNeutral  DispositionBand = "neutral"
	DispositionFriendly DispositionBand = "friendly"
)

// Speaker 对话发言方
type Speaker string

const (
	SpeakerPlayer Speaker = "player"
	SpeakerNPC    Speaker = "npc"
)

// DialogueTurn 一轮对话：发言方、内容、发言时的世界版本号
// 版本号用于因果排序，不用挂钟时间
type DialogueTurn struct {
	Speaker      Speaker `json:"speaker"`
	Utterance    string  `json:"utterance"`
	WorldVersion int64   `json:"world_version"`
}

// NPCMemory 有界对话记忆：固定容量，满时先进先出淘汰最旧的一轮
type NPCMemory struct {
	Capacity int            `json:"capacity"`
	Turns    []DialogueTurn `json:"turns"`
}

// NewNPCMemory 创建指定容量的对话记忆
func NewNPCMemory(capacity int) *NPCMemory {
	if capacity <= 0 {
		capacity = 1
	}
	return &NPCMemory{Capacity: capacity}
}

// Append 追加一轮对话，超出容量时淘汰最旧的
func (m *NPCMemory) Append(turn DialogueTurn) {
	m.Turns = append(m.Turns, turn)
	if len(m.Turns) > m.Capacity {
		over := len(m.Turns) - m.Capacity
		m.Turns = append([]DialogueTurn(nil), m.Turns[over:]...)
	}
}

// Recent 返回最近的n轮对话（按时间顺序）
func (m *NPCMemory) Recent(n int) []DialogueTurn {
	if n <= 0 || len(m.Turns) == 0 {
		return nil
	}
	if n > len(m.Turns) {
		n = len(m.Turns)
	}
	return m.Turns[len(m.Turns)-n:]
}

// Len 当前记忆轮数
func (m *NPCMemory) Len() int {
	return len(m.Turns)
}

// Clone 深拷贝对话记忆
func (m *NPCMemory) Clone() *NPCMemory {
	clone := &NPCMemory{
		Capacity: m.Capacity,
		Turns:    append([]DialogueTurn(nil), m.Turns...),
	}
	return clone
}

// NPC 非玩家角色：身份、地点、好感度、有界对话记忆
// NPC在首次出场时惰性创建，会话期间不删除，叙事移除只做去活
type NPC struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        NPCType        `json:"type"`
	Location    string         `json:"location"`
	Disposition int            `json:"disposition"`
	Active      bool           `json:"active"`
	Inventory   map[string]int `json:"inventory,omitempty"`
	Memory      *NPCMemory     `json:"memory"`
}

// Clone 深拷贝NPC
func (n *NPC) Clone() *NPC {
	clone := *n
	if n.Memory != nil {
		clone.Memory = n.Memory.Clone()
	}
	if n.Inventory != nil {
		clone.Inventory = make(map[string]int, len(n.Inventory))
		for k, v := range n.Inventory {
			clone.Inventory[k] = v
		}
	}
	return &clone
}

// ReceiveItem 向NPC物品栏添加物品
func (n *NPC) ReceiveItem(itemID string, count int) {
	if count <= 0 {
		return
	}
	if n.Inventory == nil {
		n.Inventory = make(map[string]int)
	}
	n.Inventory[itemID] += count
}

// DispositionBand 把好感度分数折算为档位
// 分数区间沿用原作设定：<-30敌对，>30友善，其余中立
func (n *NPC) DispositionBand() DispositionBand {
	switch {
	case n.Disposition < -30:
		return DispositionHostile
	case n.Disposition > 30:
		return DispositionFriendly
	default:
		return DispositionNeutral
	}
}
