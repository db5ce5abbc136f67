// internal/models/player.go
package models

// PlayerCharacter 玩家角色：身份、职业、属性、背包、当前地点
// 属性值均为非负整数；背包是物品ID到数量的多重集
type PlayerCharacter struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Class     string         `json:"class"`
	Stats     map[string]int `json:"stats"`
	Inventory map[string]int `json:"inventory"`
	Location  string         `json:"location"`
}

// Clone 深拷贝玩家角色
func (p *PlayerCharacter) Clone() *PlayerCharacter {
	clone := &PlayerCharacter{
		ID:        p.ID,
		Name:      p.Name,
		Class:     p.Class,
		Stats:     make(map[string]int, len(p.Stats)),
		Inventory: make(map[string]int, len(p.Inventory)),
		Location:  p.Location,
	}
	for k, v := range p.Stats {
		clone.Stats[k] = v
	}
	for k, v := range p.Inventory {
		clone.Inventory[k] = v
	}
	return clone
}

// HasItem 检查背包中是否至少有一件指定物品
func (p *PlayerCharacter) HasItem(itemID string) bool {
	return p.Inventory[itemID] > 0
}

// AddItem 向背包添加物品
func (p *PlayerCharacter) AddItem(itemID string, count int) {
	if count <= 0 {
		return
	}
	p.Inventory[itemID] += count
}

// RemoveItem 从背包移除物品；数量不足时返回false且不做任何修改
func (p *PlayerCharacter) RemoveItem(itemID string, count int) bool {
	if count <= 0 {
		return true
	}
	if p.Inventory[itemID] < count {
		return false
	}
	p.Inventory[itemID] -= count
	if p.Inventory[itemID] == 0 {
		delete(p.Inventory, itemID)
	}
	return true
}
