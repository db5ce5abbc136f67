// internal/models/world.go
package models

import "time"

// Location 地点数据结构
type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Exits       []string `json:"exits,omitempty"` // 相邻地点ID
}

// WorldState 世界状态头：版本号、当前地点、全局标志
// 版本号每成功提交一个回合严格+1；只有事件应用器可以修改
type WorldState struct {
	Version         int64           `json:"version"`
	CurrentLocation string          `json:"current_location"`
	Flags           map[string]bool `json:"flags"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// World 权威世界聚合：状态头、玩家、NPC、地点、任务
// 回合管线整体持有并传递它；提交时作为一个整体被替换
type World struct {
	State     WorldState           `json:"state"`
	Player    *PlayerCharacter     `json:"player"`
	NPCs      map[string]*NPC      `json:"npcs"`
	Locations map[string]*Location `json:"locations"`
	Quests    map[string]*Quest    `json:"quests"`
}

// Clone 深拷贝整个世界聚合，作为事件应用器的工作副本
func (w *World) Clone() *World {
	clone := &World{
		State: WorldState{
			Version:         w.State.Version,
			CurrentLocation: w.State.CurrentLocation,
			Flags:           make(map[string]bool, len(w.State.Flags)),
			UpdatedAt:       w.State.UpdatedAt,
		},
		NPCs:      make(map[string]*NPC, len(w.NPCs)),
		Locations: make(map[string]*Location, len(w.Locations)),
		Quests:    make(map[string]*Quest, len(w.Quests)),
	}

	for k, v := range w.State.Flags {
		clone.State.Flags[k] = v
	}

	if w.Player != nil {
		clone.Player = w.Player.Clone()
	}

	for id, npc := range w.NPCs {
		clone.NPCs[id] = npc.Clone()
	}

	for id, loc := range w.Locations {
		locCopy := *loc
		locCopy.Exits = append([]string(nil), loc.Exits...)
		clone.Locations[id] = &locCopy
	}

	for id, quest := range w.Quests {
		clone.Quests[id] = quest.Clone()
	}

	return clone
}

// LocationByID 查找地点
func (w *World) LocationByID(id string) (*Location, bool) {
	loc, ok := w.Locations[id]
	return loc, ok
}

// CurrentLocationState 返回当前地点（提示词构建必须包含它）
func (w *World) CurrentLocationState() *Location {
	if loc, ok := w.Locations[w.State.CurrentLocation]; ok {
		return loc
	}
	return nil
}

// NPCsAtLocation 返回指定地点的所有活跃NPC
func (w *World) NPCsAtLocation(locationID string) []*NPC {
	var result []*NPC
	for _, npc := range w.NPCs {
		if npc.Active && npc.Location == locationID {
			result = append(result, npc)
		}
	}
	return result
}
