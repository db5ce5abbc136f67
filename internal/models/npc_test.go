// internal/models/npc_test.go
package models

import "testing"

// TestNPCMemoryFIFO 测试对话记忆的先进先出淘汰
func TestNPCMemoryFIFO(t *testing.T) {
	memory := NewNPCMemory(3)

	for i := 1; i <= 5; i++ {
		memory.Append(DialogueTurn{
			Speaker:      SpeakerNPC,
			Utterance:    string(rune('a' + i - 1)),
			WorldVersion: int64(i),
		})
	}

	if memory.Len() != 3 {
		t.Fatalf("记忆轮数应为容量上限3，实际: %d", memory.Len())
	}

	// 最旧的两轮（版本1、2）应已被淘汰
	if memory.Turns[0].WorldVersion != 3 {
		t.Errorf("最旧保留轮的版本应为3，实际: %d", memory.Turns[0].WorldVersion)
	}
	if memory.Turns[2].WorldVersion != 5 {
		t.Errorf("最新轮的版本应为5，实际: %d", memory.Turns[2].WorldVersion)
	}
}

// TestNPCMemoryRecent 测试最近n轮查询
func TestNPCMemoryRecent(t *testing.T) {
	memory := NewNPCMemory(10)
	for i := 1; i <= 4; i++ {
		memory.Append(DialogueTurn{WorldVersion: int64(i)})
	}

	tests := []struct {
		name      string
		n         int
		wantLen   int
		wantFirst int64
	}{
		{"取最近2轮", 2, 2, 3},
		{"n超过总轮数时返回全部", 10, 4, 1},
		{"n为0时返回空", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := memory.Recent(tt.n)
			if len(recent) != tt.wantLen {
				t.Fatalf("返回轮数不正确，期望: %d，实际: %d", tt.wantLen, len(recent))
			}
			if tt.wantLen > 0 && recent[0].WorldVersion != tt.wantFirst {
				t.Errorf("首轮版本不正确，期望: %d，实际: %d", tt.wantFirst, recent[0].WorldVersion)
			}
		})
	}
}

// TestNPCMemoryZeroCapacity 容量非法时应退化为最小容量而不是panic
func TestNPCMemoryZeroCapacity(t *testing.T) {
	memory := NewNPCMemory(0)
	memory.Append(DialogueTurn{WorldVersion: 1})
	memory.Append(DialogueTurn{WorldVersion: 2})

	if memory.Len() != 1 {
		t.Fatalf("最小容量下应只保留1轮，实际: %d", memory.Len())
	}
	if memory.Turns[0].WorldVersion != 2 {
		t.Errorf("应保留最新一轮，实际版本: %d", memory.Turns[0].WorldVersion)
	}
}

// TestNPCClone 测试NPC深拷贝的独立性
func TestNPCClone(t *testing.T) {
	npc := &NPC{
		ID:          "merchant",
		Name:        "Merchant",
		Type:        NPCTypeMerchant,
		Disposition: 10,
		Active:      true,
		Inventory:   map[string]int{"sword": 1},
		Memory:      NewNPCMemory(5),
	}
	npc.Memory.Append(DialogueTurn{Utterance: "hello", WorldVersion: 1})

	clone := npc.Clone()
	clone.Disposition = -80
	clone.Inventory["sword"] = 99
	clone.Memory.Append(DialogueTurn{Utterance: "clone only", WorldVersion: 2})

	if npc.Disposition != 10 {
		t.Error("修改副本不应影响原NPC的好感度")
	}
	if npc.Inventory["sword"] != 1 {
		t.Error("修改副本不应影响原NPC的物品栏")
	}
	if npc.Memory.Len() != 1 {
		t.Errorf("修改副本不应影响原NPC的记忆，期望1轮，实际: %d", npc.Memory.Len())
	}
}

// TestDispositionBand 测试好感度档位折算
func TestDispositionBand(t *testing.T) {
	tests := []struct {
		disposition int
		want        DispositionBand
	}{
		{-100, DispositionHostile},
		{-31, DispositionHostile},
		{-30, DispositionNeutral},
		{0, DispositionNeutral},
		{30, DispositionNeutral},
		{31, DispositionFriendly},
		{100, DispositionFriendly},
	}

	for _, tt := range tests {
		npc := &NPC{Disposition: tt.disposition}
		if got := npc.DispositionBand(); got != tt.want {
			t.Errorf("好感度%d的档位不正确，期望: %s，实际: %s", tt.disposition, tt.want, got)
		}
	}
}
