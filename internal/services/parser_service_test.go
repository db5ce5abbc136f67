// internal/services/parser_service_test.go
package services

import (
	"strings"
	"testing"

	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
)

// TestParseCleanOutput 干净的JSON输出直接解析
func TestParseCleanOutput(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	raw := `{"narration": "The goblin snarls.", "intents": [
		{"kind": "speak_npc", "npc_id": "goblin", "text": "Grrr!"},
		{"kind": "modify_disposition", "npc_id": "goblin", "delta": -5}
	]}`

	proposal, err := parser.Parse(raw, world)
	if err != nil {
		t.Fatalf("解析干净输出不应失败: %v", err)
	}
	if proposal.Narration != "The goblin snarls." {
		t.Errorf("叙述文本不正确: %q", proposal.Narration)
	}
	if len(proposal.Intents) != 2 {
		t.Fatalf("意图数量不正确，期望2，实际: %d", len(proposal.Intents))
	}
}

// TestParseMarkdownFence 模型输出带markdown围栏与前后闲聊时应能提取JSON
func TestParseMarkdownFence(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	raw := "Sure! Here is the response:\n```json\n" +
		`{"narration": "You step forward.", "intents": []}` +
		"\n```\nLet me know if you need anything else."

	proposal, err := parser.Parse(raw, world)
	if err != nil {
		t.Fatalf("带围栏的输出应能解析: %v", err)
	}
	if proposal.Narration != "You step forward." {
		t.Errorf("叙述文本不正确: %q", proposal.Narration)
	}
}

// TestParseErrors 语法与结构错误归为ParseError
func TestParseErrors(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	tests := []struct {
		name string
		raw  string
	}{
		{"完全不是JSON", "The goblin attacks you fiercely!"},
		{"JSON残缺", `{"narration": "cut off`},
		{"缺少narration", `{"intents": []}`},
		{"intents不是数组", `{"narration": "x", "intents": {"kind": "emit_narration"}}`},
		{"未知意图类型", `{"narration": "x", "intents": [{"kind": "summon_dragon"}]}`},
		{"speak_npc缺text", `{"narration": "x", "intents": [{"kind": "speak_npc", "npc_id": "goblin"}]}`},
		{"grant_item缺target", `{"narration": "x", "intents": [{"kind": "grant_item", "item_id": "sword"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.raw, world)
			if !apperrors.IsParseError(err) {
				t.Errorf("应返回ParseError，实际: %v", err)
			}
		})
	}
}

// TestParseReferenceErrors 未知实体引用归为ReferenceError
func TestParseReferenceErrors(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	tests := []struct {
		name string
		raw  string
	}{
		{"未知NPC", `{"narration": "x", "intents": [{"kind": "speak_npc", "npc_id": "dragon", "text": "hi"}]}`},
		{"未知地点", `{"narration": "x", "intents": [{"kind": "move_party", "location_id": "moon_base"}]}`},
		{"未知任务", `{"narration": "x", "intents": [{"kind": "complete_quest", "quest_id": "no_such_quest"}]}`},
		{"grant_item目标未知", `{"narration": "x", "intents": [{"kind": "grant_item", "item_id": "gem", "count": 1, "target": "ghost"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.raw, world)
			if !apperrors.IsReferenceError(err) {
				t.Errorf("应返回ReferenceError，实际: %v", err)
			}
		})
	}
}

// TestParseIllegalTransition 非法任务转移归为IllegalTransitionError
func TestParseIllegalTransition(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()
	world.Quests["q1"] = &models.Quest{ID: "q1", Title: "Errand", State: models.QuestOffered}

	// Offered状态不能直接完成
	raw := `{"narration": "x", "intents": [{"kind": "complete_quest", "quest_id": "q1"}]}`
	_, err := parser.Parse(raw, world)
	if !apperrors.IsIllegalTransitionError(err) {
		t.Errorf("应返回IllegalTransitionError，实际: %v", err)
	}
}

// TestParseIntraProposalVisibility 提案内先创建的实体对后续意图可见
func TestParseIntraProposalVisibility(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	raw := `{"narration": "A stranger appears.", "intents": [
		{"kind": "create_npc", "npc_id": "stranger", "npc_name": "Hooded Stranger"},
		{"kind": "speak_npc", "npc_id": "stranger", "text": "Greetings, traveler."}
	]}`

	if _, err := parser.Parse(raw, world); err != nil {
		t.Fatalf("提案内先创建后引用应合法: %v", err)
	}
}

// TestParseQuestChainWithinProposal 提案内任务转移按序模拟
func TestParseQuestChainWithinProposal(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()
	world.Quests["q1"] = &models.Quest{ID: "q1", Title: "Errand", State: models.QuestOffered}

	// advance把q1带入Active后，同提案内的fail才合法
	raw := `{"narration": "x", "intents": [
		{"kind": "advance_quest", "quest_id": "q1"},
		{"kind": "fail_quest", "quest_id": "q1"}
	]}`

	if _, err := parser.Parse(raw, world); err != nil {
		t.Fatalf("提案内按序合法的任务转移链应通过: %v", err)
	}
}

// TestParseClampsDeltas 数值越界钳制而不拒绝
func TestParseClampsDeltas(t *testing.T) {
	parser := NewParserService(testGameConfig())
	world := seededWorld()

	raw := `{"narration": "x", "intents": [
		{"kind": "modify_disposition", "npc_id": "goblin", "delta": 100000},
		{"kind": "grant_item", "item_id": "gem", "count": -3, "target": "player"}
	]}`

	proposal, err := parser.Parse(raw, world)
	if err != nil {
		t.Fatalf("越界数值应被钳制而不是拒绝: %v", err)
	}

	span := testGameConfig().DispositionMax - testGameConfig().DispositionMin
	if proposal.Intents[0].Delta != span {
		t.Errorf("好感度增量应被钳制到%d，实际: %d", span, proposal.Intents[0].Delta)
	}
	if proposal.Intents[1].Count != 1 {
		t.Errorf("非正数量应被规整为1，实际: %d", proposal.Intents[1].Count)
	}
}

// TestCleanModelJSON 输出清理的边界情况
func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"纯JSON原样返回", `{"a":1}`, `{"a":1}`},
		{"剥除围栏", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"丢弃前导闲聊", `Here you go: {"a":1}`, `{"a":1}`},
		{"截断尾随闲聊", `{"a":1} hope that helps`, `{"a":1}`},
		{"嵌套对象平衡匹配", `{"a":{"b":2}} extra`, `{"a":{"b":2}}`},
		{"字符串内花括号不计数", `{"a":"}"} extra`, `{"a":"}"}`},
		{"没有JSON返回空", "no json here", ""},
		{"空输入", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("清理结果不正确，期望: %q，实际: %q", tt.want, got)
			}
		})
	}
}

// TestSchemaHintMentionsIntents schema提示应覆盖意图枚举
func TestSchemaHintMentionsIntents(t *testing.T) {
	parser := NewParserService(testGameConfig())
	hint := parser.SchemaHint()

	for _, kind := range []string{"emit_narration", "speak_npc", "offer_quest", "complete_quest"} {
		if !strings.Contains(hint, kind) {
			t.Errorf("schema提示应包含意图类型 %s", kind)
		}
	}
}
