// internal/services/parser_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/mythren/questweaver/internal/config"
	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// ParserService 响应验证/解析器
// 把模型原始输出提取为类型化效果提案；校验规则按序应用：
// 1. 语法解析失败 → ParseError
// 2. 未知实体引用 → ReferenceError
// 3. 数值增量越界 → 钳制（不拒绝）
// 4. 非法任务转移 → IllegalTransitionError
// 硬错误（1、2、4）整体拒绝提案，不做部分应用
type ParserService struct {
	schemaHint string
	gameConfig config.GameConfig
	logger     *utils.Logger
}

// NewParserService 创建解析服务，预生成schema提示
func NewParserService(gameConfig config.GameConfig) *ParserService {
	return &ParserService{
		schemaHint: buildSchemaHint(),
		gameConfig: gameConfig,
		logger:     utils.GetLogger(),
	}
}

// buildSchemaHint 反射效果提案结构生成JSON Schema提示文本
func buildSchemaHint() string {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&models.EffectProposal{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// 反射自有类型不应失败；失败时退化为文字描述
		return "Respond with a JSON object {\"narration\": string, \"intents\": [{\"kind\": string, ...}]}."
	}

	return "Respond with a single JSON object conforming to this schema, " +
		"without explanations or markdown fences:\n" + string(data)
}

// SchemaHint 返回随提示词下发的schema提示
func (s *ParserService) SchemaHint() string {
	return s.schemaHint
}

// Parse 把原始模型输出解析并校验为效果提案
// world只读，用于引用与转移合法性检查
func (s *ParserService) Parse(raw string, world *models.World) (*models.EffectProposal, error) {
	cleaned := cleanModelJSON(raw)
	if cleaned == "" {
		return nil, apperrors.NewParseError("模型输出中找不到JSON内容", nil)
	}

	// 结构探测：先用gjson确认必备字段存在，错误信息更可定位
	if !gjson.Valid(cleaned) {
		return nil, apperrors.NewParseError("模型输出不是合法JSON", nil)
	}
	if !gjson.Get(cleaned, "narration").Exists() {
		return nil, apperrors.NewParseError("缺少必填字段: narration", nil)
	}
	intentsResult := gjson.Get(cleaned, "intents")
	if intentsResult.Exists() && !intentsResult.IsArray() {
		return nil, apperrors.NewParseError("intents 必须是数组", nil)
	}

	var proposal models.EffectProposal
	if err := json.Unmarshal([]byte(cleaned), &proposal); err != nil {
		return nil, apperrors.NewParseError("解析效果提案失败", err)
	}

	if err := s.validate(&proposal, world); err != nil {
		return nil, err
	}

	return &proposal, nil
}

// validate 按序应用校验规则；钳制直接修改提案中的数值
func (s *ParserService) validate(proposal *models.EffectProposal, world *models.World) error {
	// 提案内先前意图创建的实体对后续意图可见
	pendingNPCs := make(map[string]bool)
	// 提案内任务转移按序模拟，用于检查后续转移的合法性
	pendingQuestStates := make(map[string]models.QuestState)

	questState := func(id string) (models.QuestState, bool) {
		if st, ok := pendingQuestStates[id]; ok {
			return st, true
		}
		if quest, ok := world.Quests[id]; ok {
			return quest.State, true
		}
		return "", false
	}

	npcExists := func(id string) bool {
		if pendingNPCs[id] {
			return true
		}
		_, ok := world.NPCs[id]
		return ok
	}

	for i := range proposal.Intents {
		intent := &proposal.Intents[i]

		if err := checkRequiredFields(intent); err != nil {
			return err
		}

		switch intent.Kind {
		case models.IntentEmitNarration:
			// 纯叙述，无引用

		case models.IntentSpeakNPC, models.IntentModifyDisposition, models.IntentDeactivateNPC:
			if !npcExists(intent.NPCID) {
				return apperrors.NewReferenceError(
					fmt.Sprintf("意图 %s 引用了未知NPC: %s", intent.Kind, intent.NPCID), nil)
			}

		case models.IntentModifyStat:
			// 属性针对玩家；名称不限定（新属性视为创建）

		case models.IntentGrantItem, models.IntentRemoveItem:
			if intent.Target != "player" && !npcExists(intent.Target) {
				return apperrors.NewReferenceError(
					fmt.Sprintf("意图 %s 的目标未知: %s", intent.Kind, intent.Target), nil)
			}

		case models.IntentSetFlag, models.IntentClearFlag:
			// 标志键自由创建

		case models.IntentMoveParty:
			if _, ok := world.Locations[intent.LocationID]; !ok {
				return apperrors.NewReferenceError(
					fmt.Sprintf("move_party 引用了未知地点: %s", intent.LocationID), nil)
			}

		case models.IntentCreateNPC:
			if npcExists(intent.NPCID) {
				return apperrors.NewReferenceError(
					fmt.Sprintf("create_npc 的ID已存在: %s", intent.NPCID), nil)
			}
			if intent.LocationID != "" {
				if _, ok := world.Locations[intent.LocationID]; !ok {
					return apperrors.NewReferenceError(
						fmt.Sprintf("create_npc 引用了未知地点: %s", intent.LocationID), nil)
				}
			}
			pendingNPCs[intent.NPCID] = true

		case models.IntentOfferQuest:
			if intent.Objective != nil && intent.Objective.TargetNPC != "" && !npcExists(intent.Objective.TargetNPC) {
				return apperrors.NewReferenceError(
					fmt.Sprintf("offer_quest 的目标NPC未知: %s", intent.Objective.TargetNPC), nil)
			}

		case models.IntentAdvanceQuest, models.IntentCompleteQuest, models.IntentFailQuest:
			from, ok := questState(intent.QuestID)
			if !ok {
				return apperrors.NewReferenceError(
					fmt.Sprintf("意图 %s 引用了未知任务: %s", intent.Kind, intent.QuestID), nil)
			}
			to := questTarget(intent.Kind)
			if !models.LegalQuestTransition(from, to) {
				return apperrors.NewIllegalTransitionError(
					fmt.Sprintf("任务 %s 不允许从 %s 转移到 %s", intent.QuestID, from, to), nil)
			}
			pendingQuestStates[intent.QuestID] = to

		default:
			return apperrors.NewParseError(fmt.Sprintf("未知的意图类型: %s", intent.Kind), nil)
		}

		// 规则3：数值增量钳制，越界不拒绝
		s.clampIntent(intent)
	}

	return nil
}

// questTarget 任务意图对应的目标状态
func questTarget(kind models.IntentKind) models.QuestState {
	switch kind {
	case models.IntentAdvanceQuest:
		return models.QuestActive
	case models.IntentCompleteQuest:
		return models.QuestCompleted
	case models.IntentFailQuest:
		return models.QuestFailed
	default:
		return ""
	}
}

// requiredFieldCheck 按意图类型的必填字段检查
func checkRequiredFields(intent *models.EffectIntent) error {
	missing := func(field string) error {
		return apperrors.NewParseError(
			fmt.Sprintf("意图 %s 缺少必填字段: %s", intent.Kind, field), nil)
	}

	switch intent.Kind {
	case models.IntentEmitNarration:
		if intent.Text == "" {
			return missing("text")
		}
	case models.IntentSpeakNPC:
		if intent.NPCID == "" {
			return missing("npc_id")
		}
		if intent.Text == "" {
			return missing("text")
		}
	case models.IntentModifyDisposition:
		if intent.NPCID == "" {
			return missing("npc_id")
		}
	case models.IntentModifyStat:
		if intent.Stat == "" {
			return missing("stat")
		}
	case models.IntentGrantItem, models.IntentRemoveItem:
		if intent.ItemID == "" {
			return missing("item_id")
		}
		if intent.Target == "" {
			return missing("target")
		}
	case models.IntentSetFlag, models.IntentClearFlag:
		if intent.Flag == "" {
			return missing("flag")
		}
	case models.IntentMoveParty:
		if intent.LocationID == "" {
			return missing("location_id")
		}
	case models.IntentCreateNPC:
		if intent.NPCID == "" {
			return missing("npc_id")
		}
		if intent.NPCName == "" {
			return missing("npc_name")
		}
	case models.IntentDeactivateNPC:
		if intent.NPCID == "" {
			return missing("npc_id")
		}
	case models.IntentOfferQuest:
		if intent.QuestTitle == "" {
			return missing("quest_title")
		}
		if intent.Objective == nil {
			return missing("objective")
		}
	case models.IntentAdvanceQuest, models.IntentCompleteQuest, models.IntentFailQuest:
		if intent.QuestID == "" {
			return missing("quest_id")
		}
	}

	return nil
}

// clampIntent 把数值增量钳制到配置边界内
func (s *ParserService) clampIntent(intent *models.EffectIntent) {
	span := s.gameConfig.DispositionMax - s.gameConfig.DispositionMin

	switch intent.Kind {
	case models.IntentModifyDisposition:
		// 单次增量不可能超过整个好感度区间
		if intent.Delta > span {
			intent.Delta = span
		}
		if intent.Delta < -span {
			intent.Delta = -span
		}
	case models.IntentGrantItem, models.IntentRemoveItem:
		if intent.Count <= 0 {
			intent.Count = 1
		}
	}
}

// 清理模型输出中常见的噪声：markdown围栏、BOM、异常空白
var modelNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
	"\uff1a", ":",
	"\uff0c", ",",
	"\uff5b", "{",
	"\uff5d", "}",
	"\uff3b", "[",
	"\uff3d", "]",
)

// cleanModelJSON 从原始模型输出中提取第一个平衡的JSON对象/数组
func cleanModelJSON(s string) string {
	if s == "" {
		return s
	}

	s = modelNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 丢弃第一个 { 或 [ 之前的全部内容
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return ""
	}
	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// 括号计数匹配，截取第一个平衡的JSON值
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 没有找到平衡的结束符，原样返回让上层报告解析错误
	return s
}
