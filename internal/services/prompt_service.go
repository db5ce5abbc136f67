// internal/services/prompt_service.go
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// 系统提示：固定的叙事指令
const narratorSystemPrompt = `You are the narrator of a text-driven fantasy role-playing game. ` +
	`Respond to the player's command with vivid but concise narration. ` +
	`All state changes must be expressed as structured intents in the JSON schema you are given; ` +
	`never assume a change has happened unless you emit the matching intent.`

// dialogueEntry 参与预算裁剪的一轮对话
type dialogueEntry struct {
	npcName string
	turn    models.DialogueTurn
}

// PromptBuilder 提示词构建器：在预算内组装有界上下文载荷
// 只读，无副作用；裁剪顺序：先最旧对话，再非活跃任务摘要，
// 玩家指令和当前地点状态永不丢弃
type PromptBuilder struct {
	budget      int // 字符预算B
	turnsPerNPC int // 每个在场NPC包含的最近对话轮数K
	logger      *utils.Logger
}

// NewPromptBuilder 创建提示词构建器
func NewPromptBuilder(gameConfig config.GameConfig) *PromptBuilder {
	return &PromptBuilder{
		budget:      gameConfig.PromptBudget,
		turnsPerNPC: gameConfig.PromptTurnsPerNPC,
		logger:      utils.GetLogger(),
	}
}

// SystemPrompt 返回固定的叙事系统提示
func (b *PromptBuilder) SystemPrompt() string {
	return narratorSystemPrompt
}

// Build 组装上下文载荷
func (b *PromptBuilder) Build(world *models.World, command string) string {
	mandatory := b.mandatorySections(world, command)

	// 对话轮按世界版本号升序排列（因果序），裁剪时从头部丢弃
	dialogue := b.collectDialogue(world)
	activeQuests := b.questSection(world, true)
	inactiveQuests := b.questSection(world, false)

	payload := b.render(mandatory, dialogue, activeQuests, inactiveQuests)

	// 第一阶段裁剪：丢弃最旧的对话轮
	for len(payload) > b.budget && len(dialogue) > 0 {
		dialogue = dialogue[1:]
		payload = b.render(mandatory, dialogue, activeQuests, inactiveQuests)
	}

	// 第二阶段裁剪：丢弃非活跃任务摘要
	if len(payload) > b.budget && inactiveQuests != "" {
		inactiveQuests = ""
		payload = b.render(mandatory, dialogue, activeQuests, inactiveQuests)
	}

	if len(payload) > b.budget {
		b.logger.Warn("提示词载荷超出预算且无可裁剪内容", map[string]interface{}{
			"size":   len(payload),
			"budget": b.budget,
		})
	}

	return payload
}

// mandatorySections 永不裁剪的部分：当前地点状态、玩家摘要、玩家指令
func (b *PromptBuilder) mandatorySections(world *models.World, command string) [2]string {
	var sb strings.Builder

	loc := world.CurrentLocationState()
	if loc != nil {
		sb.WriteString(fmt.Sprintf("## Current location\n%s: %s\n", loc.Name, loc.Description))
		if len(loc.Exits) > 0 {
			sb.WriteString(fmt.Sprintf("Exits: %s\n", strings.Join(loc.Exits, ", ")))
		}
	}

	npcs := world.NPCsAtLocation(world.State.CurrentLocation)
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].ID < npcs[j].ID })
	for _, npc := range npcs {
		sb.WriteString(fmt.Sprintf("- %s (%s, %s, id=%s)\n", npc.Name, npc.Type, npc.DispositionBand(), npc.ID))
	}

	if world.Player != nil {
		p := world.Player
		sb.WriteString(fmt.Sprintf("\n## Player\n%s the %s", p.Name, p.Class))
		stats := make([]string, 0, len(p.Stats))
		for name, value := range p.Stats {
			stats = append(stats, fmt.Sprintf("%s=%d", name, value))
		}
		sort.Strings(stats)
		sb.WriteString(" [" + strings.Join(stats, " ") + "]\n")

		items := make([]string, 0, len(p.Inventory))
		for id, count := range p.Inventory {
			items = append(items, fmt.Sprintf("%s x%d", id, count))
		}
		sort.Strings(items)
		sb.WriteString("Inventory: " + strings.Join(items, ", ") + "\n")
	}

	commandSection := fmt.Sprintf("## Player command\n%s\n", command)

	return [2]string{sb.String(), commandSection}
}

// collectDialogue 收集在场NPC的最近K轮对话，按版本号升序
func (b *PromptBuilder) collectDialogue(world *models.World) []dialogueEntry {
	var entries []dialogueEntry
	for _, npc := range world.NPCsAtLocation(world.State.CurrentLocation) {
		if npc.Memory == nil {
			continue
		}
		for _, turn := range npc.Memory.Recent(b.turnsPerNPC) {
			entries = append(entries, dialogueEntry{npcName: npc.Name, turn: turn})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].turn.WorldVersion < entries[j].turn.WorldVersion
	})

	return entries
}

// questSection 任务摘要部分；active=false时为非活跃任务（可裁剪）
func (b *PromptBuilder) questSection(world *models.World, active bool) string {
	var lines []string
	for _, quest := range world.Quests {
		isActive := quest.State == models.QuestActive
		if isActive != active {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s (id=%s): %s", quest.State, quest.Title, quest.ID, quest.Summary))
	}
	if len(lines) == 0 {
		return ""
	}
	sort.Strings(lines)

	header := "## Active quests\n"
	if !active {
		header = "## Other quests\n"
	}
	return header + strings.Join(lines, "\n") + "\n"
}

// render 拼装最终载荷
func (b *PromptBuilder) render(mandatory [2]string, dialogue []dialogueEntry, activeQuests, inactiveQuests string) string {
	var sb strings.Builder

	sb.WriteString(mandatory[0])

	if activeQuests != "" {
		sb.WriteString("\n" + activeQuests)
	}
	if inactiveQuests != "" {
		sb.WriteString("\n" + inactiveQuests)
	}

	if len(dialogue) > 0 {
		sb.WriteString("\n## Recent dialogue\n")
		for _, entry := range dialogue {
			speaker := "Player"
			if entry.turn.Speaker == models.SpeakerNPC {
				speaker = entry.npcName
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", speaker, entry.turn.Utterance))
		}
	}

	sb.WriteString("\n" + mandatory[1])

	return sb.String()
}
