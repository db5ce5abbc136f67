// internal/services/command_service.go
package services

import "strings"

// CommandKind 玩家指令的路由类别
type CommandKind string

const (
	// 机械指令：不经过AI管线，直接确定性处理
	CommandMove      CommandKind = "move"
	CommandLook      CommandKind = "look"
	CommandInventory CommandKind = "inventory"
	CommandStats     CommandKind = "stats"
	CommandJournal   CommandKind = "journal"
	CommandAccept    CommandKind = "accept_quest"
	CommandDecline   CommandKind = "decline_quest"
	CommandAbandon   CommandKind = "abandon_quest"

	// 叙事指令：触发完整的提示词→网关→验证→应用管线
	CommandNarrative CommandKind = "narrative"
)

// PlayerCommand 解析后的玩家指令
type PlayerCommand struct {
	Kind CommandKind
	Arg  string // 地点ID、任务ID等
	Raw  string
}

// CommandService 自由文本指令解析器
// 把输入行映射为机械意图或叙事意图；无法识别的输入一律走叙事管线
type CommandService struct{}

// NewCommandService 创建指令解析服务
func NewCommandService() *CommandService {
	return &CommandService{}
}

// Parse 解析一行玩家输入
func (s *CommandService) Parse(input string) PlayerCommand {
	raw := strings.TrimSpace(input)
	lower := strings.ToLower(raw)
	fields := strings.Fields(lower)

	if len(fields) == 0 {
		return PlayerCommand{Kind: CommandLook, Raw: raw}
	}

	verb := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(lower, verb))

	switch verb {
	case "go", "move", "travel":
		if rest == "" {
			return PlayerCommand{Kind: CommandNarrative, Raw: raw}
		}
		return PlayerCommand{Kind: CommandMove, Arg: normalizeID(rest), Raw: raw}
	case "look", "l":
		return PlayerCommand{Kind: CommandLook, Raw: raw}
	case "inventory", "inv", "i":
		return PlayerCommand{Kind: CommandInventory, Raw: raw}
	case "stats", "status":
		return PlayerCommand{Kind: CommandStats, Raw: raw}
	case "journal", "quests":
		return PlayerCommand{Kind: CommandJournal, Raw: raw}
	case "accept":
		return questCommand(CommandAccept, rest, raw)
	case "decline":
		return questCommand(CommandDecline, rest, raw)
	case "abandon":
		return questCommand(CommandAbandon, rest, raw)
	}

	return PlayerCommand{Kind: CommandNarrative, Raw: raw}
}

func questCommand(kind CommandKind, rest, raw string) PlayerCommand {
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "quest"))
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return PlayerCommand{Kind: CommandNarrative, Raw: raw}
	}
	return PlayerCommand{Kind: kind, Arg: rest, Raw: raw}
}

// normalizeID 把"deep forest"这类口语写法规整为ID形式
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "to ")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "_")
}
