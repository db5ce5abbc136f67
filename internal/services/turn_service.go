// internal/services/turn_service.go
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mythren/questweaver/internal/config"
	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/llm"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/utils"
)

// TurnPhase 回合阶段，推送给展示层做等待指示
type TurnPhase string

const (
	PhaseIdle       TurnPhase = "idle"
	PhaseBuilding   TurnPhase = "building"
	PhaseCalling    TurnPhase = "calling"
	PhaseValidating TurnPhase = "validating"
	PhaseApplying   TurnPhase = "applying"
)

// PhaseListener 回合阶段事件回调
type PhaseListener func(sessionID string, phase TurnPhase)

// 兜底叙述文案池：重试耗尽时按回合计数确定性选取，不改变任何状态
var fallbackNarrations = []string{
	"The path forward is unclear. The world seems to hold its breath, waiting.",
	"A strange fog settles over your thoughts. Perhaps try something else.",
	"The moment passes without consequence. The forest is quiet.",
	"Whatever you intended, the world does not answer. Try again.",
}

// TurnService 回合编排器
// 每回合经历 Idle→Building→Calling→Validating→Applying→Idle；
// 网关错误或硬验证错误最多重试MaxTurnRetries次（带纠正附言），
// 耗尽后回落到固定兜底叙述且世界版本不变。
// 每会话同一时刻至多一个在途回合，新指令在回合进行中被拒绝。
type TurnService struct {
	worlds   *WorldService
	prompts  *PromptBuilder
	gateway  *GatewayService
	parser   *ParserService
	applier  *EventApplier
	commands *CommandService
	quests   *QuestService

	gameConfig config.GameConfig
	metrics    *utils.TurnMetrics
	logger     *utils.Logger

	// 每会话的单回合互斥
	guards sync.Map // sessionID -> *sessionGuard

	// 在途回合计数，优雅停机时等待清零
	inflight sync.WaitGroup
	draining atomic.Bool

	listenerMu sync.RWMutex
	listeners  []PhaseListener
}

type sessionGuard struct {
	busy atomic.Bool
}

// NewTurnService 创建回合编排器
func NewTurnService(
	worlds *WorldService,
	prompts *PromptBuilder,
	gateway *GatewayService,
	parser *ParserService,
	applier *EventApplier,
	commands *CommandService,
	quests *QuestService,
	gameConfig config.GameConfig,
) *TurnService {
	return &TurnService{
		worlds:     worlds,
		prompts:    prompts,
		gateway:    gateway,
		parser:     parser,
		applier:    applier,
		commands:   commands,
		quests:     quests,
		gameConfig: gameConfig,
		metrics:    utils.NewTurnMetrics(),
		logger:     utils.GetLogger(),
	}
}

// RegisterPhaseListener 注册回合阶段监听（websocket推送用）
func (s *TurnService) RegisterPhaseListener(l PhaseListener) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenerMu.Unlock()
}

func (s *TurnService) notifyPhase(sessionID string, phase TurnPhase) {
	s.listenerMu.RLock()
	listeners := s.listeners
	s.listenerMu.RUnlock()
	for _, l := range listeners {
		l(sessionID, phase)
	}
}

// Drain 等待所有在途回合结束；停机路径调用，之后不再接受新回合
func (s *TurnService) Drain() {
	s.draining.Store(true)
	s.inflight.Wait()
}

func (s *TurnService) guardFor(sessionID string) *sessionGuard {
	value, _ := s.guards.LoadOrStore(sessionID, &sessionGuard{})
	return value.(*sessionGuard)
}

// ProcessCommand 处理一行玩家输入
// 机械指令直接确定性处理；叙事指令走完整AI管线
func (s *TurnService) ProcessCommand(ctx context.Context, sessionID, input string) (*TurnResult, error) {
	session, err := s.worlds.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	if s.draining.Load() {
		return nil, apperrors.NewConflictError("服务正在停机，不再接受新回合", nil)
	}

	guard := s.guardFor(sessionID)
	if !guard.busy.CompareAndSwap(false, true) {
		return nil, apperrors.NewConflictError("已有回合正在处理中", nil)
	}
	s.inflight.Add(1)
	defer func() {
		guard.busy.Store(false)
		s.inflight.Done()
		s.notifyPhase(sessionID, PhaseIdle)
	}()

	cmd := s.commands.Parse(input)
	if cmd.Kind == CommandNarrative {
		return s.runNarrativeTurn(ctx, session, cmd.Raw)
	}
	return s.runMechanicalCommand(session, cmd)
}

// runNarrativeTurn 完整AI回合：构建→调用→验证→应用
func (s *TurnService) runNarrativeTurn(ctx context.Context, session *GameSession, command string) (*TurnResult, error) {
	start := time.Now()
	turnNumber := atomic.AddInt64(&session.TurnCounter, 1)
	world := session.Snapshot()

	s.notifyPhase(session.ID, PhaseBuilding)
	basePayload := s.prompts.Build(world, command)
	systemPrompt := s.prompts.SystemPrompt()
	schemaHint := s.parser.SchemaHint()

	var corrective string
	maxAttempts := s.gameConfig.MaxTurnRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		payload := basePayload
		if corrective != "" {
			payload = basePayload + "\n\n" + corrective
		}

		s.notifyPhase(session.ID, PhaseCalling)
		raw, err := s.gateway.Generate(ctx, payload, systemPrompt, schemaHint)
		if err != nil {
			if _, ok := llm.IsGatewayError(err); ok {
				s.logger.Warn("网关调用失败，准备重试", map[string]interface{}{
					"session_id": session.ID,
					"attempt":    attempt + 1,
					"error":      err.Error(),
				})
				continue
			}
			// 非网关错误（如服务未就绪）不重试
			return nil, err
		}

		s.notifyPhase(session.ID, PhaseValidating)
		proposal, err := s.parser.Parse(raw, world)
		if err != nil {
			if apperrors.IsHardValidationFailure(err) {
				s.recordRejection(session.ID, err)
				corrective = correctiveAddendum(err)
				continue
			}
			return nil, err
		}

		s.notifyPhase(session.ID, PhaseApplying)
		committed, result, err := s.applier.Apply(world, proposal, command)
		if err != nil {
			s.recordRejection(session.ID, err)
			corrective = correctiveAddendum(err)
			continue
		}

		s.worlds.Commit(session, committed)
		s.metrics.RecordTurn(session.ID, attempt, false, time.Since(start))
		return result, nil
	}

	// 重试耗尽：兜底叙述，世界状态不变
	result := &TurnResult{
		Narration:    fallbackNarrations[turnNumber%int64(len(fallbackNarrations))],
		WorldVersion: world.State.Version,
		Fallback:     true,
	}
	s.metrics.RecordTurn(session.ID, maxAttempts-1, true, time.Since(start))
	s.logger.Warn("回合重试耗尽，返回兜底叙述", map[string]interface{}{
		"session_id": session.ID,
		"attempts":   maxAttempts,
	})
	return result, nil
}

// recordRejection 记录一次提案被拒
func (s *TurnService) recordRejection(sessionID string, err error) {
	kind := "unknown"
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		kind = string(appErr.Type)
	}
	s.metrics.RecordValidationFailure(sessionID, kind)
}

// correctiveAddendum 失败后追加到提示词的纠正附言
func correctiveAddendum(err error) string {
	return fmt.Sprintf(
		"Your previous response was rejected: %s. "+
			"Regenerate the entire response as a single valid JSON object "+
			"matching the provided schema. Reference only entities listed in the context.",
		err.Error())
}

// runMechanicalCommand 机械指令：无AI调用的确定性处理
func (s *TurnService) runMechanicalCommand(session *GameSession, cmd PlayerCommand) (*TurnResult, error) {
	world := session.Snapshot()

	switch cmd.Kind {
	case CommandLook:
		return s.describeLocation(world), nil
	case CommandInventory:
		return s.describeInventory(world), nil
	case CommandStats:
		return s.describeStats(world), nil
	case CommandJournal:
		return s.describeJournal(world), nil
	case CommandMove:
		return s.commitMechanical(session, world, func(w *models.World) (string, error) {
			loc, ok := w.Locations[cmd.Arg]
			if !ok {
				return "", apperrors.NewValidationError(fmt.Sprintf("没有这个地点: %s", cmd.Arg), nil)
			}
			current := w.CurrentLocationState()
			if current != nil && !containsString(current.Exits, cmd.Arg) {
				return "", apperrors.NewValidationError(fmt.Sprintf("从这里去不了 %s", loc.Name), nil)
			}
			w.State.CurrentLocation = cmd.Arg
			if w.Player != nil {
				w.Player.Location = cmd.Arg
			}
			return fmt.Sprintf("You make your way to the %s.\n%s", loc.Name, loc.Description), nil
		})
	case CommandAccept:
		return s.commitMechanical(session, world, func(w *models.World) (string, error) {
			if err := s.quests.Accept(w, cmd.Arg); err != nil {
				return "", err
			}
			return fmt.Sprintf("Quest accepted: %s", w.Quests[cmd.Arg].Title), nil
		})
	case CommandDecline:
		return s.commitMechanical(session, world, func(w *models.World) (string, error) {
			if err := s.quests.Decline(w, cmd.Arg); err != nil {
				return "", err
			}
			return fmt.Sprintf("Quest declined: %s", w.Quests[cmd.Arg].Title), nil
		})
	case CommandAbandon:
		return s.commitMechanical(session, world, func(w *models.World) (string, error) {
			if err := s.quests.Abandon(w, cmd.Arg); err != nil {
				return "", err
			}
			return fmt.Sprintf("Quest abandoned: %s", w.Quests[cmd.Arg].Title), nil
		})
	}

	return nil, apperrors.NewValidationError(fmt.Sprintf("无法处理的指令类别: %s", cmd.Kind), nil)
}

// commitMechanical 在工作副本上执行确定性变更并原子提交（版本+1）
func (s *TurnService) commitMechanical(session *GameSession, world *models.World, mutate func(*models.World) (string, error)) (*TurnResult, error) {
	working := world.Clone()

	narration, err := mutate(working)
	if err != nil {
		return nil, err
	}

	working.State.Version++
	working.State.UpdatedAt = time.Now()
	s.worlds.Commit(session, working)

	return &TurnResult{
		Narration:    narration,
		WorldVersion: working.State.Version,
	}, nil
}

func (s *TurnService) describeLocation(world *models.World) *TurnResult {
	var sb strings.Builder
	loc := world.CurrentLocationState()
	if loc != nil {
		sb.WriteString(loc.Name + "\n" + loc.Description + "\n")
		if len(loc.Exits) > 0 {
			sb.WriteString("Exits: " + strings.Join(loc.Exits, ", ") + "\n")
		}
	}
	npcs := world.NPCsAtLocation(world.State.CurrentLocation)
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].ID < npcs[j].ID })
	for _, npc := range npcs {
		sb.WriteString(fmt.Sprintf("You see %s (%s).\n", npc.Name, npc.DispositionBand()))
	}
	return &TurnResult{Narration: strings.TrimSpace(sb.String()), WorldVersion: world.State.Version}
}

func (s *TurnService) describeInventory(world *models.World) *TurnResult {
	if world.Player == nil || len(world.Player.Inventory) == 0 {
		return &TurnResult{Narration: "Your pack is empty.", WorldVersion: world.State.Version}
	}
	items := make([]string, 0, len(world.Player.Inventory))
	for id, count := range world.Player.Inventory {
		items = append(items, fmt.Sprintf("%s x%d", id, count))
	}
	sort.Strings(items)
	return &TurnResult{
		Narration:    "You are carrying: " + strings.Join(items, ", "),
		WorldVersion: world.State.Version,
	}
}

func (s *TurnService) describeStats(world *models.World) *TurnResult {
	if world.Player == nil {
		return &TurnResult{Narration: "No character.", WorldVersion: world.State.Version}
	}
	stats := make([]string, 0, len(world.Player.Stats))
	for name, value := range world.Player.Stats {
		stats = append(stats, fmt.Sprintf("%s: %d", name, value))
	}
	sort.Strings(stats)
	return &TurnResult{
		Narration:    fmt.Sprintf("%s the %s: %s", world.Player.Name, world.Player.Class, strings.Join(stats, ", ")),
		WorldVersion: world.State.Version,
	}
}

func (s *TurnService) describeJournal(world *models.World) *TurnResult {
	quests := s.quests.Journal(world)
	if len(quests) == 0 {
		return &TurnResult{Narration: "Your journal is empty.", WorldVersion: world.State.Version}
	}
	lines := make([]string, 0, len(quests))
	for _, quest := range quests {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s (%s)", quest.State, quest.Title, quest.Summary, RewardText(quest.Reward)))
	}
	sort.Strings(lines)
	return &TurnResult{Narration: strings.Join(lines, "\n"), WorldVersion: world.State.Version}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
