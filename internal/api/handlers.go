// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mythren/questweaver/internal/auth"
	"github.com/mythren/questweaver/internal/config"
	apperrors "github.com/mythren/questweaver/internal/errors"
	"github.com/mythren/questweaver/internal/models"
	"github.com/mythren/questweaver/internal/services"
	"github.com/mythren/questweaver/internal/utils"
)

// Handler API处理器
type Handler struct {
	WorldService *services.WorldService
	TurnService  *services.TurnService
	QuestService *services.QuestService
	SaveService  *services.SaveService
	Gateway      *services.GatewayService

	TokenConfig *auth.TokenConfig
	Response    *ResponseHelper
	logger      *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(
	worldService *services.WorldService,
	turnService *services.TurnService,
	questService *services.QuestService,
	saveService *services.SaveService,
	gateway *services.GatewayService,
	tokenConfig *auth.TokenConfig,
) *Handler {
	return &Handler{
		WorldService: worldService,
		TurnService:  turnService,
		QuestService: questService,
		SaveService:  saveService,
		Gateway:      gateway,
		TokenConfig:  tokenConfig,
		Response:     NewResponseHelper(),
		logger:       utils.GetLogger(),
	}
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ------------------------------------------------

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	PlayerName string `json:"player_name"`
}

// CreateSession 创建新游戏会话，返回会话ID与绑定令牌
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.Response.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	session := h.WorldService.CreateSession(req.PlayerName)

	token, err := auth.GenerateSessionToken(session.ID, h.TokenConfig)
	if err != nil {
		h.Response.InternalError(c, "生成会话令牌失败")
		return
	}

	h.Response.Created(c, gin.H{
		"session_id": session.ID,
		"token":      token,
		"state":      stateView(session.Snapshot()),
	}, "会话已创建")
}

// GetSessionState 世界状态摘要（展示边界）
func (h *Handler) GetSessionState(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	h.Response.Success(c, stateView(session.Snapshot()))
}

// CommandRequest 玩家指令请求
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// PostCommand 提交玩家指令；回合进行中返回409
func (h *Handler) PostCommand(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "缺少command字段", err.Error())
		return
	}

	result, err := h.TurnService.ProcessCommand(c.Request.Context(), session.ID, req.Command)
	if err != nil {
		h.respondTurnError(c, err)
		return
	}

	BroadcastTurnResult(session.ID, result)
	h.Response.Success(c, result)
}

// GetQuests 任务日志（含终态任务）
func (h *Handler) GetQuests(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	world := session.Snapshot()
	quests := h.QuestService.Journal(world)
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
	h.Response.Success(c, quests)
}

// GetNPCMemory 指定NPC的有界对话记忆
func (h *Handler) GetNPCMemory(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	npcID := c.Param("npc_id")
	world := session.Snapshot()
	npc, exists := world.NPCs[npcID]
	if !exists {
		h.Response.NotFound(c, ErrorNotFound, fmt.Sprintf("NPC不存在: %s", npcID))
		return
	}

	var turns []models.DialogueTurn
	capacity := 0
	if npc.Memory != nil {
		turns = npc.Memory.Turns
		capacity = npc.Memory.Capacity
	}

	h.Response.Success(c, gin.H{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"capacity": capacity,
		"turns":    turns,
	})
}

// SaveSession 保存会话快照
func (h *Handler) SaveSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	snapshot, err := h.SaveService.Save(session)
	if err != nil {
		// 存档失败是非致命通知，内存状态仍然权威
		h.Response.Error(c, http.StatusInternalServerError, ErrorSaveFailed, err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"session_id":    snapshot.SessionID,
		"world_version": snapshot.WorldVersion,
		"saved_at":      snapshot.SavedAt,
	}, "存档成功")
}

// LoadSession 从快照恢复会话
func (h *Handler) LoadSession(c *gin.Context) {
	sessionID := c.Param("id")

	if !h.SaveService.HasSave(sessionID) {
		h.Response.NotFound(c, ErrorSaveNotFound, "该会话没有存档")
		return
	}

	session, stale, err := h.SaveService.Load(sessionID)
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorLoadFailed, err.Error())
		return
	}

	message := "存档已恢复"
	if stale {
		message = "存档已恢复（注意：该存档落后于之前的内存进度）"
	}

	h.Response.Success(c, gin.H{
		"state": stateView(session.Snapshot()),
		"stale": stale,
	}, message)
}

// GetStatus LLM网关就绪状态
func (h *Handler) GetStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"ready":    h.Gateway.IsReady(),
		"state":    h.Gateway.GetReadyState(),
		"provider": h.Gateway.GetProviderName(),
	})
}

// UpdateLLMConfigRequest 更新LLM配置请求
type UpdateLLMConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
}

// UpdateLLMConfig 更新LLM提供者配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	if err := h.Gateway.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, err.Error())
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.logger.Error("持久化LLM配置失败", map[string]interface{}{"error": err.Error()})
	}

	h.Response.Success(c, gin.H{
		"provider": req.Provider,
		"ready":    h.Gateway.IsReady(),
	}, "LLM配置已更新")
}

// GetMetrics 指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics())
}

// GetWebSocketStatus WebSocket连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, wsManager.GetStatus())
}

// SessionWebSocket 会话WebSocket：回合阶段与叙述推送
func (h *Handler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.WorldService.GetSession(sessionID); err != nil {
		h.Response.NotFound(c, ErrorSessionNotFound, "会话不存在")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	wsManager.register <- client

	go handleWebSocketWrites(client)
	go handleWebSocketReads(client)
}

// ------------------------------------------------

// lookupSession 解析:id并查找会话，失败时写出404
func (h *Handler) lookupSession(c *gin.Context) (*services.GameSession, bool) {
	session, err := h.WorldService.GetSession(c.Param("id"))
	if err != nil {
		h.Response.NotFound(c, ErrorSessionNotFound, "会话不存在")
		return nil, false
	}
	return session, true
}

// respondTurnError 把回合错误映射为HTTP响应
func (h *Handler) respondTurnError(c *gin.Context, err error) {
	switch {
	case apperrors.IsConflictError(err):
		h.Response.Conflict(c, ErrorTurnInProgress, "已有回合正在处理中，请稍候")
	case apperrors.IsNotFoundError(err):
		h.Response.NotFound(c, ErrorSessionNotFound, err.Error())
	case apperrors.IsValidationError(err):
		h.Response.BadRequest(c, err.Error())
	case apperrors.IsIllegalTransitionError(err):
		h.Response.Error(c, http.StatusConflict, ErrorIllegalTransition, err.Error())
	default:
		if !h.Gateway.IsReady() {
			h.Response.ServiceUnavailable(c, ErrorLLMServiceUnavailable, h.Gateway.GetReadyState())
			return
		}
		h.Response.InternalError(c, err.Error())
	}
}

// stateView 世界状态的展示视图，不暴露内部聚合结构
func stateView(world *models.World) gin.H {
	loc := world.CurrentLocationState()

	npcs := make([]gin.H, 0)
	for _, npc := range world.NPCsAtLocation(world.State.CurrentLocation) {
		npcs = append(npcs, gin.H{
			"id":          npc.ID,
			"name":        npc.Name,
			"type":        npc.Type,
			"disposition": npc.DispositionBand(),
		})
	}
	sort.Slice(npcs, func(i, j int) bool {
		return npcs[i]["id"].(string) < npcs[j]["id"].(string)
	})

	view := gin.H{
		"version": world.State.Version,
		"flags":   world.State.Flags,
		"npcs":    npcs,
	}
	if loc != nil {
		view["location"] = gin.H{
			"id":          loc.ID,
			"name":        loc.Name,
			"description": loc.Description,
			"exits":       loc.Exits,
		}
	}
	if world.Player != nil {
		view["player"] = gin.H{
			"name":      world.Player.Name,
			"class":     world.Player.Class,
			"stats":     world.Player.Stats,
			"inventory": world.Player.Inventory,
		}
	}

	return view
}
