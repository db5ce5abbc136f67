// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// WebSocketClient 表示一个已连接到游戏会话的客户端
type WebSocketClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	closed    int32 // 原子标志，0=开启，1=关闭
	lastPing  time.Time
	createdAt time.Time
}

// WebSocketManager 管理所有会话的 WebSocket 连接
// 回合阶段事件和叙述结果经由它推送给展示层
type WebSocketManager struct {
	connections map[string]map[*websocket.Conn]*WebSocketClient // sessionID -> connections
	register    chan *WebSocketClient
	unregister  chan *WebSocketClient
	shutdownCh  chan bool
	mutex       sync.RWMutex
	pingTimeout time.Duration
}

// 全局 WebSocket 管理器
var wsManager = &WebSocketManager{
	connections: make(map[string]map[*websocket.Conn]*WebSocketClient),
	register:    make(chan *WebSocketClient, 256),
	unregister:  make(chan *WebSocketClient, 256),
	shutdownCh:  make(chan bool, 1),
	pingTimeout: 60 * time.Second,
}

func init() {
	go wsManager.run()
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(client.lastPing) > timeout
}

// run 管理器主循环
func (manager *WebSocketManager) run() {
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case <-manager.shutdownCh:
			manager.shutdown()
			return
		}
	}
}

func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*websocket.Conn]*WebSocketClient)
	}

	manager.connections[client.sessionID][client.conn] = client
	client.UpdatePing()

	log.Printf("WebSocket 客户端已连接到会话 %s", client.sessionID)
}

func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if connections, exists := manager.connections[client.sessionID]; exists {
		delete(connections, client.conn)
		if len(connections) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}

	if !client.IsClosed() {
		client.Close()
	}

	log.Printf("WebSocket 客户端已断开连接 (会话: %s)", client.sessionID)
}

// cleanupExpiredConnections 清理过期和死连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for sessionID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, conn)
				if !client.IsClosed() {
					client.Close()
				}
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, sessionID)
		}
	}
}

// shutdown 优雅关闭管理器
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, connections := range manager.connections {
		for _, client := range connections {
			client.Close()
		}
	}

	manager.connections = make(map[string]map[*websocket.Conn]*WebSocketClient)
}

// BroadcastToSession 向指定会话的所有客户端推送消息
func (manager *WebSocketManager) BroadcastToSession(sessionID string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("序列化推送消息失败: %v", err)
		return
	}

	manager.mutex.RLock()
	connections, exists := manager.connections[sessionID]
	if !exists {
		manager.mutex.RUnlock()
		return
	}

	clients := make([]*WebSocketClient, 0, len(connections))
	for _, client := range connections {
		if !client.IsClosed() {
			clients = append(clients, client)
		}
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msgBytes:
		default:
			// 队列满时丢弃消息，连接交给清理循环处理
			log.Printf("会话 %s 的推送队列已满，消息被丢弃", sessionID)
		}
	}
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]interface{})
	totalConnections := 0

	for sessionID, connections := range manager.connections {
		active := 0
		for _, client := range connections {
			if client != nil && !client.IsClosed() {
				active++
			}
		}
		sessions[sessionID] = map[string]interface{}{"client_count": active}
		totalConnections += active
	}

	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": totalConnections,
		"sessions":          sessions,
	}
}

// BroadcastTurnPhase 推送回合阶段事件（展示层的等待指示）
func BroadcastTurnPhase(sessionID, phase string) {
	wsManager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      "turn_phase",
		"phase":     phase,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// BroadcastTurnResult 推送回合叙述结果
func BroadcastTurnResult(sessionID string, result interface{}) {
	wsManager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      "turn_result",
		"result":    result,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleWebSocketReads 读取循环：处理pong与客户端关闭
func handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		wsManager.unregister <- client
	}()

	client.conn.SetReadDeadline(time.Now().Add(wsManager.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsManager.pingTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

// handleWebSocketWrites 写入循环：发送队列与周期性ping
func handleWebSocketWrites(client *WebSocketClient) {
	pingTicker := time.NewTicker(30 * time.Second)
	defer func() {
		pingTicker.Stop()
		client.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pingTicker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
