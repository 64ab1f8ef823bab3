package fakeapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"schoolchat/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 測試環境不檢查 origin
	},
}

// hub 管理所有 websocket 連線，所有事件廣播給每一條連線
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount 回傳目前連線中的 websocket 客戶端數，測試用來等連線就緒
func (s *Server) ClientCount() int {
	return s.hub.count()
}

// handleWebSocket 驗證 query string 中的 token 後升級連線
func (s *Server) handleWebSocket(c *gin.Context) {
	claims, err := utils.ParseToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.add(conn)
	defer func() {
		s.hub.remove(conn)
		conn.Close()
	}()

	// 讀迴圈：typing 事件補上寄件者後轉發給其他連線
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var event struct {
			Type   string `json:"type"`
			RoomID uint   `json:"room_id"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.Type == "typing" {
			s.hub.broadcast(gin.H{"type": "typing", "room_id": event.RoomID, "user_id": claims.UserID})
		}
	}
}
