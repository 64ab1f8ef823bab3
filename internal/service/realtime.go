package service

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"schoolchat/internal/models"
)

// RealtimeEvent 是推播通道上的訊息信封
type RealtimeEvent struct {
	Type    string                 `json:"type"` // "message" 或 "typing"
	Message *models.MessagePayload `json:"message,omitempty"`
	RoomID  models.FlexID          `json:"room_id,omitempty"`
	UserID  models.FlexID          `json:"user_id,omitempty"`
}

// RealtimeClient 維護一條到後端的 websocket 連線
// 收到的訊息交給 sink 回呼，與輪詢共用同一條 MergeIncoming 整併路徑
type RealtimeClient struct {
	sink   func([]models.Message)    // 新訊息批次的去向
	typing func(roomID, userID uint) // 對方正在輸入的通知，可為 nil

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func NewRealtimeClient(sink func([]models.Message), typing func(roomID, userID uint)) *RealtimeClient {
	return &RealtimeClient{sink: sink, typing: typing}
}

// Connect 建立 websocket 連線並啟動收發迴圈
// baseURL 是後端的 http(s) 位址，這裡換成對應的 ws(s) scheme
func (c *RealtimeClient) Connect(baseURL, token string) error {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.writePump(conn)
	go c.readPump(conn)
	return nil
}

// SendTyping 通知聊天室裡的其他人自己正在輸入
func (c *RealtimeClient) SendTyping(roomID uint) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil // 沒有即時連線時靜默略過，輸入提示只是輔助
	}

	event := RealtimeEvent{Type: "typing", RoomID: models.FlexID(roomID)}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close 關閉即時連線
func (c *RealtimeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		close(c.done)
		c.conn.Close()
		c.conn = nil
	}
}

// readPump 持續讀取推播事件並分派給對應的回呼
func (c *RealtimeClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			return
		}

		var event RealtimeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("realtime event parse error: %v", err)
			continue
		}

		switch event.Type {
		case "message":
			if event.Message == nil {
				continue
			}
			msg, err := event.Message.Message()
			if err != nil {
				continue
			}
			if c.sink != nil {
				c.sink([]models.Message{msg})
			}
		case "typing":
			if c.typing != nil {
				c.typing(uint(event.RoomID), uint(event.UserID))
			}
		}
	}
}

// writePump 定期送出心跳，維持連線不被閒置斷開
func (c *RealtimeClient) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
