package service

import (
	"log"
	"sync"
	"time"

	"schoolchat/internal/models"
	"schoolchat/internal/repository"
)

// Services 聚合聊天同步引擎的所有元件
// currentUserID 由建構時明確傳入，核心不依賴任何外部環境查找
type Services struct {
	Directory *DirectoryService
	Room      *RoomService
	Message   *MessageService
	Realtime  *RealtimeClient

	// lastSeen 是輪詢用的水位線：每個聊天室最後看過的訊息時間
	// 未讀數只從比水位線新的實際訊息推導
	mu       sync.Mutex
	lastSeen map[uint]time.Time
	primed   bool
}

func NewServices(repos *repository.Repositories, currentUserID uint) *Services {
	directory := NewDirectoryService(repos.Roster)
	room := NewRoomService(repos.Room, directory)
	message := NewMessageService(repos.Message, directory, room, currentUserID)

	s := &Services{
		Directory: directory,
		Room:      room,
		Message:   message,
		lastSeen:  make(map[uint]time.Time),
	}
	s.Realtime = NewRealtimeClient(s.routeIncoming, nil)
	return s
}

// SelectRoom 切換目前的聊天室：更新選取狀態、重設訊息串流並抓取歷史
// 傳入 nil 代表取消選取
func (s *Services) SelectRoom(room *models.Room) error {
	s.Room.SetActiveRoom(room)
	if room == nil {
		s.Message.SetRoom(0)
		return nil
	}
	s.Message.SetRoom(room.ID)
	return s.Message.FetchMessages(room.ID)
}

// routeIncoming 把推播進來的訊息送往正確的位置：
// 目前聊天室的訊息併入串流視圖，其他聊天室只更新未讀數與最後訊息快取
func (s *Services) routeIncoming(batch []models.Message) {
	activeID := s.Message.RoomID()

	var active []models.Message
	for _, msg := range batch {
		if msg.RoomID == activeID {
			active = append(active, msg)
			continue
		}
		s.Room.UpdateLastMessage(msg.RoomID, msg)
		s.Room.BumpUnread(msg.RoomID, 1)
		s.advanceWatermark(msg.RoomID, msg.CreatedAt)
	}
	if len(active) > 0 {
		s.Message.MergeIncoming(active)
		for _, msg := range active {
			s.advanceWatermark(msg.RoomID, msg.CreatedAt)
		}
	}
}

// SyncOnce 執行一輪輪詢：刷新聊天室清單，抓一次全域訊息清單，
// 目前聊天室的部分餵給 MergeIncoming，其他聊天室更新快取與未讀數
// 輪詢和推播走的是同一條整併路徑
func (s *Services) SyncOnce() error {
	if _, err := s.Room.FetchRooms(); err != nil {
		return err
	}

	payloads, err := s.Message.messageRepo.FindAll()
	if err != nil {
		return err
	}

	activeID := s.Message.RoomID()
	perRoom := make(map[uint][]models.Message)
	for _, payload := range payloads {
		msg, err := payload.Message()
		if err != nil {
			continue
		}
		perRoom[msg.RoomID] = append(perRoom[msg.RoomID], msg)
	}

	s.mu.Lock()
	primed := s.primed
	s.primed = true
	s.mu.Unlock()

	for roomID, batch := range perRoom {
		if roomID == activeID {
			s.Message.MergeIncoming(batch)
			for _, msg := range batch {
				s.advanceWatermark(roomID, msg.CreatedAt)
			}
			continue
		}

		unseen := 0
		var last models.Message
		for _, msg := range batch {
			if s.afterWatermark(roomID, msg.CreatedAt) {
				unseen++
			}
			if last.ID == "" || last.Before(msg) {
				last = msg
			}
		}
		if last.ID != "" {
			s.Room.UpdateLastMessage(roomID, last)
			s.advanceWatermark(roomID, last.CreatedAt)
		}
		// 第一輪只建立水位線，不把整段歷史算成未讀
		if primed {
			s.Room.BumpUnread(roomID, unseen)
		}
	}
	return nil
}

// Poll 以固定間隔重複執行 SyncOnce，直到 stop 關閉為止
// 背景刷新失敗只記錄，不打斷迴圈，畫面保留最後一次成功的狀態
func (s *Services) Poll(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.SyncOnce(); err != nil {
				log.Printf("background sync failed: %v", err)
			}
		}
	}
}

func (s *Services) advanceWatermark(roomID uint, ts time.Time) {
	if ts.IsZero() {
		return
	}
	s.mu.Lock()
	if ts.After(s.lastSeen[roomID]) {
		s.lastSeen[roomID] = ts
	}
	s.mu.Unlock()
}

func (s *Services) afterWatermark(roomID uint, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ts.After(s.lastSeen[roomID])
}
