package service

import (
	"errors"
	"fmt"
	"sync"

	"schoolchat/internal/models"
	"schoolchat/internal/repository"
)

var ErrEmptyRoomName = errors.New("聊天室名稱不可為空")

// RoomService 管理聊天室清單與目前選取的聊天室
// 清單是伺服器狀態在客戶端的投影，抓取失敗時保留上一次成功的結果
type RoomService struct {
	roomRepo  repository.RoomRepository
	directory *DirectoryService

	mu      sync.RWMutex
	rooms   []models.Room
	active  *models.Room
	lastErr string
}

func NewRoomService(roomRepo repository.RoomRepository, directory *DirectoryService) *RoomService {
	return &RoomService{
		roomRepo:  roomRepo,
		directory: directory,
	}
}

// FetchRooms 重新抓取聊天室清單並整份替換本地快取
// 可以重複呼叫（輪詢）；本地推導的未讀數跨呼叫保留，只有 MarkRead 或選取會歸零
// 抓取失敗時不清空既有清單，錯誤以可讀字串保留給介面顯示
func (s *RoomService) FetchRooms() ([]models.Room, error) {
	payloads, err := s.roomRepo.FindAll()
	if err != nil {
		s.mu.Lock()
		s.lastErr = fmt.Sprintf("聊天室清單載入失敗: %v", err)
		s.mu.Unlock()
		return nil, err
	}

	rooms := make([]models.Room, 0, len(payloads))
	for _, payload := range payloads {
		room, err := payload.Room()
		if err != nil {
			continue // 略過無法辨識的紀錄
		}
		for _, id := range payload.ParticipantIDs() {
			room.Participants = append(room.Participants, s.directory.Resolve(id))
		}
		rooms = append(rooms, room)
	}

	s.mu.Lock()
	// 未讀數由本地訊息推導，既有聊天室沿用本地值，權威刷新不清掉它
	// 伺服器的 unread_count 只用於初次看到的聊天室
	prevUnread := make(map[uint]int, len(s.rooms))
	for i := range s.rooms {
		prevUnread[s.rooms[i].ID] = s.rooms[i].UnreadCount
	}
	for i := range rooms {
		if prev, ok := prevUnread[rooms[i].ID]; ok {
			rooms[i].UnreadCount = prev
		}
	}
	s.rooms = rooms
	s.lastErr = ""
	// 目前選取的聊天室換成新抓到的投影，選取狀態本身不變
	if s.active != nil {
		for i := range rooms {
			if rooms[i].ID == s.active.ID {
				refreshed := rooms[i]
				s.active = &refreshed
				break
			}
		}
	}
	s.mu.Unlock()

	return s.Rooms(), nil
}

// CreateRoom 建立新聊天室並立即寫進本地清單，下一次 FetchRooms 會以
// 伺服器版本整份替換，同一個 id 不會出現兩筆
func (s *RoomService) CreateRoom(name string) (models.Room, error) {
	if name == "" {
		return models.Room{}, ErrEmptyRoomName
	}

	created, err := s.roomRepo.Create(name)
	if err != nil {
		return models.Room{}, fmt.Errorf("建立聊天室失敗: %w", err)
	}
	room, err := created.Room()
	if err != nil {
		return models.Room{}, fmt.Errorf("建立聊天室失敗: %w", err)
	}
	for _, id := range created.ParticipantIDs() {
		room.Participants = append(room.Participants, s.directory.Resolve(id))
	}

	s.mu.Lock()
	replaced := false
	for i := range s.rooms {
		if s.rooms[i].ID == room.ID {
			s.rooms[i] = room
			replaced = true
			break
		}
	}
	if !replaced {
		s.rooms = append(s.rooms, room)
	}
	s.mu.Unlock()

	return room, nil
}

// UpdateRoom 先更新遠端，成功後把相同欄位鏡射到本地快取與目前選取的投影
// 未包含在 patch 中的欄位保持原樣
func (s *RoomService) UpdateRoom(id uint, patch models.RoomPatch) error {
	if err := s.roomRepo.Update(id, patch); err != nil {
		return fmt.Errorf("更新聊天室失敗: %w", err)
	}

	s.mu.Lock()
	for i := range s.rooms {
		if s.rooms[i].ID == id {
			patch.Apply(&s.rooms[i])
			break
		}
	}
	if s.active != nil && s.active.ID == id {
		patch.Apply(s.active)
	}
	s.mu.Unlock()

	return nil
}

// DeleteRoom 先刪除遠端，成功後從本地清單移除
// 刪掉的是目前選取的聊天室時，選取狀態一併清空
func (s *RoomService) DeleteRoom(id uint) error {
	if err := s.roomRepo.Delete(id); err != nil {
		return fmt.Errorf("刪除聊天室失敗: %w", err)
	}

	s.mu.Lock()
	for i := range s.rooms {
		if s.rooms[i].ID == id {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			break
		}
	}
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
	s.mu.Unlock()

	return nil
}

// SetActiveRoom 是純本地的選取動作，傳入 nil 代表「沒有選取任何聊天室」
// 選取聊天室同時把它的未讀數歸零
func (s *RoomService) SetActiveRoom(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room == nil {
		s.active = nil
		return
	}
	selected := *room
	selected.UnreadCount = 0
	s.active = &selected
	for i := range s.rooms {
		if s.rooms[i].ID == room.ID {
			s.rooms[i].UnreadCount = 0
			break
		}
	}
}

// ActiveRoom 回傳目前選取聊天室的副本，沒有選取時回傳 nil
func (s *RoomService) ActiveRoom() *models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return nil
	}
	copied := *s.active
	return &copied
}

// Rooms 回傳聊天室清單的副本
func (s *RoomService) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.Room, len(s.rooms))
	copy(rooms, s.rooms)
	return rooms
}

// LastError 回傳最近一次抓取失敗的可讀訊息，成功後清空
func (s *RoomService) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// UpdateLastMessage 更新聊天室的最後訊息快取，只在訊息較新時覆寫
// 這是訊息元件唯一會寫進聊天室狀態的路徑，採最後寫入者獲勝
func (s *RoomService) UpdateLastMessage(roomID uint, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	update := func(r *models.Room) {
		if r.LastMessage == nil || r.LastMessage.Before(msg) {
			copied := msg
			r.LastMessage = &copied
		}
	}
	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			update(&s.rooms[i])
			break
		}
	}
	if s.active != nil && s.active.ID == roomID {
		update(s.active)
	}
}

// BumpUnread 把非選取聊天室的未讀數加上 n，未讀數只從實際訊息推導
func (s *RoomService) BumpUnread(roomID uint, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.ID == roomID {
		return // 正在看的聊天室沒有未讀
	}
	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].UnreadCount += n
			break
		}
	}
}

// MarkRead 把聊天室的未讀數歸零
func (s *RoomService) MarkRead(roomID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].UnreadCount = 0
			break
		}
	}
	if s.active != nil && s.active.ID == roomID {
		s.active.UnreadCount = 0
	}
}
