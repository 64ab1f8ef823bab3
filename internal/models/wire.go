package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// 後端回傳的 JSON 型別並不嚴謹，所有外部資料都必須經過這裡的轉換
// 才能進入核心，不讓鬆散的形狀往內層擴散

// FlexID 接受數字或字串形式的識別碼
type FlexID uint

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*f = FlexID(n)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n)
	return nil
}

// RosterPayload 是名冊端點回傳的鬆散紀錄，至少包含 id 和 name
type RosterPayload struct {
	ID     FlexID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Participant 將名冊紀錄轉成參與者，角色由名冊來源決定
// 沒有識別碼的紀錄視為無效，回傳 false 由呼叫端略過
func (p RosterPayload) Participant(role Role) (Participant, bool) {
	if p.ID == 0 {
		return Participant{}, false
	}
	name := p.Name
	if name == "" {
		name = PlaceholderName
	}
	return Participant{
		ID:       uint(p.ID),
		Name:     name,
		Avatar:   p.Avatar,
		Role:     role,
		Presence: PresenceOffline,
	}, true
}

// MessagePayload 是訊息端點回傳的鬆散紀錄
type MessagePayload struct {
	ID         string `json:"id"`
	RoomID     FlexID `json:"room_id"`
	SenderID   FlexID `json:"sender_id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment"`
	VoiceNote  string `json:"voice_note"`
	CreatedAt  string `json:"created_at"`
	IsDeleted  bool   `json:"is_deleted"`
}

var ErrInvalidPayload = errors.New("無法辨識的資料格式")

// Message 將鬆散紀錄轉成訊息實體
// 缺少識別碼或聊天室編號的紀錄直接拒絕，時間戳解析失敗時以零值代替
func (p MessagePayload) Message() (Message, error) {
	if p.ID == "" || p.RoomID == 0 {
		return Message{}, ErrInvalidPayload
	}
	var createdAt time.Time
	if p.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.CreatedAt); err == nil {
			createdAt = ts
		}
	}
	return Message{
		ID:         p.ID,
		RoomID:     uint(p.RoomID),
		SenderID:   uint(p.SenderID),
		Content:    p.Content,
		Attachment: p.Attachment,
		VoiceNote:  p.VoiceNote,
		CreatedAt:  createdAt,
		IsDeleted:  p.IsDeleted,
	}, nil
}

// RoomPayload 是聊天室端點回傳的鬆散紀錄
type RoomPayload struct {
	ID           FlexID          `json:"id"`
	Name         string          `json:"name"`
	Details      string          `json:"details"`
	IsGroup      bool            `json:"is_group"`
	RoomType     string          `json:"room_type"`
	Participants []FlexID        `json:"participants"`
	LastMessage  *MessagePayload `json:"last_message"`
	UnreadCount  *int            `json:"unread_count"`
	IsDeleted    bool            `json:"is_deleted"`
}

// Room 將鬆散紀錄轉成聊天室實體，參與者留待上層透過名冊解析
// 未知的聊天室類型歸入 other，缺少未讀數一律視為 0
func (p RoomPayload) Room() (Room, error) {
	if p.ID == 0 {
		return Room{}, ErrInvalidPayload
	}
	roomType := RoomType(p.RoomType)
	switch roomType {
	case RoomTypePrivate, RoomTypeClass, RoomTypeParent, RoomTypeAnnouncement:
	default:
		roomType = RoomTypeOther
	}
	unread := 0
	if p.UnreadCount != nil && *p.UnreadCount > 0 {
		unread = *p.UnreadCount
	}
	room := Room{
		ID:          uint(p.ID),
		Name:        p.Name,
		Details:     p.Details,
		IsGroup:     p.IsGroup,
		RoomType:    roomType,
		UnreadCount: unread,
		IsDeleted:   p.IsDeleted,
	}
	if p.LastMessage != nil {
		if msg, err := p.LastMessage.Message(); err == nil {
			room.LastMessage = &msg
		}
	}
	return room, nil
}

// ParticipantIDs 回傳聊天室參與者的識別碼清單
func (p RoomPayload) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(p.Participants))
	for _, id := range p.Participants {
		if id != 0 {
			ids = append(ids, uint(id))
		}
	}
	return ids
}
