package models

import (
	"errors"
	"strings"
	"time"
)

// MaxContentLength 是單則訊息內容的上限字元數
const MaxContentLength = 1000

var (
	ErrEmptyContent   = errors.New("訊息內容不可為空")
	ErrContentTooLong = errors.New("訊息內容超過長度上限")
)

// Message 代表聊天室中的一則訊息
// 刪除採用軟刪除，IsDeleted 為 true 時仍保留在本次會話的歷史中
type Message struct {
	ID         string    `json:"id"`
	RoomID     uint      `json:"room_id"`
	SenderID   uint      `json:"sender_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	VoiceNote  string    `json:"voice_note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsDeleted  bool      `json:"is_deleted"`
}

// ValidateContent 在發送前檢查訊息內容，拒絕空白與過長的內容
// 驗證失敗時不應該發出任何網路請求
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	if len([]rune(trimmed)) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return trimmed, nil
}

// Before 定義訊息的顯示順序：先比 CreatedAt，相同時間再比 ID
// 固定的次要排序讓合併結果不受批次到達順序影響
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
