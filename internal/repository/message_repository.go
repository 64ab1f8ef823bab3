package repository

import (
	"net/http"

	"schoolchat/internal/models"
	"schoolchat/internal/storage"
)

// CreateMessageInput 是建立訊息的請求內容
// ID 由客戶端產生，伺服器確認後回傳同一個 id，樂觀寫入靠它對齊
type CreateMessageInput struct {
	ID         string `json:"id,omitempty"`
	RoomID     uint   `json:"room_id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
	VoiceNote  string `json:"voice_note,omitempty"`
}

type MessageRepository interface {
	// FindAll 回傳呼叫者可見的所有訊息，可能橫跨多個聊天室
	FindAll() ([]models.MessagePayload, error)
	Create(input CreateMessageInput) (models.MessagePayload, error)
	Update(id string, content string) error
	Delete(id string) error
}

type messageRepository struct {
	api *storage.APIClient
}

func NewMessageRepository(api *storage.APIClient) MessageRepository {
	return &messageRepository{api: api}
}

func (r *messageRepository) FindAll() ([]models.MessagePayload, error) {
	var messages []models.MessagePayload
	path := "/api/messages"
	for {
		var page storage.Page[models.MessagePayload]
		if err := r.api.Do(http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page.Results...)
		if page.Next == nil || *page.Next == "" {
			return messages, nil
		}
		path = *page.Next
	}
}

func (r *messageRepository) Create(input CreateMessageInput) (models.MessagePayload, error) {
	var created models.MessagePayload
	if err := r.api.Do(http.MethodPost, "/api/messages", input, &created); err != nil {
		return models.MessagePayload{}, err
	}
	return created, nil
}

func (r *messageRepository) Update(id string, content string) error {
	payload := map[string]string{"content": content}
	return r.api.Do(http.MethodPatch, "/api/messages/"+id, payload, nil)
}

func (r *messageRepository) Delete(id string) error {
	return r.api.Do(http.MethodDelete, "/api/messages/"+id, nil, nil)
}
