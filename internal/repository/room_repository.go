package repository

import (
	"fmt"
	"net/http"

	"schoolchat/internal/models"
	"schoolchat/internal/storage"
)

type RoomRepository interface {
	FindAll() ([]models.RoomPayload, error)
	Create(name string) (models.RoomPayload, error)
	Update(id uint, patch models.RoomPatch) error
	Delete(id uint) error
}

type roomRepository struct {
	api *storage.APIClient
}

func NewRoomRepository(api *storage.APIClient) RoomRepository {
	return &roomRepository{api: api}
}

// FindAll 抓取所有聊天室，沿著分頁信封的 next 連結走到底
func (r *roomRepository) FindAll() ([]models.RoomPayload, error) {
	var rooms []models.RoomPayload
	path := "/api/rooms"
	for {
		var page storage.Page[models.RoomPayload]
		if err := r.api.Do(http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		rooms = append(rooms, page.Results...)
		if page.Next == nil || *page.Next == "" {
			return rooms, nil
		}
		path = *page.Next
	}
}

func (r *roomRepository) Create(name string) (models.RoomPayload, error) {
	payload := map[string]any{"name": name}
	var created models.RoomPayload
	if err := r.api.Do(http.MethodPost, "/api/rooms", payload, &created); err != nil {
		return models.RoomPayload{}, err
	}
	return created, nil
}

// Update 只送出有變動的欄位，RoomPatch 的 nil 欄位不會出現在請求中
func (r *roomRepository) Update(id uint, patch models.RoomPatch) error {
	return r.api.Do(http.MethodPatch, fmt.Sprintf("/api/rooms/%d", id), patch, nil)
}

func (r *roomRepository) Delete(id uint) error {
	return r.api.Do(http.MethodDelete, fmt.Sprintf("/api/rooms/%d", id), nil, nil)
}
