package service

import (
	"fmt"
	"sync"

	"schoolchat/internal/models"
	"schoolchat/internal/repository"
)

// 這裡的 stub 直接實作 repository 介面，讓測試不經網路就能控制
// 每一次呼叫的結果與時序

type stubRoomRepo struct {
	mu        sync.Mutex
	rooms     []models.RoomPayload
	nextID    uint
	listErr   error
	createErr error
	updateErr error
	deleteErr error
	patches   []models.RoomPatch
}

func (s *stubRoomRepo) FindAll() ([]models.RoomPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.RoomPayload, len(s.rooms))
	copy(out, s.rooms)
	return out, nil
}

func (s *stubRoomRepo) Create(name string) (models.RoomPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.RoomPayload{}, s.createErr
	}
	if s.nextID == 0 {
		s.nextID = uint(len(s.rooms)) + 1
	}
	payload := models.RoomPayload{ID: models.FlexID(s.nextID), Name: name, RoomType: "other"}
	s.nextID++
	s.rooms = append(s.rooms, payload)
	return payload, nil
}

func (s *stubRoomRepo) Update(id uint, patch models.RoomPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.patches = append(s.patches, patch)
	return nil
}

func (s *stubRoomRepo) Delete(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i := range s.rooms {
		if uint(s.rooms[i].ID) == id {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			break
		}
	}
	return nil
}

type stubMessageRepo struct {
	mu        sync.Mutex
	payloads  []models.MessagePayload
	listErr   error
	createErr error
	calls     int
	// gate 不為 nil 時，FindAll 會先等它關閉才回應，用來模擬慢請求
	gate chan struct{}
}

func (s *stubMessageRepo) FindAll() ([]models.MessagePayload, error) {
	s.mu.Lock()
	gate := s.gate
	s.calls++
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.MessagePayload, len(s.payloads))
	copy(out, s.payloads)
	return out, nil
}

func (s *stubMessageRepo) Create(input repository.CreateMessageInput) (models.MessagePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.MessagePayload{}, s.createErr
	}
	payload := models.MessagePayload{
		ID:         input.ID,
		RoomID:     models.FlexID(input.RoomID),
		SenderID:   99, // 伺服器以憑證認定的寄件者
		Content:    input.Content,
		Attachment: input.Attachment,
		VoiceNote:  input.VoiceNote,
		CreatedAt:  "2024-09-01T10:00:00Z",
	}
	s.payloads = append(s.payloads, payload)
	return payload, nil
}

func (s *stubMessageRepo) Update(id string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payloads {
		if s.payloads[i].ID == id {
			s.payloads[i].Content = content
			return nil
		}
	}
	return fmt.Errorf("not found: %s", id)
}

func (s *stubMessageRepo) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payloads {
		if s.payloads[i].ID == id {
			s.payloads[i].IsDeleted = true
			return nil
		}
	}
	return fmt.Errorf("not found: %s", id)
}

func (s *stubMessageRepo) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubRosterRepo struct {
	students, teachers, parents []models.RosterPayload
	studentsErr, teachersErr    error
	parentsErr                  error
}

func (s *stubRosterRepo) Students() ([]models.RosterPayload, error) {
	return s.students, s.studentsErr
}

func (s *stubRosterRepo) Teachers() ([]models.RosterPayload, error) {
	return s.teachers, s.teachersErr
}

func (s *stubRosterRepo) Parents() ([]models.RosterPayload, error) {
	return s.parents, s.parentsErr
}
