package service

import (
	"fmt"
	"log"
	"sync"

	"schoolchat/internal/models"
	"schoolchat/internal/repository"
)

// DirectoryService 把學生、老師、家長三份名冊合併成一份可查詢的參與者目錄
// 其他元件都依賴它來把數字 id 轉成可顯示的身分
type DirectoryService struct {
	rosterRepo repository.RosterRepository

	mu    sync.RWMutex
	byID  map[uint]models.Participant
	order []uint
}

func NewDirectoryService(rosterRepo repository.RosterRepository) *DirectoryService {
	return &DirectoryService{
		rosterRepo: rosterRepo,
		byID:       make(map[uint]models.Participant),
	}
}

// Refresh 重新抓取三份名冊並重建目錄
// 某份名冊抓取失敗時該名冊貢獻零筆資料，聊天功能在降級狀態下照常運作
// 回傳的錯誤只作為提示字串，目錄本身仍然更新成功抓到的部分
func (s *DirectoryService) Refresh() error {
	type roster struct {
		name  string
		role  models.Role
		fetch func() ([]models.RosterPayload, error)
	}
	rosters := []roster{
		{"students", models.RoleStudent, s.rosterRepo.Students},
		{"teachers", models.RoleTeacher, s.rosterRepo.Teachers},
		{"parents", models.RoleParent, s.rosterRepo.Parents},
	}

	byID := make(map[uint]models.Participant)
	var order []uint
	var firstErr error

	for _, r := range rosters {
		records, err := r.fetch()
		if err != nil {
			log.Printf("roster fetch failed (%s): %v", r.name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("名冊載入不完整 (%s): %w", r.name, err)
			}
			continue
		}
		for _, record := range records {
			p, ok := record.Participant(r.role)
			if !ok {
				continue
			}
			if _, exists := byID[p.ID]; !exists {
				order = append(order, p.ID)
			}
			byID[p.ID] = p
		}
	}

	s.mu.Lock()
	s.byID = byID
	s.order = order
	s.mu.Unlock()

	return firstErr
}

// Resolve 把參與者 id 轉成顯示身分，查不到時退回佔位身分，永遠不會失敗
func (s *DirectoryService) Resolve(id uint) models.Participant {
	s.mu.RLock()
	p, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return models.PlaceholderParticipant(id)
	}
	return p
}

// All 回傳目錄中的所有參與者，順序為名冊別再依載入順序
func (s *DirectoryService) All() []models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]models.Participant, 0, len(s.order))
	for _, id := range s.order {
		participants = append(participants, s.byID[id])
	}
	return participants
}
