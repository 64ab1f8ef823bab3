package repository

import (
	"net/http"

	"schoolchat/internal/models"
	"schoolchat/internal/storage"
)

// RosterRepository 對應學生、老師、家長三份獨立的名冊端點
type RosterRepository interface {
	Students() ([]models.RosterPayload, error)
	Teachers() ([]models.RosterPayload, error)
	Parents() ([]models.RosterPayload, error)
}

type rosterRepository struct {
	api *storage.APIClient
}

func NewRosterRepository(api *storage.APIClient) RosterRepository {
	return &rosterRepository{api: api}
}

func (r *rosterRepository) Students() ([]models.RosterPayload, error) {
	return r.fetch("/api/students")
}

func (r *rosterRepository) Teachers() ([]models.RosterPayload, error) {
	return r.fetch("/api/teachers")
}

func (r *rosterRepository) Parents() ([]models.RosterPayload, error) {
	return r.fetch("/api/parents")
}

func (r *rosterRepository) fetch(path string) ([]models.RosterPayload, error) {
	var records []models.RosterPayload
	if err := r.api.Do(http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
