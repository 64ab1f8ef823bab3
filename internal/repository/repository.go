package repository

import "schoolchat/internal/storage"

type Repositories struct {
	Room    RoomRepository
	Message MessageRepository
	Roster  RosterRepository
}

func NewRepositories(api *storage.APIClient) *Repositories {
	return &Repositories{
		Room:    NewRoomRepository(api),
		Message: NewMessageRepository(api),
		Roster:  NewRosterRepository(api),
	}
}
