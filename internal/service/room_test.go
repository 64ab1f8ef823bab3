package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolchat/internal/models"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newRoomService(roomRepo *stubRoomRepo) (*RoomService, *DirectoryService) {
	directory := NewDirectoryService(&stubRosterRepo{
		teachers: []models.RosterPayload{{ID: 7, Name: "陳老師"}},
		students: []models.RosterPayload{{ID: 8, Name: "林同學"}},
	})
	_ = directory.Refresh()
	return NewRoomService(roomRepo, directory), directory
}

func TestFetchRoomsAttachesParticipants(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "Class A", RoomType: "class", IsGroup: true, Participants: []models.FlexID{7, 8, 999}},
	}}
	svc, _ := newRoomService(repo)

	rooms, err := svc.FetchRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	participants := rooms[0].Participants
	require.Len(t, participants, 3)
	assert.Equal(t, "陳老師", participants[0].Name)
	assert.Equal(t, "林同學", participants[1].Name)
	// 名冊查不到的參與者退回佔位身分，不會是錯誤
	assert.Equal(t, models.PlaceholderName, participants[2].Name)
}

func TestFetchRoomsDefensiveUnread(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "A", RoomType: "class"},
		{ID: 2, Name: "B", RoomType: "class", UnreadCount: intPtr(3)},
	}}
	svc, _ := newRoomService(repo)

	rooms, err := svc.FetchRooms()
	require.NoError(t, err)
	assert.Equal(t, 0, rooms[0].UnreadCount)
	assert.Equal(t, 3, rooms[1].UnreadCount)
}

func TestFetchRoomsIdempotent(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "A", RoomType: "class"}}}
	svc, _ := newRoomService(repo)

	for i := 0; i < 3; i++ {
		rooms, err := svc.FetchRooms()
		require.NoError(t, err)
		assert.Len(t, rooms, 1)
	}
}

func TestFetchRoomsFailureKeepsLastGood(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "A", RoomType: "class"}}}
	svc, _ := newRoomService(repo)

	_, err := svc.FetchRooms()
	require.NoError(t, err)

	repo.mu.Lock()
	repo.listErr = errors.New("timeout")
	repo.mu.Unlock()

	_, err = svc.FetchRooms()
	require.Error(t, err)
	// 失敗不清空上一次成功的清單，錯誤以可讀字串保留
	assert.Len(t, svc.Rooms(), 1)
	assert.NotEmpty(t, svc.LastError())

	repo.mu.Lock()
	repo.listErr = nil
	repo.mu.Unlock()

	_, err = svc.FetchRooms()
	require.NoError(t, err)
	assert.Empty(t, svc.LastError())
}

func TestCreateRoomOptimisticInsertReconciled(t *testing.T) {
	repo := &stubRoomRepo{}
	svc, _ := newRoomService(repo)

	room, err := svc.CreateRoom("Study Group")
	require.NoError(t, err)
	assert.Len(t, svc.Rooms(), 1, "建立成功後立即出現在本地清單")

	// 權威抓取之後同一個 id 仍然只有一筆
	rooms, err := svc.FetchRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestCreateRoomFailureNoPhantom(t *testing.T) {
	repo := &stubRoomRepo{createErr: errors.New("500")}
	svc, _ := newRoomService(repo)

	_, err := svc.CreateRoom("Study Group")
	require.Error(t, err)
	assert.Empty(t, svc.Rooms(), "失敗的建立不留下幽靈聊天室")

	rooms, fetchErr := svc.FetchRooms()
	require.NoError(t, fetchErr)
	assert.Empty(t, rooms)

	// 對應的使用者回饋
	n := NotifyRoomCreateFailed(err)
	assert.Equal(t, NotifyError, n.Kind)
	assert.NotEmpty(t, n.Message)
}

func TestCreateRoomEmptyName(t *testing.T) {
	svc, _ := newRoomService(&stubRoomRepo{})
	_, err := svc.CreateRoom("")
	assert.ErrorIs(t, err, ErrEmptyRoomName)
}

func TestUpdateRoomPartialMirror(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "Old", Details: "keep me", RoomType: "class"},
	}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	rooms := svc.Rooms()
	svc.SetActiveRoom(&rooms[0])

	require.NoError(t, svc.UpdateRoom(1, models.RoomPatch{Name: strPtr("New")}))

	updated := svc.Rooms()[0]
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "keep me", updated.Details, "patch 未包含的欄位不受影響")

	active := svc.ActiveRoom()
	require.NotNil(t, active)
	assert.Equal(t, "New", active.Name, "選取中的投影也要鏡射更新")
}

func TestUpdateRoomSoftDeleteFlag(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "A", RoomType: "class"}}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRoom(1, models.RoomPatch{IsDeleted: boolPtr(true)}))
	assert.True(t, svc.Rooms()[0].IsDeleted)
}

func TestUpdateRoomRemoteFailureNoLocalChange(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "Old", RoomType: "class"}}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	repo.mu.Lock()
	repo.updateErr = errors.New("500")
	repo.mu.Unlock()

	require.Error(t, svc.UpdateRoom(1, models.RoomPatch{Name: strPtr("New")}))
	assert.Equal(t, "Old", svc.Rooms()[0].Name, "遠端失敗不動本地狀態")
}

func TestDeleteRoomClearsActiveSelection(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "A", RoomType: "class"},
		{ID: 2, Name: "B", RoomType: "class"},
	}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	rooms := svc.Rooms()
	svc.SetActiveRoom(&rooms[0])

	require.NoError(t, svc.DeleteRoom(1))
	assert.Len(t, svc.Rooms(), 1)
	assert.Nil(t, svc.ActiveRoom(), "刪除選取中的聊天室要清空選取狀態")
}

func TestSetActiveRoomNil(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "A", RoomType: "class"}}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	rooms := svc.Rooms()
	svc.SetActiveRoom(&rooms[0])
	require.NotNil(t, svc.ActiveRoom())

	// nil 是合法的轉換：「沒有選取任何聊天室」
	svc.SetActiveRoom(nil)
	assert.Nil(t, svc.ActiveRoom())
}

func TestUnreadBookkeeping(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "A", RoomType: "class"},
		{ID: 2, Name: "B", RoomType: "class"},
	}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	rooms := svc.Rooms()
	svc.SetActiveRoom(&rooms[0])

	svc.BumpUnread(2, 2)
	svc.BumpUnread(1, 1) // 選取中的聊天室不累積未讀

	assert.Equal(t, 2, svc.Rooms()[1].UnreadCount)
	assert.Equal(t, 0, svc.Rooms()[0].UnreadCount)

	svc.MarkRead(2)
	assert.Equal(t, 0, svc.Rooms()[1].UnreadCount)
}

func TestFetchRoomsKeepsDerivedUnread(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{
		{ID: 1, Name: "A", RoomType: "class"},
		{ID: 2, Name: "B", RoomType: "class"},
	}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	svc.BumpUnread(2, 1)

	// 權威刷新不清掉本地推導的未讀數
	_, err = svc.FetchRooms()
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Rooms()[1].UnreadCount)

	// 只有 MarkRead（或選取）讓它歸零，之後的刷新維持歸零
	svc.MarkRead(2)
	_, err = svc.FetchRooms()
	require.NoError(t, err)
	assert.Equal(t, 0, svc.Rooms()[1].UnreadCount)
}

func TestUpdateLastMessageLastWriterWins(t *testing.T) {
	repo := &stubRoomRepo{rooms: []models.RoomPayload{{ID: 1, Name: "A", RoomType: "class"}}}
	svc, _ := newRoomService(repo)
	_, err := svc.FetchRooms()
	require.NoError(t, err)

	newer := msgAt("m2", 1, "2024-09-01T10:01:00Z")
	older := msgAt("m1", 1, "2024-09-01T10:00:00Z")

	svc.UpdateLastMessage(1, newer)
	svc.UpdateLastMessage(1, older) // 較舊的訊息不覆寫快取

	last := svc.Rooms()[0].LastMessage
	require.NotNil(t, last)
	assert.Equal(t, "m2", last.ID)
}
