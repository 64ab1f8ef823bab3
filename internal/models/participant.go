package models

// Role 定義參與者在系統中的身分
type Role string

const (
	RoleTeacher Role = "teacher" // 老師
	RoleStudent Role = "student" // 學生
	RoleParent  Role = "parent"  // 家長
	RoleAdmin   Role = "admin"   // 管理員
)

// Presence 定義參與者的在線狀態，僅供顯示參考，不做任何保證
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// Participant 代表聊天中的一位參與者
// 是名冊抓取當下的快照，除了 Presence 之外不做本地修改
type Participant struct {
	ID       uint     `json:"id"`
	Name     string   `json:"name"`
	Avatar   string   `json:"avatar,omitempty"`
	Role     Role     `json:"role"`
	Presence Presence `json:"presence"`
}

// PlaceholderName 是無法解析參與者時顯示的名稱
const PlaceholderName = "Unknown User"

// PlaceholderParticipant 回傳一個可以安全顯示的佔位參與者
// 查無此人永遠不是錯誤，介面上必須有東西可以渲染
func PlaceholderParticipant(id uint) Participant {
	return Participant{
		ID:       id,
		Name:     PlaceholderName,
		Role:     RoleStudent,
		Presence: PresenceOffline,
	}
}
