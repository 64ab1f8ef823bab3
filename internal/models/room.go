package models

// RoomType 定義聊天室的類型
type RoomType string

const (
	RoomTypePrivate      RoomType = "private"      // 一對一私訊
	RoomTypeClass        RoomType = "class"        // 班級群組
	RoomTypeParent       RoomType = "parent"       // 親師溝通
	RoomTypeAnnouncement RoomType = "announcement" // 公告頻道
	RoomTypeOther        RoomType = "other"
)

// Room 代表一個聊天室
// 客戶端只持有伺服器狀態的讀取投影，加上尚未同步的本地修改
// LastMessage 和 UnreadCount 是快取欄位，每次抓取訊息後重新計算，不具權威性
type Room struct {
	ID           uint          `json:"id"`
	Name         string        `json:"name"`
	Details      string        `json:"details,omitempty"`
	IsGroup      bool          `json:"is_group"`
	RoomType     RoomType      `json:"room_type"`
	Participants []Participant `json:"participants,omitempty"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
	IsDeleted    bool          `json:"is_deleted"`
}

// RoomPatch 描述對聊天室的部分更新，nil 欄位代表不變動
type RoomPatch struct {
	Name      *string `json:"name,omitempty"`
	Details   *string `json:"details,omitempty"`
	IsGroup   *bool   `json:"is_group,omitempty"`
	IsDeleted *bool   `json:"is_deleted,omitempty"`
}

// Apply 將非 nil 的欄位套用到聊天室上，未包含的欄位保持原樣
func (p RoomPatch) Apply(r *Room) {
	if r == nil {
		return
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Details != nil {
		r.Details = *p.Details
	}
	if p.IsGroup != nil {
		r.IsGroup = *p.IsGroup
	}
	if p.IsDeleted != nil {
		r.IsDeleted = *p.IsDeleted
	}
}
