package service

import (
	"fmt"

	"schoolchat/internal/models"
)

// NotificationKind 區分成功與失敗兩種回饋
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification 是給介面顯示的回饋內容
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

// 以下都是純函式：把同步結果對應成使用者看得懂的回饋，
// 不重試、不保留狀態，也不做任何其他副作用

func NotifyRoomCreated(room models.Room) Notification {
	return Notification{Kind: NotifySuccess, Message: fmt.Sprintf("聊天室「%s」建立成功", room.Name)}
}

func NotifyRoomCreateFailed(err error) Notification {
	return Notification{Kind: NotifyError, Message: fmt.Sprintf("建立聊天室失敗: %v", err)}
}

func NotifyRoomDeleted() Notification {
	return Notification{Kind: NotifySuccess, Message: "聊天室已刪除"}
}

func NotifyRoomDeleteFailed(err error) Notification {
	return Notification{Kind: NotifyError, Message: fmt.Sprintf("刪除聊天室失敗: %v", err)}
}

func NotifyMessageSent() Notification {
	return Notification{Kind: NotifySuccess, Message: "訊息已送出"}
}

func NotifyMessageSendFailed(err error) Notification {
	return Notification{Kind: NotifyError, Message: fmt.Sprintf("傳送訊息失敗: %v", err)}
}
