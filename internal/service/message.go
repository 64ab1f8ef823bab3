package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolchat/internal/models"
	"schoolchat/internal/repository"
)

// StreamState 是訊息串流的載入狀態
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamLoading
	StreamReady
	StreamErrored
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamLoading:
		return "loading"
	case StreamReady:
		return "ready"
	case StreamErrored:
		return "errored"
	}
	return "unknown"
}

var (
	ErrNoActiveRoom = errors.New("尚未選取聊天室")
	// ErrSendFailed 讓介面能區分「發送失敗」並提供重試，草稿由呼叫端保留
	ErrSendFailed = errors.New("傳送訊息失敗")
)

// MessageService 為目前選取的聊天室維護一份排序、去重後的訊息視圖
// 輪詢結果和即時推播都經由 MergeIncoming 匯入同一條整併路徑
type MessageService struct {
	messageRepo   repository.MessageRepository
	directory     *DirectoryService
	rooms         *RoomService
	currentUserID uint

	mu       sync.Mutex
	state    StreamState
	roomID   uint
	messages []models.Message
	lastErr  string
}

func NewMessageService(messageRepo repository.MessageRepository, directory *DirectoryService, rooms *RoomService, currentUserID uint) *MessageService {
	return &MessageService{
		messageRepo:   messageRepo,
		directory:     directory,
		rooms:         rooms,
		currentUserID: currentUserID,
	}
}

// SetRoom 切換串流指向的聊天室，傳入 0 代表沒有選取
// 切換後舊聊天室的任何在途抓取結果都會因為 roomID 比對不符而被丟棄
func (s *MessageService) SetRoom(roomID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID == roomID {
		return
	}
	s.roomID = roomID
	s.messages = nil
	s.lastErr = ""
	s.state = StreamIdle
}

// FetchMessages 抓取指定聊天室的訊息歷史並整份替換目前的視圖
// 上游端點回傳的是跨聊天室的清單，這裡負責過濾
// 回應抵達時若選取的聊天室已經不是 roomID，結果直接丟棄（過期回應防護）
func (s *MessageService) FetchMessages(roomID uint) error {
	s.mu.Lock()
	if s.roomID != roomID {
		s.mu.Unlock()
		return nil
	}
	s.state = StreamLoading
	s.mu.Unlock()

	payloads, err := s.messageRepo.FindAll()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID != roomID {
		// 抓取期間聊天室已切換，這份結果作廢
		return nil
	}

	if err != nil {
		s.lastErr = fmt.Sprintf("訊息載入失敗: %v", err)
		if len(s.messages) == 0 {
			s.state = StreamErrored
		} else {
			s.state = StreamReady // 保留上一份成功的視圖
		}
		return fmt.Errorf("訊息載入失敗: %w", err)
	}

	batch := make([]models.Message, 0, len(payloads))
	for _, payload := range payloads {
		msg, err := payload.Message()
		if err != nil || msg.RoomID != roomID {
			continue
		}
		batch = append(batch, msg)
	}

	s.messages = mergeMessages(nil, batch)
	s.state = StreamReady
	s.lastErr = ""
	s.syncRoomCachesLocked()
	return nil
}

// SendOption 設定訊息的選用內容
type SendOption func(*repository.CreateMessageInput)

// WithAttachment 在訊息上附加一個檔案連結
func WithAttachment(url string) SendOption {
	return func(in *repository.CreateMessageInput) { in.Attachment = url }
}

// WithVoiceNote 在訊息上附加一段語音連結
func WithVoiceNote(url string) SendOption {
	return func(in *repository.CreateMessageInput) { in.VoiceNote = url }
}

// Send 發送一則訊息到目前選取的聊天室，附件與語音以 SendOption 附加
// 內容先在本地驗證，空白或過長都不會發出網路請求
// 訊息先以客戶端產生的 id 樂觀寫入視圖，伺服器確認後以同一個 id 對齊，
// 失敗時移除樂觀寫入並回傳可辨識的 ErrSendFailed，呼叫端的草稿不受影響
func (s *MessageService) Send(content string, opts ...SendOption) (models.Message, error) {
	trimmed, err := models.ValidateContent(content)
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == 0 {
		return models.Message{}, ErrNoActiveRoom
	}

	input := repository.CreateMessageInput{
		ID:      uuid.NewString(),
		RoomID:  roomID,
		Content: trimmed,
	}
	for _, opt := range opts {
		opt(&input)
	}

	optimistic := models.Message{
		ID:         input.ID,
		RoomID:     roomID,
		SenderID:   s.currentUserID,
		Content:    trimmed,
		Attachment: input.Attachment,
		VoiceNote:  input.VoiceNote,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	if s.roomID == roomID {
		s.messages = mergeMessages(s.messages, []models.Message{optimistic})
	}
	s.mu.Unlock()

	created, err := s.messageRepo.Create(input)
	if err != nil {
		s.removeMessage(optimistic.ID)
		return models.Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	confirmed, convErr := created.Message()
	if convErr != nil {
		confirmed = optimistic
	}

	s.mu.Lock()
	if s.roomID == roomID {
		// 伺服器版本的欄位優先，同一個 id 只會留下一筆
		s.messages = mergeMessages(s.messages, []models.Message{confirmed})
		s.syncRoomCachesLocked()
	}
	s.mu.Unlock()

	return confirmed, nil
}

// MergeIncoming 把任意來源（輪詢、推播）的訊息批次併入目前的視圖
// 以訊息 id 去重，重複套用同一批次或交換批次順序都得到相同結果
func (s *MessageService) MergeIncoming(batch []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID == 0 {
		return
	}
	filtered := batch[:0:0]
	for _, msg := range batch {
		if msg.RoomID == s.roomID {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) == 0 {
		return
	}
	s.messages = mergeMessages(s.messages, filtered)
	if s.state == StreamIdle {
		s.state = StreamReady
	}
	s.syncRoomCachesLocked()
}

// UpdateMessage 先更新遠端內容，成功後以 id 鏡射到本地視圖
func (s *MessageService) UpdateMessage(id, content string) error {
	trimmed, err := models.ValidateContent(content)
	if err != nil {
		return err
	}
	if err := s.messageRepo.Update(id, trimmed); err != nil {
		return fmt.Errorf("更新訊息失敗: %w", err)
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Content = trimmed
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteMessage 是軟刪除：遠端成功後本地只翻轉 IsDeleted 標記
// 訊息仍留在本次會話的歷史序列中
func (s *MessageService) DeleteMessage(id string) error {
	if err := s.messageRepo.Delete(id); err != nil {
		return fmt.Errorf("刪除訊息失敗: %w", err)
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsDeleted = true
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// Messages 回傳目前視圖的副本，依 CreatedAt 遞增排序
func (s *MessageService) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// SenderOf 透過參與者目錄解析訊息寄件者，查不到時回傳佔位身分
func (s *MessageService) SenderOf(msg models.Message) models.Participant {
	return s.directory.Resolve(msg.SenderID)
}

func (s *MessageService) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MessageService) RoomID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *MessageService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *MessageService) removeMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// syncRoomCachesLocked 把最新訊息寫回聊天室的快取欄位
// 呼叫前必須持有 s.mu；正在看的聊天室未讀數歸零
func (s *MessageService) syncRoomCachesLocked() {
	if s.rooms == nil || len(s.messages) == 0 {
		return
	}
	last := s.messages[len(s.messages)-1]
	s.rooms.UpdateLastMessage(s.roomID, last)
	s.rooms.MarkRead(s.roomID)
}

// mergeMessages 以 id 為自然鍵把批次併入既有序列
// 同一個 id 後到的欄位獲勝；排序以 CreatedAt 為主、id 為次，
// 因此相同輸入不論順序或重複次數，結果都一致
func mergeMessages(existing, batch []models.Message) []models.Message {
	merged := make([]models.Message, 0, len(existing)+len(batch))
	index := make(map[string]int, len(existing)+len(batch))

	for _, msg := range existing {
		if i, ok := index[msg.ID]; ok {
			merged[i] = msg
			continue
		}
		index[msg.ID] = len(merged)
		merged = append(merged, msg)
	}
	for _, msg := range batch {
		if i, ok := index[msg.ID]; ok {
			merged[i] = msg
			continue
		}
		index[msg.ID] = len(merged)
		merged = append(merged, msg)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Before(merged[j])
	})
	return merged
}
