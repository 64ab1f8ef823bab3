// Package fakeapi 提供一個記憶體內的學校聊天後端，供測試作為遠端協作者使用
// 介面形狀（分頁信封、欄位名稱）與正式後端一致
package fakeapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"schoolchat/internal/utils"
)

// PageSize 是列表端點每頁的筆數，測試可以調小來覆蓋分頁行為
const DefaultPageSize = 50

type user struct {
	ID       uint
	Username string
	Password string // bcrypt hash
	Role     string
}

type rosterEntry struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type roomRecord struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Details      string `json:"details,omitempty"`
	IsGroup      bool   `json:"is_group"`
	RoomType     string `json:"room_type"`
	Participants []uint `json:"participants,omitempty"`
	IsDeleted    bool   `json:"is_deleted"`
}

type messageRecord struct {
	ID         string    `json:"id"`
	RoomID     uint      `json:"room_id"`
	SenderID   uint      `json:"sender_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	VoiceNote  string    `json:"voice_note,omitempty"`
	CreatedAt  time.Time `json:"-"`
	IsDeleted  bool      `json:"is_deleted"`
}

// 輸出時時間戳固定用 RFC3339Nano 字串
func (m messageRecord) render() gin.H {
	return gin.H{
		"id":         m.ID,
		"room_id":    m.RoomID,
		"sender_id":  m.SenderID,
		"content":    m.Content,
		"attachment": m.Attachment,
		"voice_note": m.VoiceNote,
		"created_at": m.CreatedAt.Format(time.RFC3339Nano),
		"is_deleted": m.IsDeleted,
	}
}

// Server 是測試用的假後端
// Fail* 開關讓測試模擬對應端點的失敗；Delay* 讓測試製造慢回應
type Server struct {
	PageSize int

	mu         sync.Mutex
	users      map[string]*user
	nextUserID uint
	students   []rosterEntry
	teachers   []rosterEntry
	parents    []rosterEntry
	rooms      []*roomRecord
	nextRoomID uint
	messages   []*messageRecord

	FailRoomList    bool
	FailRoomCreate  bool
	FailMessageList bool
	FailMessageSend bool
	FailStudents    bool
	FailTeachers    bool
	FailParents     bool

	// MessageListDelay 讓訊息列表端點在回應前等待，用來測過期回應防護
	MessageListDelay time.Duration

	hub *hub
}

func NewServer() *Server {
	return &Server{
		PageSize:   DefaultPageSize,
		users:      make(map[string]*user),
		nextUserID: 1,
		nextRoomID: 1,
		hub:        newHub(),
	}
}

// Router 組出與正式後端相同路由結構的 gin 引擎
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	authorized := api.Group("/")
	authorized.Use(s.authMiddleware())
	{
		authorized.GET("/rooms", s.listRooms)
		authorized.POST("/rooms", s.createRoom)
		authorized.PATCH("/rooms/:id", s.updateRoom)
		authorized.DELETE("/rooms/:id", s.deleteRoom)

		authorized.GET("/messages", s.listMessages)
		authorized.POST("/messages", s.createMessage)
		authorized.PATCH("/messages/:id", s.updateMessage)
		authorized.DELETE("/messages/:id", s.deleteMessage)

		authorized.GET("/students", s.roster(&s.students, &s.FailStudents))
		authorized.GET("/teachers", s.roster(&s.teachers, &s.FailTeachers))
		authorized.GET("/parents", s.roster(&s.parents, &s.FailParents))
	}

	// websocket 走 query string 帶 token
	api.GET("/ws", s.handleWebSocket)

	return r
}

// --- 種子資料 ---

// SeedUser 建立一個可登入的帳號並回傳其 id
func (s *Server) SeedUser(username, password, role string) uint {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextUserID
	s.nextUserID++
	s.users[username] = &user{ID: id, Username: username, Password: string(hashed), Role: role}
	return id
}

func (s *Server) SeedStudent(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = append(s.students, rosterEntry{ID: id, Name: name})
}

func (s *Server) SeedTeacher(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teachers = append(s.teachers, rosterEntry{ID: id, Name: name})
}

func (s *Server) SeedParent(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents = append(s.parents, rosterEntry{ID: id, Name: name})
}

// SeedRoom 建立一間聊天室並回傳其 id
func (s *Server) SeedRoom(name, roomType string, isGroup bool, participants ...uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextRoomID
	s.nextRoomID++
	s.rooms = append(s.rooms, &roomRecord{
		ID: id, Name: name, RoomType: roomType, IsGroup: isGroup, Participants: participants,
	})
	return id
}

// SeedMessage 直接塞入一則訊息，模擬其他使用者先前的發言
func (s *Server) SeedMessage(id string, roomID, senderID uint, content string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, &messageRecord{
		ID: id, RoomID: roomID, SenderID: senderID, Content: content, CreatedAt: createdAt,
	})
}

// PushMessage 塞入訊息並透過 websocket 推播給所有連線中的客戶端
func (s *Server) PushMessage(id string, roomID, senderID uint, content string, createdAt time.Time) {
	record := &messageRecord{
		ID: id, RoomID: roomID, SenderID: senderID, Content: content, CreatedAt: createdAt,
	}
	s.mu.Lock()
	s.messages = append(s.messages, record)
	s.mu.Unlock()

	s.hub.broadcast(gin.H{"type": "message", "message": record.render()})
}

// --- 認證 ---

func (s *Server) register(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	_, exists := s.users[input.Username]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "使用者已存在"})
		return
	}

	s.SeedUser(input.Username, input.Password, input.Role)
	c.JSON(http.StatusCreated, gin.H{"message": "使用者註冊成功"})
}

func (s *Server) login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	u, ok := s.users[input.Username]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := utils.GenerateToken(u.ID, u.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "獲取token失敗"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			c.Abort()
			return
		}
		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}

// --- 聊天室 ---

func (s *Server) listRooms(c *gin.Context) {
	s.mu.Lock()
	fail := s.FailRoomList
	records := make([]gin.H, 0, len(s.rooms))
	for _, room := range s.rooms {
		records = append(records, s.renderRoomLocked(room))
	}
	s.mu.Unlock()

	if fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "資料庫連線失敗"})
		return
	}
	s.paginate(c, "/api/rooms", records)
}

func (s *Server) renderRoomLocked(room *roomRecord) gin.H {
	out := gin.H{
		"id":           room.ID,
		"name":         room.Name,
		"details":      room.Details,
		"is_group":     room.IsGroup,
		"room_type":    room.RoomType,
		"participants": room.Participants,
		"is_deleted":   room.IsDeleted,
	}
	// 附上最後一則訊息與未讀數快取，與正式後端的去正規化欄位一致
	var last *messageRecord
	for _, msg := range s.messages {
		if msg.RoomID == room.ID && (last == nil || msg.CreatedAt.After(last.CreatedAt)) {
			last = msg
		}
	}
	if last != nil {
		out["last_message"] = last.render()
	}
	return out
}

func (s *Server) createRoom(c *gin.Context) {
	if s.FailRoomCreate {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建房間失敗"})
		return
	}
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	id := s.nextRoomID
	s.nextRoomID++
	room := &roomRecord{ID: id, Name: input.Name, RoomType: "other"}
	s.rooms = append(s.rooms, room)
	rendered := s.renderRoomLocked(room)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, rendered)
}

func (s *Server) updateRoom(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不存在的房間ID"})
		return
	}
	var input struct {
		Name      *string `json:"name"`
		Details   *string `json:"details"`
		IsGroup   *bool   `json:"is_group"`
		IsDeleted *bool   `json:"is_deleted"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.ID == uint(id) {
			if input.Name != nil {
				room.Name = *input.Name
			}
			if input.Details != nil {
				room.Details = *input.Details
			}
			if input.IsGroup != nil {
				room.IsGroup = *input.IsGroup
			}
			if input.IsDeleted != nil {
				room.IsDeleted = *input.IsDeleted
			}
			c.JSON(http.StatusOK, gin.H{"message": "更新成功"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
}

func (s *Server) deleteRoom(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不存在的房間ID"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, room := range s.rooms {
		if room.ID == uint(id) {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
}

// --- 訊息 ---

func (s *Server) listMessages(c *gin.Context) {
	if s.MessageListDelay > 0 {
		time.Sleep(s.MessageListDelay)
	}
	if s.FailMessageList {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法搜尋訊息"})
		return
	}

	s.mu.Lock()
	sorted := make([]*messageRecord, len(s.messages))
	copy(sorted, s.messages)
	s.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	records := make([]gin.H, 0, len(sorted))
	for _, msg := range sorted {
		records = append(records, msg.render())
	}
	s.paginate(c, "/api/messages", records)
}

func (s *Server) createMessage(c *gin.Context) {
	if s.FailMessageSend {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "傳送訊息失敗"})
		return
	}
	var input struct {
		ID         string `json:"id"`
		RoomID     uint   `json:"room_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
		Attachment string `json:"attachment"`
		VoiceNote  string `json:"voice_note"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")
	record := &messageRecord{
		ID:         input.ID,
		RoomID:     input.RoomID,
		SenderID:   userID.(uint),
		Content:    input.Content,
		Attachment: input.Attachment,
		VoiceNote:  input.VoiceNote,
		CreatedAt:  time.Now().UTC(),
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("srv-%d", time.Now().UnixNano())
	}

	s.mu.Lock()
	s.messages = append(s.messages, record)
	rendered := record.render()
	s.mu.Unlock()

	// 推播給所有 websocket 客戶端，包含發送者自己
	s.hub.broadcast(gin.H{"type": "message", "message": rendered})

	c.JSON(http.StatusCreated, rendered)
}

func (s *Server) updateMessage(c *gin.Context) {
	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == c.Param("id") {
			msg.Content = input.Content
			c.JSON(http.StatusOK, msg.render())
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "訊息不存在"})
}

func (s *Server) deleteMessage(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == c.Param("id") {
			msg.IsDeleted = true
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "訊息不存在"})
}

// --- 名冊 ---

func (s *Server) roster(entries *[]rosterEntry, fail *bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if *fail {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "名冊服務暫時無法使用"})
			return
		}
		s.mu.Lock()
		out := make([]rosterEntry, len(*entries))
		copy(out, *entries)
		s.mu.Unlock()
		c.JSON(http.StatusOK, out)
	}
}

// --- 分頁 ---

// paginate 以 {count, next, previous, results} 信封回應列表
func (s *Server) paginate(c *gin.Context, basePath string, records []gin.H) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := 1
	if raw := c.Query("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	start := (page - 1) * pageSize
	if start > len(records) {
		start = len(records)
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}

	var next, previous *string
	if end < len(records) {
		url := fmt.Sprintf("%s?page=%d", basePath, page+1)
		next = &url
	}
	if page > 1 {
		url := fmt.Sprintf("%s?page=%d", basePath, page-1)
		previous = &url
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(records),
		"next":     next,
		"previous": previous,
		"results":  records[start:end],
	})
}
