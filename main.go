package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"schoolchat/internal/config"
	"schoolchat/internal/repository"
	"schoolchat/internal/service"
	"schoolchat/internal/storage"
	"schoolchat/internal/utils"
)

func main() {
	// 載入應用程式配置
	// 從配置文件中讀取後端位址、登入帳號與輪詢間隔等設置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化遠端 API 連線
	api := storage.NewAPIClient(cfg.Server.BaseURL, cfg.Server.Timeout)

	// 登入取得憑證，所有聊天相關的請求都必須先有憑證
	if err := api.Login(cfg.Auth.Username, cfg.Auth.Password); err != nil {
		log.Fatalf("Failed to login: %v", err)
	}

	// 從 token 取出目前使用者的 id，明確傳入引擎
	claims, err := utils.ParseToken(api.Token())
	if err != nil {
		log.Fatalf("Failed to parse token: %v", err)
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(api)
	services := service.NewServices(repos, claims.UserID)

	// 先載入參與者目錄，名冊缺漏只提示，聊天照常進行
	if err := services.Directory.Refresh(); err != nil {
		log.Printf("directory loaded with warnings: %v", err)
	}

	// 抓取聊天室清單並選取第一間
	rooms, err := services.Room.FetchRooms()
	if err != nil {
		log.Fatalf("Failed to fetch rooms: %v", err)
	}
	if len(rooms) == 0 {
		log.Fatal("No rooms available")
	}
	if err := services.SelectRoom(&rooms[0]); err != nil {
		log.Printf("initial message fetch failed: %v", err)
	}
	fmt.Printf("== %s ==\n", rooms[0].Name)
	for _, msg := range services.Message.Messages() {
		sender := services.Message.SenderOf(msg)
		fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), sender.Name, msg.Content)
	}

	// 啟動即時推播通道，推播與輪詢共用同一條整併路徑
	if cfg.Realtime.Enabled {
		if err := services.Realtime.Connect(cfg.Server.BaseURL, api.Token()); err != nil {
			log.Printf("realtime channel unavailable, falling back to polling: %v", err)
		} else {
			defer services.Realtime.Close()
		}
	}

	// 背景輪詢直到收到中斷訊號
	stop := make(chan struct{})
	go services.Poll(cfg.Poll.Interval, stop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	close(stop)
}
