package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"schoolchat/internal/utils"
)

var (
	// ErrNoCredentials 表示尚未取得授權憑證，所有請求在登入前都不該發出
	ErrNoCredentials = errors.New("尚未登入，無法存取伺服器")
	// ErrCredentialExpired 表示本地檢查發現 token 已過期，不必浪費一次請求
	ErrCredentialExpired = errors.New("登入憑證已過期，請重新登入")
)

// APIClient 包裝遠端後端的連線資訊，是所有 repository 的資料來源
// 對應伺服器的 REST 介面，所有回應皆為 JSON
type APIClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPIClient 建立一個指向指定後端的連線
// timeout 是單一請求的上限，逾時視為一般的抓取失敗
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken 設定後續請求使用的 bearer token
func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token 回傳目前持有的憑證，尚未登入時為空字串
func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL 回傳後端位址，供 websocket 連線組合 ws:// 位址使用
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Login 以帳號密碼向後端換取 token 並保存，成功後其他請求才能進行
func (c *APIClient) Login(username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("登入失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("登入失敗: %s", readErrorMessage(resp.Body, resp.StatusCode))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("登入失敗: %w", err)
	}
	if out.Token == "" {
		return errors.New("登入失敗: 伺服器未回傳 token")
	}

	c.SetToken(out.Token)
	return nil
}

// Do 發送一個帶授權的 JSON 請求，並把回應解碼到 out（可為 nil）
// 沒有憑證或憑證已過期時直接拒絕，不發出請求
func (c *APIClient) Do(method, path string, body, out any) error {
	token := c.Token()
	if token == "" {
		return ErrNoCredentials
	}
	if utils.TokenExpired(token) {
		return ErrCredentialExpired
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("連線後端失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("伺服器回應錯誤: %s", readErrorMessage(resp.Body, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析伺服器回應失敗: %w", err)
	}
	return nil
}

// Page 是後端列表端點共用的分頁信封
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// readErrorMessage 嘗試取出後端錯誤回應中的 error 欄位，取不到就用狀態碼
func readErrorMessage(r io.Reader, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(status)
}
