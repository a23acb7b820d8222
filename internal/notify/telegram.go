// Package notify delivers one-time login codes to users over Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// CodeSender delivers a one-time login code to a destination chat.
type CodeSender interface {
	SendLoginCode(ctx context.Context, chatID, code string) error
	VerifyChatID(ctx context.Context, chatID string) error
}

// TelegramClient sends messages via the Telegram Bot API.
// See https://core.telegram.org/bots/api#sendmessage.
type TelegramClient struct {
	BotToken   string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTelegramClient returns a client for the given bot token. baseURL is
// optional and exists so tests can point the client at a local server.
func NewTelegramClient(botToken, baseURL string) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramClient{
		BotToken:   botToken,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendLoginCode sends the code to the given chat. Does not log the code.
func (c *TelegramClient) SendLoginCode(ctx context.Context, chatID, code string) error {
	text := fmt.Sprintf("Your login code: %s\n\nIt expires in 5 minutes. If you did not request this, change your password.", code)
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
}

// VerifyChatID checks that the bot can see the chat, which requires the
// user to have started a conversation with it. Used when enabling
// two-factor login so a typo'd chat id fails up front.
func (c *TelegramClient) VerifyChatID(ctx context.Context, chatID string) error {
	return c.call(ctx, "getChat", map[string]interface{}{
		"chat_id": chatID,
	})
}

func (c *TelegramClient) call(ctx context.Context, method string, body map[string]interface{}) error {
	if c.BotToken == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram: %s returned status=%d with unreadable body", method, resp.StatusCode)
	}

	if !parsed.OK {
		return fmt.Errorf("telegram: %s failed status=%d description=%q", method, resp.StatusCode, parsed.Description)
	}

	return nil
}
