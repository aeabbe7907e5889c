package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/clonedigital/postpilot/internal/apperr"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client calls the Telegram Bot API.
type Client struct {
	token   string
	client  *resty.Client
	baseURL string
}

// NewClient creates a Telegram client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		client:  resty.New().SetTimeout(15 * time.Second),
		baseURL: defaultAPIBaseURL,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, body any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return apperr.Wrap(apperr.Upstream("Telegram request failed", err.Error()), err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil || !parsed.OK {
		detail := parsed.Description
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode())
		}
		return apperr.Upstream("Telegram API error", detail)
	}
	return nil
}

// SendMessage sends an HTML-formatted message, optionally with an
// inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		body["reply_markup"] = keyboard
	}
	return c.call(ctx, "sendMessage", body)
}

// AnswerCallbackQuery acknowledges a button press with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackQueryID,
		"text":              text,
	})
}
