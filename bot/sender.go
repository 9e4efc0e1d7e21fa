/*
sender.go - Outbound message delivery

PURPOSE:
  Sender is the narrow interface the dispatcher uses to push engine replies
  back to the chat. APISender implements it against the chat platform's HTTP
  API (sendMessage / sendPhoto). Tests substitute a recording fake.

KEYBOARDS:
  conversation.Keyboard is rendered into the platform's reply_markup: inline
  keyboards for callback buttons, reply keyboards for menu buttons, and a
  remove marker to clear the current reply keyboard.
*/
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/warp/creditbook/conversation"
)

// Sender delivers one engine reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply conversation.Reply) error
}

// APISender sends replies via the chat platform's HTTP API.
type APISender struct {
	baseURL string // e.g. https://api.telegram.org/bot<token>
	client  *http.Client
}

// NewAPISender creates a sender posting to baseURL. The bot token is part of
// the base URL, so it never appears in logs.
func NewAPISender(baseURL string) *APISender {
	return &APISender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *APISender) Send(ctx context.Context, chatID int64, reply conversation.Reply) error {
	if reply.PhotoRef != "" {
		return s.call(ctx, "sendPhoto", photoPayload{
			ChatID:      chatID,
			Photo:       reply.PhotoRef,
			Caption:     reply.Text,
			ReplyMarkup: renderKeyboard(reply.Keyboard),
		})
	}
	return s.call(ctx, "sendMessage", messagePayload{
		ChatID:      chatID,
		Text:        reply.Text,
		ReplyMarkup: renderKeyboard(reply.Keyboard),
	})
}

func (s *APISender) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The platform explains rejections in the body; keep a short excerpt.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, excerpt)
	}
	return nil
}

// =============================================================================
// WIRE PAYLOADS
// =============================================================================

type messagePayload struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type photoPayload struct {
	ChatID      int64  `json:"chat_id"`
	Photo       string `json:"photo"`
	Caption     string `json:"caption,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type replyButton struct {
	Text string `json:"text"`
}

type replyMarkup struct {
	Keyboard       [][]replyButton `json:"keyboard"`
	ResizeKeyboard bool            `json:"resize_keyboard"`
}

type removeMarkup struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// renderKeyboard converts the engine's abstract keyboard into reply_markup.
// Returns nil for a nil keyboard so the field is omitted entirely.
func renderKeyboard(kb *conversation.Keyboard) any {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return removeMarkup{RemoveKeyboard: true}
	case kb.Inline:
		rows := make([][]inlineButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]inlineButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, inlineButton{Text: b.Label, CallbackData: b.Data})
			}
			rows = append(rows, buttons)
		}
		return inlineMarkup{InlineKeyboard: rows}
	default:
		rows := make([][]replyButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]replyButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, replyButton{Text: b.Label})
			}
			rows = append(rows, buttons)
		}
		return replyMarkup{Keyboard: rows, ResizeKeyboard: true}
	}
}
