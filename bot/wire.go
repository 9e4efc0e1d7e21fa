/*
wire.go - Chat platform wire types

PURPOSE:
  JSON shapes for the webhook payloads the chat platform delivers and the
  conversion into the transport-neutral conversation.Event. Only the fields
  the bot reads are declared; unknown fields are ignored by encoding/json.

SEE ALSO:
  - server.go: webhook endpoint that decodes these
  - sender.go: outbound half of the wire protocol
*/
package bot

import (
	"strings"

	"github.com/warp/creditbook/conversation"
)

// Update is one webhook delivery. At most one of Message and CallbackQuery
// is set.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound chat message: text, a photo, or both.
type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// User identifies the sender of a message or button press.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// PhotoSize is one resolution of an uploaded photo. The platform sends
// several sizes per photo; the largest carries the usable file reference.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// DisplayName returns the sender's human-readable name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// Event converts the update into a conversation.Event. The second return is
// false when the update carries nothing the engine can act on.
func (u *Update) Event() (conversation.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		if cb.Message == nil || cb.Data == "" {
			return conversation.Event{}, false
		}
		return conversation.Event{
			ChatID:   cb.Message.Chat.ID,
			FromName: cb.From.DisplayName(),
			Callback: cb.Data,
		}, true

	case u.Message != nil:
		msg := u.Message
		ev := conversation.Event{
			ChatID:   msg.Chat.ID,
			FromName: msg.From.DisplayName(),
			Text:     msg.Text,
			PhotoRef: largestPhoto(msg.Photo),
		}
		if ev.PhotoRef != "" && ev.Text == "" {
			ev.Text = msg.Caption
		}
		if ev.Text == "" && ev.PhotoRef == "" {
			return conversation.Event{}, false
		}
		return ev, true

	default:
		return conversation.Event{}, false
	}
}

// largestPhoto picks the file reference of the highest-resolution size.
func largestPhoto(sizes []PhotoSize) string {
	best := ""
	bestArea := -1
	for _, p := range sizes {
		area := p.Width * p.Height
		if area > bestArea {
			best = p.FileID
			bestArea = area
		}
	}
	return best
}
