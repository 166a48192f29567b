package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend-assigned identifier. The backend sends either a JSON string
// or a JSON number; the textual form is kept and passed back verbatim.
type ID string

// SessionID identifies one conversation thread.
type SessionID = ID

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("session id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits integers as JSON numbers so the backend sees the same
// type it issued.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ChatSettings is returned by GET /api/chatbot/settings.
type ChatSettings struct {
	AllowChatHistory bool `json:"allow_chat_history"`
}

// SessionSummary is one row of a conversation listing.
type SessionSummary struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
}

// Sender values used by Message.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is one turn of a conversation. History endpoints disagree on field
// names (sender/author, created_at/timestamp); UnmarshalJSON accepts both.
type Message struct {
	ID              ID     `json:"id,omitempty"`
	Sender          string `json:"sender"`
	Text            string `json:"message"`
	CreatedAt       string `json:"created_at,omitempty"`
	SessionComplete bool   `json:"is_session_complete,omitempty"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID              ID     `json:"id"`
		Sender          string `json:"sender"`
		Author          string `json:"author"`
		Message         string `json:"message"`
		Reply           string `json:"reply"`
		CreatedAt       string `json:"created_at"`
		Timestamp       string `json:"timestamp"`
		SessionComplete bool   `json:"is_session_complete"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*m = Message{
		ID:              raw.ID,
		Sender:          firstNonEmpty(raw.Sender, raw.Author),
		Text:            firstNonEmpty(raw.Message, raw.Reply),
		CreatedAt:       firstNonEmpty(raw.CreatedAt, raw.Timestamp),
		SessionComplete: raw.SessionComplete,
	}
	return nil
}

// SessionDetails is the journaling details body: {"Entries": [...]}.
type SessionDetails struct {
	Entries []Message `json:"Entries"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
