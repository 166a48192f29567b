package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    SessionID
		wantErr bool
	}{
		{name: "string", in: `"abc-123"`, want: "abc-123"},
		{name: "number", in: `42`, want: "42"},
		{name: "null", in: `null`, want: ""},
		{name: "object", in: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id SessionID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestSessionID_MarshalKeepsType(t *testing.T) {
	b, err := json.Marshal(map[string]SessionID{"n": "42", "s": "abc", "z": "007"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":42,"s":"abc","z":"007"}`, string(b))
}

func TestMessage_UnmarshalJSON_Aliases(t *testing.T) {
	var got []Message
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "sender": "user", "message": "hi", "created_at": "2025-01-01"},
		{"author": "bot", "message": "hello", "timestamp": "2025-01-02", "is_session_complete": true},
		{"author": "bot", "reply": "from reply"}
	]`), &got))

	assert.Equal(t, []Message{
		{ID: "1", Sender: SenderUser, Text: "hi", CreatedAt: "2025-01-01"},
		{Sender: SenderBot, Text: "hello", CreatedAt: "2025-01-02", SessionComplete: true},
		{Sender: SenderBot, Text: "from reply"},
	}, got)
}

func TestUser_DisplayName(t *testing.T) {
	var nilUser *User
	assert.Equal(t, "", nilUser.DisplayName())
	assert.Equal(t, "Ann", (&User{Name: "Ann", Username: "ann1", Email: "a@x"}).DisplayName())
	assert.Equal(t, "ann1", (&User{Username: "ann1", Email: "a@x"}).DisplayName())
	assert.Equal(t, "a@x", (&User{Email: "a@x"}).DisplayName())
}

func TestTokens_Complete(t *testing.T) {
	assert.True(t, Tokens{Access: "a", Refresh: "r"}.Complete())
	assert.False(t, Tokens{Access: "a"}.Complete())
	assert.False(t, Tokens{}.Complete())
}
