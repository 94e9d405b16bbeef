package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

func TestMessageIDAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]MessageID{
		`{"messageId": 42}`:   42,
		`{"messageId": "42"}`: 42,
		`{"messageId": ""}`:   0,
		`{"messageId": null}`: 0,
		`{}`:                  0,
	}
	for in, want := range cases {
		var d MarkMessageReadData
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, want, d.MessageID, in)
	}

	var d MarkMessageReadData
	assert.Error(t, json.Unmarshal([]byte(`{"messageId": "abc"}`), &d))
}

func TestFromMessageHidesOwnerUnlessAsked(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &store.Message{
		ID:         7,
		UserID:     "u1",
		Content:    "hi",
		SenderType: store.SenderUser,
		Timestamp:  ts,
		Attachment: &store.Attachment{Filename: "f", MimeType: "text/plain", Size: 1, Data: "data:text/plain;base64,eA=="},
		EditHistory: []store.EditEntry{
			{OriginalContent: "old", EditedAt: ts, EditedBy: "admin"},
		},
	}

	plain := FromMessage(m, false)
	assert.Empty(t, plain.UserID)
	assert.Equal(t, int64(7), plain.ID)
	require.NotNil(t, plain.File)
	assert.Equal(t, "text/plain", plain.File.MimeType)
	require.Len(t, plain.EditHistory, 1)
	assert.Equal(t, "old", plain.EditHistory[0].OriginalContent)

	annotated := FromMessage(m, true)
	assert.Equal(t, "u1", annotated.UserID)

	raw, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"_id":7`)
	assert.NotContains(t, string(raw), `"userId"`)
}
