package protocol

import (
	"errors"
	"testing"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRecordFieldNames(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rec := FromMessage(model.Message{
		ID:         "m1",
		SenderID:   "alice-example-com",
		SenderName: "Alice",
		Kind:       model.Photo{URI: "https://cdn/message_images/p.png"},
		SentAt:     at,
	})

	data, err := NewJSONCodec().Encode(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "m1",
		"type": "photo",
		"content": "https://cdn/message_images/p.png",
		"date": "2024-05-01T08:00:00Z",
		"sender_email": "alice-example-com",
		"name": "Alice"
	}`, string(data))

	back, err := rec.ToMessage("conversation_m1")
	require.NoError(t, err)
	assert.Equal(t, model.Photo{URI: "https://cdn/message_images/p.png"}, back.Kind)
	assert.Equal(t, "conversation_m1", back.ConversationID)
	assert.True(t, back.SentAt.Equal(at))
}

func TestSummaryRecordFieldNames(t *testing.T) {
	rec := FromSummary(model.ConversationSummary{
		ConversationID: "conversation_m1",
		OtherUserEmail: "bob-example-com",
		Name:           "Bob",
		LatestMessage:  model.LatestMessage{Date: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), Message: "hi"},
	})

	data, err := NewJSONCodec().Encode(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "conversation_m1",
		"other_user_email": "bob-example-com",
		"name": "Bob",
		"latest_message": {"date": "2024-05-01T08:00:00Z", "message": "hi", "is_read": false}
	}`, string(data))

	var decoded SummaryRecord
	require.NoError(t, NewJSONCodec().Decode(data, &decoded))
	summary, err := decoded.ToSummary()
	require.NoError(t, err)
	assert.Equal(t, "hi", summary.LatestMessage.Message)
}

func TestToMessageRejectsBadInput(t *testing.T) {
	_, err := MessageRecord{ID: "m", Type: "text", Content: "x", Date: "yesterday"}.ToMessage("c")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = MessageRecord{ID: "m", Type: "fax", Content: "x", Date: FormatDate(time.Now())}.ToMessage("c")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}
