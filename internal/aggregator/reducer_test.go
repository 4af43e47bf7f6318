package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func TestReducerCreatedEqualsReaggregation(t *testing.T) {
	history := []models.Message{
		direct("1", "A", "U", 1, models.StatusSent),
		direct("2", "U", "C", 2, models.StatusSent),
	}
	incoming := direct("3", "A", "U", 3, models.StatusSent)

	r := NewReducer("U", Aggregate("U", history))
	changed := r.Apply(models.ChatEvent{Type: models.EventMessageCreated, Message: &incoming})

	require.True(t, changed)
	assert.Equal(t, Aggregate("U", append(history, incoming)), r.Summaries())
}

func TestReducerUpdateReplacesMessage(t *testing.T) {
	m := direct("1", "A", "U", 1, models.StatusSent)
	r := NewReducer("U", Aggregate("U", []models.Message{m}))
	require.Equal(t, 1, r.Summaries()[0].UnreadCount)

	m.Status = models.StatusRead
	r.Apply(models.ChatEvent{Type: models.EventMessageUpdated, Message: &m})

	got := r.Summaries()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].UnreadCount)
	assert.Len(t, got[0].Messages, 1)
}

func TestReducerDeleteByIDDropsEmptyConversation(t *testing.T) {
	r := NewReducer("U", Aggregate("U", []models.Message{
		direct("1", "A", "U", 1, models.StatusSent),
		direct("2", "C", "U", 2, models.StatusSent),
	}))

	assert.True(t, r.Apply(models.ChatEvent{Type: models.EventMessageDeleted, MessageID: "2"}))
	assert.False(t, r.Apply(models.ChatEvent{Type: models.EventMessageDeleted, MessageID: "missing"}))

	got := r.Summaries()
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
}

func TestReducerIgnoresUnknownEvents(t *testing.T) {
	r := NewReducer("U", nil)
	assert.False(t, r.Apply(models.ChatEvent{Type: "typing"}))
	assert.False(t, r.Apply(models.ChatEvent{Type: models.EventMessageCreated}))
	assert.Empty(t, r.Summaries())
}
