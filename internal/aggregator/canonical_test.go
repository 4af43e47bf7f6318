package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chat-client/internal/models"
)

func TestApplyToConversationDirect(t *testing.T) {
	now := base.Add(time.Hour)
	var conv models.Conversation

	ApplyToConversation(&conv, direct("1", "B", "A", 1, models.StatusSent), now)
	ApplyToConversation(&conv, direct("2", "A", "B", 2, models.StatusSent), now)
	ApplyToConversation(&conv, direct("3", "B", "A", 3, models.StatusSent), now)

	assert.Equal(t, "direct:A:B", conv.ID)
	assert.Equal(t, models.ConversationPrivate, conv.Type)
	assert.Equal(t, []string{"A", "B"}, []string(conv.Participants))
	assert.Equal(t, models.UnreadCounts{"A": 2, "B": 1}, conv.UnreadCount)
	assert.Equal(t, "3", conv.LastMessage.ID)
	assert.Equal(t, now, conv.CreatedAt)
	assert.Equal(t, now, conv.UpdatedAt)
}

func TestApplyToConversationKeepsNewerLastMessage(t *testing.T) {
	var conv models.Conversation
	ApplyToConversation(&conv, direct("late", "A", "B", 9, models.StatusSent), base)
	ApplyToConversation(&conv, direct("early", "B", "A", 2, models.StatusSent), base)
	ApplyToConversation(&conv, direct("tie", "B", "A", 9, models.StatusSent), base)

	assert.Equal(t, "late", conv.LastMessage.ID)
}

func TestApplyToConversationGroupGrowsParticipants(t *testing.T) {
	var conv models.Conversation
	ApplyToConversation(&conv, groupMsg("1", "A", "G", 1), base)
	ApplyToConversation(&conv, groupMsg("2", "B", "G", 2), base)
	ApplyToConversation(&conv, groupMsg("3", "C", "G", 3), base)

	assert.Equal(t, "group:G", conv.ID)
	assert.Equal(t, models.ConversationGroup, conv.Type)
	assert.Equal(t, "G", *conv.GroupID)
	assert.Equal(t, []string{"A", "B", "C"}, []string(conv.Participants))
	assert.Equal(t, models.UnreadCounts{"A": 2, "B": 1}, conv.UnreadCount)
}
