package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func TestConversations_ListMarkReadMute(t *testing.T) {
	ms, c := newMemStore(t)
	ms.seed("conversations",
		models.Conversation{ID: "direct:u1:u2", Type: models.ConversationPrivate, Participants: []string{"u1", "u2"},
			UnreadCount: models.UnreadCounts{"u1": 3, "u2": 1}},
		models.Conversation{ID: "direct:u11:u3", Type: models.ConversationPrivate, Participants: []string{"u11", "u3"}},
	)
	ctx := context.Background()

	list, err := c.Conversations.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "direct:u1:u2", list[0].ID)

	conv, err := c.Conversations.MarkRead(ctx, "direct:u1:u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount["u1"])
	assert.Equal(t, 1, conv.UnreadCount["u2"])

	conv, err = c.Conversations.Mute(ctx, "direct:u1:u2", 8*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, conv.MutedUntil)
	assert.True(t, conv.MutedUntil.Equal(fixedNow.Add(8*time.Hour)))

	_, err = c.Conversations.Mute(ctx, "direct:u1:u2", 0)
	assert.True(t, IsValidation(err))
}

func TestConversations_ClearDeletesMessages(t *testing.T) {
	ms, c := newMemStore(t)
	ms.seed("conversations", models.Conversation{ID: "group:g1", Type: models.ConversationGroup, Participants: []string{"u1"}})
	ms.seed("messages",
		models.Message{ID: "m1", ConversationID: "group:g1"},
		models.Message{ID: "m2", ConversationID: "group:g1"},
		models.Message{ID: "m3", ConversationID: "direct:u1:u2"},
	)

	_, err := c.Conversations.Clear(context.Background(), "group:g1")
	require.NoError(t, err)

	left := ms.items("messages")
	require.Len(t, left, 1)
	assert.Equal(t, "m3", left[0]["id"])
	assert.Equal(t, true, ms.items("conversations")[0]["clearLastMessage"])
}
