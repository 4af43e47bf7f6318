package aggregator

import (
	"sort"
	"time"

	"chat-client/internal/models"
)

// NewConversation returns the empty conversation m belongs to: no last
// message, no unread counts.
func NewConversation(m models.Message, now time.Time) models.Conversation {
	conv := models.Conversation{
		ID:          models.ConversationKey(m),
		UnreadCount: models.UnreadCounts{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.IsGroup() {
		groupID := m.Group()
		conv.Type = models.ConversationGroup
		conv.GroupID = &groupID
		conv.Participants = []string{}
		return conv
	}
	conv.Type = models.ConversationPrivate
	ids := []string{m.SenderID, m.Receiver()}
	sort.Strings(ids)
	if ids[0] == ids[1] {
		ids = ids[:1]
	}
	conv.Participants = ids
	return conv
}

// ApplyToConversation folds a newly stored message into its canonical
// conversation. A zero conversation is initialised from the message.
func ApplyToConversation(conv *models.Conversation, m models.Message, now time.Time) {
	if conv.ID == "" {
		*conv = NewConversation(m, now)
	}
	if !conv.HasParticipant(m.SenderID) {
		conv.Participants = append(conv.Participants, m.SenderID)
	}
	if conv.UnreadCount == nil {
		conv.UnreadCount = models.UnreadCounts{}
	}

	if conv.LastMessage == nil || m.Timestamp.After(conv.LastMessage.Timestamp) {
		conv.LastMessage = m.Preview()
	}
	for _, p := range conv.Participants {
		if p != m.SenderID {
			conv.UnreadCount[p]++
		}
	}
	conv.UpdatedAt = now
}
