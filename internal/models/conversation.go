package models

import (
	"database/sql/driver"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ConversationType is private or group.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

// MessagePreview is the last-message snapshot kept on a conversation.
type MessagePreview struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	SenderID  string        `json:"senderId"`
	Timestamp time.Time     `json:"timestamp"`
	Type      MessageType   `json:"type"`
	Status    MessageStatus `json:"status,omitempty"`
}

// Value implements driver.Valuer.
func (p MessagePreview) Value() (driver.Value, error) {
	return jsonValue(p)
}

// Scan implements sql.Scanner.
func (p *MessagePreview) Scan(src any) error {
	return scanJSON(src, p)
}

// UnreadCounts maps a user id to the number of messages that user has not read.
type UnreadCounts map[string]int

// Value implements driver.Valuer.
func (u UnreadCounts) Value() (driver.Value, error) {
	if u == nil {
		return "{}", nil
	}
	return jsonValue(u)
}

// Scan implements sql.Scanner.
func (u *UnreadCounts) Scan(src any) error {
	return scanJSON(src, u)
}

// Conversation is the canonical stored conversation, upserted on every send.
type Conversation struct {
	ID           string           `db:"id" json:"id"`
	Type         ConversationType `db:"type" json:"type"`
	GroupID      *string          `db:"group_id" json:"groupId,omitempty"`
	Participants pq.StringArray   `db:"participants" json:"participants"`
	LastMessage  *MessagePreview  `db:"last_message" json:"lastMessage"`
	UnreadCount  UnreadCounts     `db:"unread_count" json:"unreadCount"`
	MutedUntil   *time.Time       `db:"muted_until" json:"mutedUntil,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ConversationPatch lists the client-mutable conversation fields.
type ConversationPatch struct {
	UnreadCount *UnreadCounts `json:"unreadCount,omitempty"`
	MutedUntil  *time.Time    `json:"mutedUntil,omitempty"`
	// ClearLastMessage resets lastMessage, used when a conversation is cleared.
	ClearLastMessage bool `json:"clearLastMessage,omitempty"`
}

// ConversationKey returns the canonical id for the conversation a message belongs to.
func ConversationKey(m Message) string {
	if m.IsGroup() {
		return "group:" + m.Group()
	}
	return DirectConversationKey(m.SenderID, m.Receiver())
}

// DirectConversationKey builds the id of the private conversation between two users.
func DirectConversationKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "direct:" + strings.Join(ids, ":")
}

// Summary is the aggregator-derived view of one conversation, keyed by counterpart or group.
type Summary struct {
	ID          string    `json:"id"`
	IsGroup     bool      `json:"isGroup"`
	LastMessage Message   `json:"lastMessage"`
	UnreadCount int       `json:"unreadCount"`
	Messages    []Message `json:"messages"`
}
