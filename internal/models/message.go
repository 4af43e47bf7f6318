package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MessageType is the kind of payload carried by Content.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeDocument, TypeLocation, TypeContact:
		return true
	}
	return false
}

// MessageStatus tracks delivery progress: sending, sent, delivered, read, or failed.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// Reactions maps an emoji to the ids of the users who reacted with it.
type Reactions map[string][]string

// Value implements driver.Valuer for JSONB columns.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	return jsonValue(r)
}

// Scan implements sql.Scanner for JSONB columns.
func (r *Reactions) Scan(src any) error {
	return scanJSON(src, r)
}

// Message is a single chat message. Exactly one of ReceiverID and GroupID is set.
type Message struct {
	ID             string        `db:"id" json:"id"`
	IdempotencyKey *string       `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	ConversationID string        `db:"conversation_id" json:"conversationId,omitempty"`
	SenderID       string        `db:"sender_id" json:"senderId"`
	ReceiverID     *string       `db:"receiver_id" json:"receiverId,omitempty"`
	GroupID        *string       `db:"group_id" json:"groupId,omitempty"`
	Content        string        `db:"content" json:"content"`
	Type           MessageType   `db:"type" json:"type"`
	Timestamp      time.Time     `db:"timestamp" json:"timestamp"`
	Status         MessageStatus `db:"status" json:"status"`
	ReplyTo        *string       `db:"reply_to" json:"replyTo,omitempty"`
	Reactions      Reactions     `db:"reactions" json:"reactions"`
	IsEdited       bool          `db:"is_edited" json:"isEdited"`
	EditedAt       *time.Time    `db:"edited_at" json:"editedAt,omitempty"`
	IsDeleted      bool          `db:"is_deleted" json:"isDeleted"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"deletedAt,omitempty"`
}

// IsGroup reports whether the message is addressed to a group.
func (m Message) IsGroup() bool {
	return m.GroupID != nil && *m.GroupID != ""
}

// Receiver returns the direct receiver id or "" for group messages.
func (m Message) Receiver() string {
	if m.ReceiverID == nil {
		return ""
	}
	return *m.ReceiverID
}

// Group returns the group id or "".
func (m Message) Group() string {
	if m.GroupID == nil {
		return ""
	}
	return *m.GroupID
}

// Preview returns the summary stored on conversations.
func (m Message) Preview() *MessagePreview {
	return &MessagePreview{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp,
		Type:      m.Type,
		Status:    m.Status,
	}
}

// MessagePatch lists the fields a partial update may touch. Nil fields are left alone.
type MessagePatch struct {
	Status    *MessageStatus `json:"status,omitempty"`
	Content   *string        `json:"content,omitempty"`
	IsEdited  *bool          `json:"isEdited,omitempty"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
	IsDeleted *bool          `json:"isDeleted,omitempty"`
	DeletedAt *time.Time     `json:"deletedAt,omitempty"`
	Reactions *Reactions     `json:"reactions,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p MessagePatch) Empty() bool {
	return p.Status == nil && p.Content == nil && p.IsEdited == nil && p.EditedAt == nil &&
		p.IsDeleted == nil && p.DeletedAt == nil && p.Reactions == nil
}

// Event types broadcast to subscribers and published to the broker.
const (
	EventMessageCreated      = "message.created"
	EventMessageUpdated      = "message.updated"
	EventMessageDeleted      = "message.deleted"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
)

// ChatEvent is pushed through websockets for every change a user should see.
type ChatEvent struct {
	Type           string        `json:"type"`
	Message        *Message      `json:"message,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// jsonValue encodes v as text so the driver sends it as JSON rather than bytea.
func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}
