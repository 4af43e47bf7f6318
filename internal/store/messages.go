package store

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
)

// IdempotencyHeader carries the per-send key the store deduplicates on.
const IdempotencyHeader = "Idempotency-Key"

// MessageQuery filters GET /messages. Zero fields are omitted.
type MessageQuery struct {
	SenderID       string
	ReceiverID     string
	GroupID        string
	ConversationID string
	Start          int
	Limit          int
	Sort           string
	Order          string
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("senderId", q.SenderID)
	set("receiverId", q.ReceiverID)
	set("groupId", q.GroupID)
	set("conversationId", q.ConversationID)
	set("_sort", q.Sort)
	set("_order", q.Order)
	if q.Start > 0 {
		v.Set("_start", strconv.Itoa(q.Start))
	}
	if q.Limit > 0 {
		v.Set("_limit", strconv.Itoa(q.Limit))
	}
	return v
}

// MessageClient talks to /messages.
type MessageClient struct {
	c *Client
}

// NewMessageID builds a client-side id: base36 millis plus a random suffix.
func NewMessageID(millis int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(millis, 36) + suffix
}

// Send validates and posts a message. A missing IdempotencyKey is generated
// and returned on the stored record so callers can retry with the same key.
func (m *MessageClient) Send(ctx context.Context, msg models.Message) (models.Message, error) {
	if strings.TrimSpace(msg.SenderID) == "" {
		return models.Message{}, invalid("senderId", "required")
	}
	hasReceiver, hasGroup := msg.Receiver() != "", msg.Group() != ""
	if hasReceiver == hasGroup {
		return models.Message{}, invalid("recipient", "exactly one of receiverId and groupId is required")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return models.Message{}, invalid("content", "must not be blank")
	}
	if msg.Type == "" {
		msg.Type = models.TypeText
	}
	if !msg.Type.Valid() {
		return models.Message{}, invalid("type", string(msg.Type))
	}

	now := m.c.now()
	if msg.ID == "" {
		msg.ID = NewMessageID(now.UnixMilli())
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if msg.IdempotencyKey == nil || *msg.IdempotencyKey == "" {
		key := uuid.NewString()
		msg.IdempotencyKey = &key
	}
	msg.Status = models.StatusSent
	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}
	msg.ConversationID = models.ConversationKey(msg)

	var out models.Message
	err := m.c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/messages",
		body:    msg,
		headers: map[string]string{IdempotencyHeader: *msg.IdempotencyKey},
	}, &out)
	if err != nil {
		return models.Message{}, errors.Wrap(err, "send message")
	}
	logger.Debug("message sent", zap.String("id", out.ID), zap.String("conversation", out.ConversationID))
	return out, nil
}

// List returns messages matching q in server order.
func (m *MessageClient) List(ctx context.Context, q MessageQuery) ([]models.Message, error) {
	var out []models.Message
	if err := m.c.get(ctx, "/messages", q.values(), &out); err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return out, nil
}

// FetchBetween returns both directions of the a/b conversation, oldest first.
func (m *MessageClient) FetchBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	ab, err := m.List(ctx, MessageQuery{SenderID: a, ReceiverID: b})
	if err != nil {
		return nil, err
	}
	ba, err := m.List(ctx, MessageQuery{SenderID: b, ReceiverID: a})
	if err != nil {
		return nil, err
	}
	all := append(ab, ba...)
	sortByTimestamp(all)
	return all, nil
}

// FetchGroup returns a group's messages, oldest first.
func (m *MessageClient) FetchGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	msgs, err := m.List(ctx, MessageQuery{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	sortByTimestamp(msgs)
	return msgs, nil
}

// SentBy lists every message userID sent.
func (m *MessageClient) SentBy(ctx context.Context, userID string) ([]models.Message, error) {
	return m.List(ctx, MessageQuery{SenderID: userID})
}

// ReceivedBy lists every direct message addressed to userID.
func (m *MessageClient) ReceivedBy(ctx context.Context, userID string) ([]models.Message, error) {
	return m.List(ctx, MessageQuery{ReceiverID: userID})
}

// ByGroup lists a group's messages in server order.
func (m *MessageClient) ByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	return m.List(ctx, MessageQuery{GroupID: groupID})
}

// Get fetches one message.
func (m *MessageClient) Get(ctx context.Context, id string) (models.Message, error) {
	var out models.Message
	if err := m.c.get(ctx, itemPath("messages", id), nil, &out); err != nil {
		return models.Message{}, errors.Wrapf(err, "get message %s", id)
	}
	return out, nil
}

// Patch applies a partial update and returns the stored record.
func (m *MessageClient) Patch(ctx context.Context, id string, p models.MessagePatch) (models.Message, error) {
	var out models.Message
	if err := m.c.patch(ctx, itemPath("messages", id), p, &out); err != nil {
		return models.Message{}, errors.Wrapf(err, "patch message %s", id)
	}
	return out, nil
}

// SetStatus updates only the status field.
func (m *MessageClient) SetStatus(ctx context.Context, id string, status models.MessageStatus) (models.Message, error) {
	if !status.Valid() {
		return models.Message{}, invalid("status", string(status))
	}
	return m.Patch(ctx, id, models.MessagePatch{Status: &status})
}

func (m *MessageClient) MarkRead(ctx context.Context, id string) (models.Message, error) {
	return m.SetStatus(ctx, id, models.StatusRead)
}

func (m *MessageClient) MarkDelivered(ctx context.Context, id string) (models.Message, error) {
	return m.SetStatus(ctx, id, models.StatusDelivered)
}

// Edit replaces the content and flags the message as edited.
func (m *MessageClient) Edit(ctx context.Context, id, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, invalid("content", "must not be blank")
	}
	now := m.c.now()
	edited := true
	return m.Patch(ctx, id, models.MessagePatch{Content: &content, IsEdited: &edited, EditedAt: &now})
}

// Delete removes a message for everyone. The record stays with placeholder content.
func (m *MessageClient) Delete(ctx context.Context, id string) (models.Message, error) {
	now := m.c.now()
	deleted := true
	placeholder := models.DeletedPlaceholder
	return m.Patch(ctx, id, models.MessagePatch{Content: &placeholder, IsDeleted: &deleted, DeletedAt: &now})
}

// AddReaction records userID under emoji. Adding twice is a no-op.
func (m *MessageClient) AddReaction(ctx context.Context, id, emoji, userID string) (models.Message, error) {
	if emoji == "" || userID == "" {
		return models.Message{}, invalid("reaction", "emoji and userId are required")
	}
	msg, err := m.Get(ctx, id)
	if err != nil {
		return models.Message{}, err
	}
	reactions := copyReactions(msg.Reactions)
	for _, u := range reactions[emoji] {
		if u == userID {
			return msg, nil
		}
	}
	reactions[emoji] = append(reactions[emoji], userID)
	return m.Patch(ctx, id, models.MessagePatch{Reactions: &reactions})
}

// RemoveReaction drops userID from emoji and removes the emoji once empty.
func (m *MessageClient) RemoveReaction(ctx context.Context, id, emoji, userID string) (models.Message, error) {
	msg, err := m.Get(ctx, id)
	if err != nil {
		return models.Message{}, err
	}
	reactions := copyReactions(msg.Reactions)
	var users []string
	for _, u := range reactions[emoji] {
		if u != userID {
			users = append(users, u)
		}
	}
	if len(users) == 0 {
		delete(reactions, emoji)
	} else {
		reactions[emoji] = users
	}
	return m.Patch(ctx, id, models.MessagePatch{Reactions: &reactions})
}

func copyReactions(r models.Reactions) models.Reactions {
	out := make(models.Reactions, len(r))
	for k, v := range r {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func sortByTimestamp(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
