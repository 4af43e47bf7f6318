package store

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"chat-client/internal/models"
)

// ConversationClient talks to /conversations, the canonical records the
// store maintains on every send.
type ConversationClient struct {
	c *Client
}

// ListForUser returns conversations userID takes part in, most recent first
// as ordered by the store.
func (cc *ConversationClient) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	q := url.Values{
		"participants_like": {userID},
		"_sort":             {"updatedAt"},
		"_order":            {"desc"},
	}
	var all []models.Conversation
	if err := cc.c.get(ctx, "/conversations", q, &all); err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	var out []models.Conversation
	for _, conv := range all {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (cc *ConversationClient) Get(ctx context.Context, id string) (models.Conversation, error) {
	var out models.Conversation
	if err := cc.c.get(ctx, itemPath("conversations", id), nil, &out); err != nil {
		return models.Conversation{}, errors.Wrapf(err, "get conversation %s", id)
	}
	return out, nil
}

// MarkRead zeroes userID's unread counter.
func (cc *ConversationClient) MarkRead(ctx context.Context, id, userID string) (models.Conversation, error) {
	conv, err := cc.Get(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	counts := models.UnreadCounts{}
	for k, v := range conv.UnreadCount {
		counts[k] = v
	}
	counts[userID] = 0
	return cc.Patch(ctx, id, models.ConversationPatch{UnreadCount: &counts})
}

// Mute silences the conversation for d from now.
func (cc *ConversationClient) Mute(ctx context.Context, id string, d time.Duration) (models.Conversation, error) {
	if d <= 0 {
		return models.Conversation{}, invalid("duration", "must be positive")
	}
	until := cc.c.now().Add(d)
	return cc.Patch(ctx, id, models.ConversationPatch{MutedUntil: &until})
}

func (cc *ConversationClient) Patch(ctx context.Context, id string, p models.ConversationPatch) (models.Conversation, error) {
	var out models.Conversation
	if err := cc.c.patch(ctx, itemPath("conversations", id), p, &out); err != nil {
		return models.Conversation{}, errors.Wrapf(err, "patch conversation %s", id)
	}
	return out, nil
}

// Delete removes the conversation. The store deletes its messages with it.
func (cc *ConversationClient) Delete(ctx context.Context, id string) error {
	if err := cc.c.delete(ctx, itemPath("conversations", id)); err != nil {
		return errors.Wrapf(err, "delete conversation %s", id)
	}
	return nil
}

// Clear deletes every message of the conversation and resets its last message.
func (cc *ConversationClient) Clear(ctx context.Context, id string) (models.Conversation, error) {
	msgs, err := cc.c.Messages.List(ctx, MessageQuery{ConversationID: id})
	if err != nil {
		return models.Conversation{}, err
	}
	for _, m := range msgs {
		if err := cc.c.delete(ctx, itemPath("messages", m.ID)); err != nil && !errors.Is(err, ErrNotFound) {
			return models.Conversation{}, errors.Wrapf(err, "clear conversation %s", id)
		}
	}
	return cc.Patch(ctx, id, models.ConversationPatch{ClearLastMessage: true})
}
