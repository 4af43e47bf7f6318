// Package aggregator derives conversation summaries from raw messages and
// keeps them current as message events arrive.
package aggregator

import (
	"context"
	"fmt"
	"sort"

	"chat-client/internal/models"
)

// Source fetches the raw messages an aggregation pass works from.
type Source interface {
	SentBy(ctx context.Context, userID string) ([]models.Message, error)
	ReceivedBy(ctx context.Context, userID string) ([]models.Message, error)
	ByGroup(ctx context.Context, groupID string) ([]models.Message, error)
}

// Key returns the grouping key of m from userID's point of view: the group id
// when present, otherwise the id of the participant that is not userID.
func Key(userID string, m models.Message) (key string, isGroup bool) {
	if m.IsGroup() {
		return m.Group(), true
	}
	if m.SenderID == userID {
		return m.Receiver(), false
	}
	return m.SenderID, false
}

// IsUnreadFor reports whether m counts towards userID's unread total.
func IsUnreadFor(userID string, m models.Message) bool {
	return m.Receiver() == userID && m.Status != models.StatusRead
}

// Aggregate builds one summary per counterpart or group, sorted by the
// timestamp of the last message, newest first.
func Aggregate(userID string, messages []models.Message) []models.Summary {
	index := make(map[string]int)
	var out []models.Summary
	for _, m := range messages {
		key, isGroup := Key(userID, m)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, models.Summary{ID: key, IsGroup: isGroup, LastMessage: m})
		}
		accumulate(userID, &out[i], m)
	}
	sortSummaries(out)
	return out
}

// accumulate folds one message into a summary. The last message only moves on
// a strictly later timestamp, so on ties the first message seen is kept.
func accumulate(userID string, s *models.Summary, m models.Message) {
	s.Messages = append(s.Messages, m)
	if IsUnreadFor(userID, m) {
		s.UnreadCount++
	}
	if m.Timestamp.After(s.LastMessage.Timestamp) {
		s.LastMessage = m
	}
}

func sortSummaries(list []models.Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastMessage.Timestamp.After(list[j].LastMessage.Timestamp)
	})
}

// Load runs one aggregation pass: messages sent by and received by userID,
// plus the full history of every group in groupIDs.
func Load(ctx context.Context, src Source, userID string, groupIDs []string) ([]models.Summary, error) {
	sent, err := src.SentBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sent messages: %w", err)
	}
	received, err := src.ReceivedBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load received messages: %w", err)
	}

	all := make([]models.Message, 0, len(sent)+len(received))
	seen := map[string]struct{}{}
	add := func(msgs []models.Message) {
		for _, m := range msgs {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			all = append(all, m)
		}
	}
	add(sent)
	add(received)

	for _, groupID := range groupIDs {
		msgs, err := src.ByGroup(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("load group %s messages: %w", groupID, err)
		}
		add(msgs)
	}
	return Aggregate(userID, all), nil
}
