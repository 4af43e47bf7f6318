package aggregator

import (
	"sync"

	"chat-client/internal/models"
)

// Reducer applies pushed message events to a set of summaries so the list
// never needs a full refetch. It is safe for concurrent use.
type Reducer struct {
	mu       sync.RWMutex
	userID   string
	messages map[string][]models.Message
	groups   map[string]bool
	order    []string
}

// NewReducer seeds a reducer from the result of an aggregation pass.
func NewReducer(userID string, initial []models.Summary) *Reducer {
	r := &Reducer{
		userID:   userID,
		messages: make(map[string][]models.Message),
		groups:   make(map[string]bool),
	}
	r.Reset(initial)
	return r
}

// Reset replaces the state with a fresh aggregation result.
func (r *Reducer) Reset(summaries []models.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = make(map[string][]models.Message, len(summaries))
	r.groups = make(map[string]bool, len(summaries))
	r.order = r.order[:0]
	for _, s := range summaries {
		r.order = append(r.order, s.ID)
		r.groups[s.ID] = s.IsGroup
		r.messages[s.ID] = append([]models.Message(nil), s.Messages...)
	}
}

// Apply folds one event into the state and reports whether anything changed.
func (r *Reducer) Apply(ev models.ChatEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case models.EventMessageCreated, models.EventMessageUpdated:
		if ev.Message == nil {
			return false
		}
		return r.upsert(*ev.Message)
	case models.EventMessageDeleted:
		if ev.Message != nil {
			return r.upsert(*ev.Message)
		}
		return r.remove(ev.MessageID)
	}
	return false
}

func (r *Reducer) upsert(m models.Message) bool {
	key, isGroup := Key(r.userID, m)
	msgs, ok := r.messages[key]
	if !ok {
		r.order = append(r.order, key)
		r.groups[key] = isGroup
	}
	for i := range msgs {
		if msgs[i].ID == m.ID {
			msgs[i] = m
			return true
		}
	}
	r.messages[key] = append(msgs, m)
	return true
}

func (r *Reducer) remove(messageID string) bool {
	for key, msgs := range r.messages {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			msgs = append(msgs[:i], msgs[i+1:]...)
			if len(msgs) == 0 {
				r.drop(key)
			} else {
				r.messages[key] = msgs
			}
			return true
		}
	}
	return false
}

func (r *Reducer) drop(key string) {
	delete(r.messages, key)
	delete(r.groups, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Summaries recomputes every summary from the messages held, in the same way
// a full aggregation pass would.
func (r *Reducer) Summaries() []models.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Summary, 0, len(r.order))
	for _, key := range r.order {
		msgs := r.messages[key]
		if len(msgs) == 0 {
			continue
		}
		s := models.Summary{ID: key, IsGroup: r.groups[key], LastMessage: msgs[0]}
		for _, m := range msgs {
			accumulate(r.userID, &s, m)
		}
		out = append(out, s)
	}
	sortSummaries(out)
	return out
}
