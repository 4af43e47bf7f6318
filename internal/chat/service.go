// Package chat drives the client: which conversation is open, what the
// thread and discussion list show, and sending.
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chat-client/internal/aggregator"
	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/presenter"
	"chat-client/internal/session"
)

var (
	ErrNoConversation = errors.New("no conversation selected")
	// ErrStale means the active conversation changed while a load was running.
	ErrStale     = errors.New("conversation changed while loading")
	ErrNoPending = errors.New("no failed message to retry")
)

type Messages interface {
	aggregator.Source
	Send(ctx context.Context, msg models.Message) (models.Message, error)
	FetchBetween(ctx context.Context, a, b string) ([]models.Message, error)
	FetchGroup(ctx context.Context, groupID string) ([]models.Message, error)
	MarkRead(ctx context.Context, id string) (models.Message, error)
}

type Discussions interface {
	Upsert(ctx context.Context, d models.Discussion) (models.Discussion, error)
	ListForUser(ctx context.Context, userID string) ([]models.Discussion, error)
	ListArchived(ctx context.Context, userID string) ([]models.Discussion, error)
	MarkRead(ctx context.Context, id string) (models.Discussion, error)
}

type Groups interface {
	GroupIDsFor(ctx context.Context, userID string) ([]string, error)
}

// Deps are the store clients the service talks to.
type Deps struct {
	Messages    Messages
	Discussions Discussions
	Groups      Groups
	Directory   presenter.Directory
	Now         func() time.Time
}

// Service is bound to one logged-in user.
type Service struct {
	user    models.User
	deps    Deps
	active  session.Active
	reducer *aggregator.Reducer

	mu          sync.Mutex
	thread      []models.Message
	discussions []models.Discussion
	pending     *models.Message
}

func NewService(user models.User, deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		user:    user,
		deps:    deps,
		reducer: aggregator.NewReducer(user.ID, nil),
	}
}

func (s *Service) User() models.User { return s.user }

// Current returns the open conversation, if any.
func (s *Service) Current() (session.Target, bool) {
	t, _, ok := s.active.Current()
	return t, ok
}

// Open switches to t, loads its thread and marks incoming unread messages read.
func (s *Service) Open(ctx context.Context, t session.Target) ([]models.Message, error) {
	ctx, gen := s.active.Switch(ctx, t)

	msgs, err := s.load(ctx, t)
	if err != nil {
		return nil, err
	}
	if !s.active.IsCurrent(gen) {
		return nil, ErrStale
	}

	for i := range msgs {
		if !aggregator.IsUnreadFor(s.user.ID, msgs[i]) {
			continue
		}
		if _, err := s.deps.Messages.MarkRead(ctx, msgs[i].ID); err != nil {
			logger.Warn("mark read failed", zap.String("message_id", msgs[i].ID), zap.Error(err))
			continue
		}
		msgs[i].Status = models.StatusRead
		s.reducer.Apply(models.ChatEvent{Type: models.EventMessageUpdated, Message: &msgs[i]})
	}
	s.markDiscussionRead(ctx, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.IsCurrent(gen) {
		return nil, ErrStale
	}
	s.thread = msgs
	return append([]models.Message(nil), msgs...), nil
}

// Close leaves the current conversation.
func (s *Service) Close() {
	s.active.Close()
	s.mu.Lock()
	s.thread = nil
	s.mu.Unlock()
}

func (s *Service) load(ctx context.Context, t session.Target) ([]models.Message, error) {
	var (
		msgs []models.Message
		err  error
	)
	if t.IsGroup {
		msgs, err = s.deps.Messages.FetchGroup(ctx, t.ID)
	} else {
		msgs, err = s.deps.Messages.FetchBetween(ctx, s.user.ID, t.ID)
	}
	if err != nil {
		logger.Error("load thread failed", zap.String("target", t.ID), zap.Error(err))
		return nil, errors.Wrap(err, "load thread")
	}
	return msgs, nil
}

func (s *Service) markDiscussionRead(ctx context.Context, t session.Target) {
	s.mu.Lock()
	discussions := s.discussions
	s.mu.Unlock()
	for _, d := range discussions {
		if !d.HasUnreadMessages || !discussionFor(d, t) {
			continue
		}
		if _, err := s.deps.Discussions.MarkRead(ctx, d.ID); err != nil {
			logger.Warn("discussion mark read failed", zap.String("discussion_id", d.ID), zap.Error(err))
		}
	}
}

func discussionFor(d models.Discussion, t session.Target) bool {
	if t.IsGroup {
		return d.GroupID == t.ID
	}
	return d.GroupID == "" && d.ContactID == t.ID
}

// RefreshThread reloads the open thread. Results for a conversation that is
// no longer open are dropped.
func (s *Service) RefreshThread(ctx context.Context) error {
	t, gen, ok := s.active.Current()
	if !ok {
		return nil
	}
	msgs, err := s.load(ctx, t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.IsCurrent(gen) {
		return ErrStale
	}
	s.thread = msgs
	return nil
}

// Thread returns the open conversation's messages, oldest first.
func (s *Service) Thread() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.thread...)
}

// Rows renders the open thread.
func (s *Service) Rows() []presenter.Row {
	return presenter.BuildThread(s.user.ID, s.Thread(), s.deps.Now())
}

// Send posts text to the open conversation. Blank text does nothing and
// returns (nil, nil). On failure the message is kept for Retry and the
// thread is left untouched.
func (s *Service) Send(ctx context.Context, text string) (*models.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, nil
	}
	t, gen, ok := s.active.Current()
	if !ok {
		return nil, ErrNoConversation
	}

	key := uuid.NewString()
	msg := models.Message{SenderID: s.user.ID, Content: content, Type: models.TypeText, IdempotencyKey: &key}
	if t.IsGroup {
		msg.GroupID = &t.ID
	} else {
		msg.ReceiverID = &t.ID
	}
	return s.deliver(ctx, t, gen, msg)
}

// Retry resends the last failed message with its original idempotency key.
func (s *Service) Retry(ctx context.Context) (*models.Message, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil, ErrNoPending
	}
	t, gen, ok := s.active.Current()
	if !ok {
		return nil, ErrNoConversation
	}
	return s.deliver(ctx, t, gen, *pending)
}

func (s *Service) deliver(ctx context.Context, t session.Target, gen uint64, msg models.Message) (*models.Message, error) {
	sent, err := s.deps.Messages.Send(ctx, msg)
	if err != nil {
		s.mu.Lock()
		failed := msg
		s.pending = &failed
		s.mu.Unlock()
		logger.Error("send failed", zap.String("target", t.ID), zap.Error(err))
		return nil, errors.Wrap(err, "send")
	}

	s.mu.Lock()
	if s.pending != nil && msg.IdempotencyKey != nil && s.pending.IdempotencyKey != nil &&
		*s.pending.IdempotencyKey == *msg.IdempotencyKey {
		s.pending = nil
	}
	if s.active.IsCurrent(gen) {
		s.thread = upsertSorted(s.thread, sent)
	}
	s.mu.Unlock()
	s.reducer.Apply(models.ChatEvent{Type: models.EventMessageCreated, Message: &sent})

	disc := models.Discussion{
		CreatedBy:    s.user.ID,
		LastMessage:  sent.Preview(),
		Participants: []string{s.user.ID},
	}
	if t.IsGroup {
		disc.GroupID = t.ID
	} else {
		disc.ContactID = t.ID
		disc.Participants = append(disc.Participants, t.ID)
	}
	if _, err := s.deps.Discussions.Upsert(ctx, disc); err != nil {
		logger.Warn("discussion upsert failed", zap.String("target", t.ID), zap.Error(err))
	}
	return &sent, nil
}

// Pending returns the message waiting for Retry, if any.
func (s *Service) Pending() (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return models.Message{}, false
	}
	return *s.pending, true
}

// Reload rebuilds the conversation list from the store.
func (s *Service) Reload(ctx context.Context) error {
	groupIDs, err := s.deps.Groups.GroupIDsFor(ctx, s.user.ID)
	if err != nil {
		logger.Warn("group lookup failed", zap.Error(err))
		groupIDs = nil
	}
	summaries, err := aggregator.Load(ctx, s.deps.Messages, s.user.ID, groupIDs)
	if err != nil {
		return errors.Wrap(err, "load conversations")
	}
	s.reducer.Reset(summaries)

	active, err := s.deps.Discussions.ListForUser(ctx, s.user.ID)
	if err != nil {
		logger.Warn("discussion list failed", zap.Error(err))
	}
	archived, err := s.deps.Discussions.ListArchived(ctx, s.user.ID)
	if err != nil {
		logger.Warn("archived discussion list failed", zap.Error(err))
	}
	s.mu.Lock()
	s.discussions = append(active, archived...)
	s.mu.Unlock()
	return nil
}

// Conversations reloads and returns the enriched discussion list.
func (s *Service) Conversations(ctx context.Context) ([]presenter.DiscussionItem, error) {
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s.Items(ctx), nil
}

// Items returns the discussion list from local state without refetching messages.
func (s *Service) Items(ctx context.Context) []presenter.DiscussionItem {
	s.mu.Lock()
	discussions := append([]models.Discussion(nil), s.discussions...)
	s.mu.Unlock()
	return presenter.Enrich(ctx, s.reducer.Summaries(), s.deps.Directory, discussions)
}

// HandleEvent folds a pushed event into the list and, when it concerns the
// open conversation, into the thread.
func (s *Service) HandleEvent(ev models.ChatEvent) bool {
	changed := s.reducer.Apply(ev)
	t, _, ok := s.active.Current()
	if !ok {
		return changed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case ev.Message != nil && s.belongs(t, *ev.Message):
		s.thread = upsertSorted(s.thread, *ev.Message)
		return true
	case ev.Type == models.EventMessageDeleted && ev.MessageID != "":
		for i := range s.thread {
			if s.thread[i].ID == ev.MessageID {
				s.thread = append(s.thread[:i], s.thread[i+1:]...)
				return true
			}
		}
	}
	return changed
}

func (s *Service) belongs(t session.Target, m models.Message) bool {
	if t.IsGroup {
		return m.Group() == t.ID
	}
	if m.IsGroup() {
		return false
	}
	me := s.user.ID
	return (m.SenderID == me && m.Receiver() == t.ID) || (m.SenderID == t.ID && m.Receiver() == me)
}

func upsertSorted(thread []models.Message, m models.Message) []models.Message {
	for i := range thread {
		if thread[i].ID == m.ID {
			thread[i] = m
			return thread
		}
	}
	thread = append(thread, m)
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].Timestamp.Before(thread[j].Timestamp)
	})
	return thread
}
