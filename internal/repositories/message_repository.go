package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-client/internal/aggregator"
	"chat-client/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageExists   = errors.New("message id already exists")
)

const messageColumns = `id, idempotency_key, conversation_id, sender_id, receiver_id, group_id, content, type, timestamp, status, reply_to, reactions, is_edited, edited_at, is_deleted, deleted_at`

const conversationColumns = `id, type, group_id, participants, last_message, unread_count, muted_until, created_at, updated_at`

// MessageFilter narrows List. Empty fields are ignored.
type MessageFilter struct {
	SenderID       string
	ReceiverID     string
	GroupID        string
	ConversationID string
	Page
}

// CreateResult is the outcome of Create. Replayed is set when the
// idempotency key matched an earlier write and nothing new was stored.
type CreateResult struct {
	Message      models.Message
	Conversation models.Conversation
	Replayed     bool
}

// MessageRepository stores messages and keeps their conversations current.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (CreateResult, error)
	List(ctx context.Context, f MessageFilter) ([]models.Message, error)
	Get(ctx context.Context, id string) (models.Message, error)
	Patch(ctx context.Context, id string, p models.MessagePatch) (models.Message, *models.Conversation, error)
	Delete(ctx context.Context, id string) (models.Message, *models.Conversation, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts msg and upserts its conversation in one transaction.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (CreateResult, error) {
	if msg.IdempotencyKey != nil {
		if res, ok, err := r.replay(ctx, *msg.IdempotencyKey); err != nil || ok {
			return res, err
		}
	}

	now := r.now()
	msg.ConversationID = models.ConversationKey(msg)
	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return CreateResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seed := aggregator.NewConversation(msg, now)
	if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, type, group_id, participants, unread_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6) ON CONFLICT (id) DO NOTHING`,
		seed.ID, seed.Type, seed.GroupID, seed.Participants, seed.UnreadCount, now); err != nil {
		return CreateResult{}, fmt.Errorf("seed conversation: %w", err)
	}

	var conv models.Conversation
	if err := tx.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1 FOR UPDATE`, seed.ID); err != nil {
		return CreateResult{}, fmt.Errorf("lock conversation: %w", err)
	}
	aggregator.ApplyToConversation(&conv, msg, now)
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET participants=$2, last_message=$3, unread_count=$4, updated_at=$5 WHERE id=$1`,
		conv.ID, conv.Participants, conv.LastMessage, conv.UnreadCount, conv.UpdatedAt); err != nil {
		return CreateResult{}, fmt.Errorf("update conversation: %w", err)
	}

	var stored models.Message
	err = tx.GetContext(ctx, &stored, `INSERT INTO messages (`+messageColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (idempotency_key) DO NOTHING
        RETURNING `+messageColumns,
		msg.ID, msg.IdempotencyKey, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.GroupID,
		msg.Content, msg.Type, msg.Timestamp, msg.Status, msg.ReplyTo, msg.Reactions,
		msg.IsEdited, msg.EditedAt, msg.IsDeleted, msg.DeletedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows) && msg.IdempotencyKey != nil:
		// a concurrent request with the same key won the insert
		_ = tx.Rollback()
		res, _, err := r.replay(ctx, *msg.IdempotencyKey)
		return res, err
	case isUniqueViolation(err):
		return CreateResult{}, ErrMessageExists
	case err != nil:
		return CreateResult{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CreateResult{}, fmt.Errorf("commit: %w", err)
	}
	return CreateResult{Message: stored, Conversation: conv}, nil
}

func (r *MessageRepo) replay(ctx context.Context, key string) (CreateResult, bool, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE idempotency_key=$1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return CreateResult{}, false, nil
	}
	if err != nil {
		return CreateResult{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	res := CreateResult{Message: msg, Replayed: true}
	if err := r.db.GetContext(ctx, &res.Conversation, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, msg.ConversationID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return CreateResult{}, false, fmt.Errorf("load conversation: %w", err)
	}
	return res, true, nil
}

var messageSorts = map[string]string{
	"":          "timestamp",
	"timestamp": "timestamp",
	"id":        "id",
	"status":    "status",
}

// List returns messages matching f, oldest first unless f.Desc.
func (r *MessageRepo) List(ctx context.Context, f MessageFilter) ([]models.Message, error) {
	var q query
	if f.SenderID != "" {
		q.and("sender_id = " + q.arg(f.SenderID))
	}
	if f.ReceiverID != "" {
		q.and("receiver_id = " + q.arg(f.ReceiverID))
	}
	if f.GroupID != "" {
		q.and("group_id = " + q.arg(f.GroupID))
	}
	if f.ConversationID != "" {
		q.and("conversation_id = " + q.arg(f.ConversationID))
	}
	column, ok := messageSorts[f.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidFilter, f.Sort)
	}
	sqlText := q.build(`SELECT `+messageColumns+` FROM messages`, order(f.Desc, column, "id"), f.Page)

	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, sqlText, q.args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, id string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Patch updates the mutable fields of a message. When the message is the
// conversation's last message its preview is refreshed, and a transition to
// read lowers the receiver's unread count. The conversation is returned when
// it changed.
func (r *MessageRepo) Patch(ctx context.Context, id string, p models.MessagePatch) (models.Message, *models.Conversation, error) {
	if p.Status != nil && !p.Status.Valid() {
		return models.Message{}, nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, *p.Status)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var before models.Message
	err = tx.GetContext(ctx, &before, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, nil, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, nil, fmt.Errorf("lock message: %w", err)
	}
	if p.Empty() {
		return before, nil, nil
	}

	var q query
	var set []string
	if p.Status != nil {
		set = append(set, "status = "+q.arg(*p.Status))
	}
	if p.Content != nil {
		set = append(set, "content = "+q.arg(*p.Content))
	}
	if p.IsEdited != nil {
		set = append(set, "is_edited = "+q.arg(*p.IsEdited))
	}
	if p.EditedAt != nil {
		set = append(set, "edited_at = "+q.arg(*p.EditedAt))
	}
	if p.IsDeleted != nil {
		set = append(set, "is_deleted = "+q.arg(*p.IsDeleted))
	}
	if p.DeletedAt != nil {
		set = append(set, "deleted_at = "+q.arg(*p.DeletedAt))
	}
	if p.Reactions != nil {
		set = append(set, "reactions = "+q.arg(*p.Reactions))
	}
	sqlText := `UPDATE messages SET ` + joinSet(set) + ` WHERE id = ` + q.arg(id) + ` RETURNING ` + messageColumns

	var after models.Message
	if err := tx.GetContext(ctx, &after, sqlText, q.args...); err != nil {
		return models.Message{}, nil, fmt.Errorf("update message: %w", err)
	}

	conv, err := r.touchConversation(ctx, tx, before, after)
	if err != nil {
		return models.Message{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, nil, fmt.Errorf("commit: %w", err)
	}
	return after, conv, nil
}

func (r *MessageRepo) touchConversation(ctx context.Context, tx *sqlx.Tx, before, after models.Message) (*models.Conversation, error) {
	becameRead := before.Status != models.StatusRead && after.Status == models.StatusRead && after.Receiver() != ""

	var conv models.Conversation
	err := tx.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1 FOR UPDATE`, after.ConversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}

	changed := false
	if conv.LastMessage != nil && conv.LastMessage.ID == after.ID {
		conv.LastMessage = after.Preview()
		changed = true
	}
	if becameRead && conv.UnreadCount[after.Receiver()] > 0 {
		conv.UnreadCount[after.Receiver()]--
		changed = true
	}
	if !changed {
		return nil, nil
	}
	conv.UpdatedAt = r.now()
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message=$2, unread_count=$3, updated_at=$4 WHERE id=$1`,
		conv.ID, conv.LastMessage, conv.UnreadCount, conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return &conv, nil
}

// Delete marks a message deleted for everyone. The row is kept with
// placeholder content, and the conversation preview follows when the message
// is the last one.
func (r *MessageRepo) Delete(ctx context.Context, id string) (models.Message, *models.Conversation, error) {
	now := r.now()
	deleted := true
	placeholder := models.DeletedPlaceholder
	return r.Patch(ctx, id, models.MessagePatch{Content: &placeholder, IsDeleted: &deleted, DeletedAt: &now})
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

