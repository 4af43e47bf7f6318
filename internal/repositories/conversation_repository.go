package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-client/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationFilter narrows List.
type ConversationFilter struct {
	// ParticipantLike matches any participant containing the value.
	ParticipantLike string
	Type            models.ConversationType
	Page
}

// ConversationRepository exposes the canonical conversation records.
type ConversationRepository interface {
	List(ctx context.Context, f ConversationFilter) ([]models.Conversation, error)
	Get(ctx context.Context, id string) (models.Conversation, error)
	Patch(ctx context.Context, id string, p models.ConversationPatch) (models.Conversation, error)
	Delete(ctx context.Context, id string) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewConversationRepo constructs ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var conversationSorts = map[string]string{
	"":          "updated_at",
	"updatedAt": "updated_at",
	"createdAt": "created_at",
	"id":        "id",
}

// List returns matching conversations, most recently updated first by default.
func (r *ConversationRepo) List(ctx context.Context, f ConversationFilter) ([]models.Conversation, error) {
	var q query
	if f.ParticipantLike != "" {
		q.and("EXISTS (SELECT 1 FROM unnest(participants) AS p WHERE p ILIKE '%' || " + q.arg(f.ParticipantLike) + " || '%')")
	}
	if f.Type != "" {
		q.and("type = " + q.arg(f.Type))
	}
	column, ok := conversationSorts[f.Sort]
	if !ok {
		return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidFilter, f.Sort)
	}
	desc := f.Desc || f.Sort == ""
	sqlText := q.build(`SELECT `+conversationColumns+` FROM conversations`, order(desc, column), f.Page)

	convs := []models.Conversation{}
	if err := r.db.SelectContext(ctx, &convs, sqlText, q.args...); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Get retrieves one conversation.
func (r *ConversationRepo) Get(ctx context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Patch updates unread counts, mute state, or clears the last message.
func (r *ConversationRepo) Patch(ctx context.Context, id string, p models.ConversationPatch) (models.Conversation, error) {
	var q query
	set := []string{"updated_at = " + q.arg(r.now())}
	if p.UnreadCount != nil {
		set = append(set, "unread_count = "+q.arg(*p.UnreadCount))
	}
	if p.MutedUntil != nil {
		set = append(set, "muted_until = "+q.arg(*p.MutedUntil))
	}
	if p.ClearLastMessage {
		set = append(set, "last_message = NULL")
	}
	sqlText := `UPDATE conversations SET ` + joinSet(set) + ` WHERE id = ` + q.arg(id) + ` RETURNING ` + conversationColumns

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, sqlText, q.args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("update conversation: %w", err)
	}
	return conv, nil
}

// Delete removes the conversation; its messages go with it.
func (r *ConversationRepo) Delete(ctx context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `DELETE FROM conversations WHERE id=$1 RETURNING `+conversationColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("delete conversation: %w", err)
	}
	return conv, nil
}
