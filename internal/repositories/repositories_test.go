package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

var fixed = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

var (
	msgCols  = []string{"id", "idempotency_key", "conversation_id", "sender_id", "receiver_id", "group_id", "content", "type", "timestamp", "status", "reply_to", "reactions", "is_edited", "edited_at", "is_deleted", "deleted_at"}
	convCols = []string{"id", "type", "group_id", "participants", "last_message", "unread_count", "muted_until", "created_at", "updated_at"}
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func strPtr(s string) *string { return &s }

func TestMessageRepo_CreateUpsertsConversation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)
	repo.now = func() time.Time { return fixed }

	msg := models.Message{
		ID: "m1", IdempotencyKey: strPtr("k1"), SenderID: "A", ReceiverID: strPtr("B"),
		Content: "hi", Type: models.TypeText, Timestamp: fixed, Status: models.StatusSent,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE idempotency_key=$1`)).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows(msgCols))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversations`)).
		WithArgs("direct:A:B", models.ConversationPrivate, nil, sqlmock.AnyArg(), "{}", fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE id=$1 FOR UPDATE`)).
		WithArgs("direct:A:B").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("direct:A:B", "private", nil, "{A,B}", nil, "{}", nil, fixed, fixed))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE conversations SET participants=$2, last_message=$3, unread_count=$4, updated_at=$5 WHERE id=$1`)).
		WithArgs("direct:A:B", sqlmock.AnyArg(), sqlmock.AnyArg(), `{"B":1}`, fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages`)).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "k1", "direct:A:B", "A", "B", nil, "hi", "text", fixed, "sent", nil, "{}", false, nil, false, nil))
	mock.ExpectCommit()

	res, err := repo.Create(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, "m1", res.Message.ID)
	assert.Equal(t, "direct:A:B", res.Message.ConversationID)
	assert.Equal(t, models.UnreadCounts{"B": 1}, res.Conversation.UnreadCount)
	require.NotNil(t, res.Conversation.LastMessage)
	assert.Equal(t, "m1", res.Conversation.LastMessage.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_CreateReplaysIdempotencyKey(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE idempotency_key=$1`)).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "k1", "direct:A:B", "A", "B", nil, "hi", "text", fixed, "sent", nil, "{}", false, nil, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE id=$1`)).
		WithArgs("direct:A:B").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("direct:A:B", "private", nil, "{A,B}", nil, `{"B":1}`, nil, fixed, fixed))

	res, err := repo.Create(context.Background(), models.Message{
		ID: "other-id", IdempotencyKey: strPtr("k1"), SenderID: "A", ReceiverID: strPtr("B"), Content: "hi",
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, "m1", res.Message.ID, "original record is returned")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_ListBuildsFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+messageColumns+` FROM messages WHERE sender_id = $1 AND receiver_id = $2 ORDER BY timestamp DESC, id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("A", "B", 10, 20).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m2", nil, "direct:A:B", "A", "B", nil, "yo", "text", fixed, "read", nil, `{"👍":["B"]}`, false, nil, false, nil))

	msgs, err := repo.List(context.Background(), MessageFilter{
		SenderID: "A", ReceiverID: "B",
		Page: Page{Start: 20, Limit: 10, Sort: "timestamp", Desc: true},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].IdempotencyKey)
	assert.Equal(t, []string{"B"}, msgs[0].Reactions["👍"])
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.List(context.Background(), MessageFilter{Page: Page{Sort: "content; DROP"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestMessageRepo_GetNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(msgCols))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageRepo_PatchStatusOnly(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)
	repo.now = func() time.Time { return fixed }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1 FOR UPDATE`)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", nil, "direct:A:B", "A", "B", nil, "hi", "text", fixed, "sent", nil, "{}", false, nil, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE messages SET status = $1 WHERE id = $2 RETURNING`)).
		WithArgs("read", "m1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", nil, "direct:A:B", "A", "B", nil, "hi", "text", fixed, "read", nil, "{}", false, nil, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE id=$1 FOR UPDATE`)).
		WithArgs("direct:A:B").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("direct:A:B", "private", nil, "{A,B}", `{"id":"m1","content":"hi","senderId":"A","timestamp":"2024-03-10T12:00:00Z","type":"text","status":"sent"}`, `{"B":1}`, nil, fixed, fixed))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE conversations SET last_message=$2, unread_count=$3, updated_at=$4 WHERE id=$1`)).
		WithArgs("direct:A:B", sqlmock.AnyArg(), `{"B":0}`, fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	read := models.StatusRead
	msg, conv, err := repo.Patch(context.Background(), "m1", models.MessagePatch{Status: &read})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, msg.Status)
	assert.Equal(t, "hi", msg.Content)
	require.NotNil(t, conv)
	assert.Equal(t, models.StatusRead, conv.LastMessage.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_DeleteKeepsRowAndRefreshesPreview(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)
	repo.now = func() time.Time { return fixed }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1 FOR UPDATE`)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", nil, "direct:A:B", "A", "B", nil, "hi", "text", fixed, "sent", nil, "{}", false, nil, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE messages SET content = $1, is_deleted = $2, deleted_at = $3 WHERE id = $4 RETURNING`)).
		WithArgs(models.DeletedPlaceholder, true, fixed, "m1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", nil, "direct:A:B", "A", "B", nil, models.DeletedPlaceholder, "text", fixed, "sent", nil, "{}", false, nil, true, fixed))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE id=$1 FOR UPDATE`)).
		WithArgs("direct:A:B").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("direct:A:B", "private", nil, "{A,B}", `{"id":"m1","content":"hi","senderId":"A","timestamp":"2024-03-10T12:00:00Z","type":"text","status":"sent"}`, `{"B":1}`, nil, fixed, fixed))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE conversations SET last_message=$2, unread_count=$3, updated_at=$4 WHERE id=$1`)).
		WithArgs("direct:A:B", sqlmock.AnyArg(), `{"B":1}`, fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, conv, err := repo.Delete(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, msg.Content)
	require.NotNil(t, conv)
	assert.Equal(t, "m1", conv.LastMessage.ID)
	assert.Equal(t, models.DeletedPlaceholder, conv.LastMessage.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_DeleteNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1 FOR UPDATE`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(msgCols))
	mock.ExpectRollback()

	_, _, err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_ListByParticipant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE EXISTS (SELECT 1 FROM unnest(participants) AS p WHERE p ILIKE '%' || $1 || '%') ORDER BY updated_at DESC`)).
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("direct:A:B", "private", nil, "{A,B}", nil, `{"A":2}`, nil, fixed, fixed))

	convs, err := repo.List(context.Background(), ConversationFilter{ParticipantLike: "A"})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, []string{"A", "B"}, []string(convs[0].Participants))
	assert.Equal(t, 2, convs[0].UnreadCount["A"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_PatchClearsLastMessage(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConversationRepo(db)
	repo.now = func() time.Time { return fixed }

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE conversations SET updated_at = $1, last_message = NULL WHERE id = $2 RETURNING`)).
		WithArgs(fixed, "group:g1").
		WillReturnRows(sqlmock.NewRows(convCols))

	_, err := repo.Patch(context.Background(), "group:g1", models.ConversationPatch{ClearLastMessage: true})
	assert.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepo_ListFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewResourceRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM resources WHERE collection = $1 AND body->>$2 = $3 AND body->>$4 = $5 AND (body->$6)::text ILIKE '%' || $7 || '%' ORDER BY body->>$8 ASC LIMIT $9`)).
		WithArgs("contacts", "isBlocked", "false", "userId", "u1", "name", "mo", "name", 5).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"id":"c1","name":"Moussa"}`)))

	out, err := repo.List(context.Background(), "contacts", ResourceFilter{
		Equals: map[string]string{"userId": "u1", "isBlocked": "false"},
		Like:   map[string]string{"name": "mo"},
		Page:   Page{Limit: 5, Sort: "name"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, `{"id":"c1","name":"Moussa"}`, string(out[0]))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.List(context.Background(), "contacts", ResourceFilter{Equals: map[string]string{"a'b": "x"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestResourceRepo_CreateConflictAndMerge(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewResourceRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO resources`)).
		WithArgs("users", "u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"body"}))
	_, err := repo.Create(context.Background(), "users", map[string]any{"id": "u1"})
	assert.ErrorIs(t, err, ErrResourceExists)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE resources SET body = body || $3::jsonb`)).
		WithArgs("users", "u1", `{"isOnline":true}`).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"id":"u1","isOnline":true}`)))
	out, err := repo.Merge(context.Background(), "users", "u1", map[string]any{"id": "ignored", "isOnline": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","isOnline":true}`, string(out))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM resources`)).
		WithArgs("users", "u9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "users", "u9"), ErrResourceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
