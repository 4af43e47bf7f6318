package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/middleware"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
)

var (
	_ repositories.MessageRepository      = (*mocks.MessageRepositoryMock)(nil)
	_ repositories.ConversationRepository = (*mocks.ConversationRepositoryMock)(nil)
	_ repositories.ResourceRepository     = (*mocks.ResourceRepositoryMock)(nil)
	_ Broadcaster                         = (*mocks.BroadcasterMock)(nil)
	_ Publisher                           = (*mocks.PublisherMock)(nil)
)

type fixture struct {
	messages      *mocks.MessageRepositoryMock
	conversations *mocks.ConversationRepositoryMock
	resources     *mocks.ResourceRepositoryMock
	hub           *mocks.BroadcasterMock
	publisher     *mocks.PublisherMock
	router        *gin.Engine
}

func setupRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		messages:      new(mocks.MessageRepositoryMock),
		conversations: new(mocks.ConversationRepositoryMock),
		resources:     new(mocks.ResourceRepositoryMock),
		hub:           new(mocks.BroadcasterMock),
		publisher:     new(mocks.PublisherMock),
	}
	msgs := NewMessageHandler(f.messages, f.resources, f.hub, f.publisher, nil)
	msgs.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	convs := NewConversationHandler(f.conversations, f.hub, f.publisher)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	r.GET("/messages", msgs.List)
	r.POST("/messages", msgs.Create)
	r.GET("/messages/:id", msgs.Get)
	r.PATCH("/messages/:id", msgs.Patch)
	r.DELETE("/messages/:id", msgs.Delete)
	r.GET("/conversations", convs.List)
	r.PATCH("/conversations/:id", convs.Patch)
	r.DELETE("/conversations/:id", convs.Delete)
	NewResourceHandler(f.resources, nil).Register(r)
	f.router = r

	t.Cleanup(func() {
		f.messages.AssertExpectations(t)
		f.conversations.AssertExpectations(t)
		f.resources.AssertExpectations(t)
		f.hub.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func TestCreateMessageFirstWriteThenReplay(t *testing.T) {
	f := setupRouter(t)
	stored := models.Message{ID: "m1", SenderID: "a", ReceiverID: strPtr("b"), Content: "hi", Type: models.TypeText,
		Status: models.StatusSent, ConversationID: "direct:a:b", IdempotencyKey: strPtr("k1")}
	conv := models.Conversation{ID: "direct:a:b", Participants: []string{"a", "b"}}

	keyed := mock.MatchedBy(func(m models.Message) bool {
		return m.IdempotencyKey != nil && *m.IdempotencyKey == "k1" && m.Type == models.TypeText && m.Status == models.StatusSent
	})
	f.messages.On("Create", mock.Anything, keyed).Return(repositories.CreateResult{Message: stored, Conversation: conv}, nil).Once()
	f.messages.On("Create", mock.Anything, keyed).Return(repositories.CreateResult{Message: stored, Conversation: conv, Replayed: true}, nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, mock.MatchedBy(func(ev models.ChatEvent) bool { return ev.Type == models.EventMessageCreated })).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, mock.MatchedBy(func(ev models.ChatEvent) bool { return ev.Type == models.EventConversationUpdated })).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyMessageCreated, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyConversation, mock.Anything).Return(nil).Once()

	body := `{"id":"m1","senderId":"a","receiverId":"b","content":"hi"}`
	headers := map[string]string{IdempotencyHeader: "k1"}

	rec := f.do(http.MethodPost, "/messages", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/messages", body, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.ID)
}

func TestCreateMessageValidation(t *testing.T) {
	f := setupRouter(t)
	cases := map[string]string{
		"no sender":      `{"receiverId":"b","content":"hi"}`,
		"no recipient":   `{"senderId":"a","content":"hi"}`,
		"two recipients": `{"senderId":"a","receiverId":"b","groupId":"g","content":"hi"}`,
		"blank content":  `{"senderId":"a","receiverId":"b","content":"   "}`,
		"bad type":       `{"senderId":"a","receiverId":"b","content":"hi","type":"sticker"}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/messages", body, nil).Code)
		})
	}
}

func TestCreateGroupMessageNotifiesMembers(t *testing.T) {
	f := setupRouter(t)
	stored := models.Message{ID: "m2", SenderID: "a", GroupID: strPtr("g1"), Content: "yo", ConversationID: "group:g1"}
	conv := models.Conversation{ID: "group:g1", Participants: []string{"a"}}

	f.messages.On("Create", mock.Anything, mock.Anything).Return(repositories.CreateResult{Message: stored, Conversation: conv}, nil).Once()
	f.resources.On("Get", mock.Anything, "groups", "g1").Return(json.RawMessage(`{"id":"g1","members":["a","b","c"]}`), nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "a", "a", "b", "c"}, mock.Anything).Twice()
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	rec := f.do(http.MethodPost, "/messages", `{"senderId":"a","groupId":"g1","content":"yo"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListMessagesPassesFilters(t *testing.T) {
	f := setupRouter(t)
	want := repositories.MessageFilter{SenderID: "a", ReceiverID: "b",
		Page: repositories.Page{Start: 20, Limit: 10, Sort: "timestamp", Desc: true}}
	f.messages.On("List", mock.Anything, want).Return([]models.Message(nil), nil).Once()

	rec := f.do(http.MethodGet, "/messages?senderId=a&receiverId=b&_sort=timestamp&_order=desc&_start=20&_limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListMessagesBadPage(t *testing.T) {
	f := setupRouter(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/messages?_limit=x", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/messages?_order=up", "", nil).Code)
}

func TestGetMessageNotFound(t *testing.T) {
	f := setupRouter(t)
	f.messages.On("Get", mock.Anything, "nope").Return(nil, repositories.ErrMessageNotFound).Once()
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/messages/nope", "", nil).Code)
}

func TestPatchMessageStatus(t *testing.T) {
	f := setupRouter(t)
	read := models.StatusRead
	msg := models.Message{ID: "m1", SenderID: "a", ReceiverID: strPtr("b"), Status: read, ConversationID: "direct:a:b"}
	conv := &models.Conversation{ID: "direct:a:b", Participants: []string{"a", "b"}}
	f.messages.On("Patch", mock.Anything, "m1", models.MessagePatch{Status: &read}).Return(msg, conv, nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, mock.Anything).Twice()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyMessageUpdated, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyConversation, mock.Anything).Return(nil).Once()

	rec := f.do(http.MethodPatch, "/messages/m1", `{"status":"read"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPatchMessageRejectsEmptyAndBadStatus(t *testing.T) {
	f := setupRouter(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/messages/m1", `{}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/messages/m1", `{"status":"gone"}`, nil).Code)
}

func TestDeleteMessageBroadcastsTombstone(t *testing.T) {
	f := setupRouter(t)
	msg := models.Message{ID: "m1", SenderID: "a", ReceiverID: strPtr("b"), ConversationID: "direct:a:b",
		Content: models.DeletedPlaceholder, IsDeleted: true}
	f.messages.On("Delete", mock.Anything, "m1").Return(msg, nil, nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, models.ChatEvent{Type: models.EventMessageDeleted, Message: &msg, MessageID: "m1", ConversationID: "direct:a:b"}).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyMessageDeleted, mock.Anything).Return(nil).Once()

	rec := f.do(http.MethodDelete, "/messages/m1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), models.DeletedPlaceholder)
}

func TestDeleteLastMessageUpdatesConversation(t *testing.T) {
	f := setupRouter(t)
	msg := models.Message{ID: "m1", SenderID: "a", ReceiverID: strPtr("b"), ConversationID: "direct:a:b",
		Content: models.DeletedPlaceholder, IsDeleted: true}
	conv := &models.Conversation{ID: "direct:a:b", Participants: []string{"a", "b"}, LastMessage: msg.Preview()}
	f.messages.On("Delete", mock.Anything, "m1").Return(msg, conv, nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, mock.Anything).Twice()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyMessageDeleted, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyConversation, mock.Anything).Return(nil).Once()

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/messages/m1", "", nil).Code)
}

func TestListConversations(t *testing.T) {
	f := setupRouter(t)
	want := repositories.ConversationFilter{ParticipantLike: "a", Page: repositories.Page{Sort: "updatedAt", Desc: true}}
	f.conversations.On("List", mock.Anything, want).Return([]models.Conversation{{ID: "direct:a:b"}}, nil).Once()

	rec := f.do(http.MethodGet, "/conversations?participants_like=a&_sort=updatedAt&_order=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "direct:a:b", got[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/conversations?type=channel", "", nil).Code)
}

func TestPatchConversationNotifiesParticipants(t *testing.T) {
	f := setupRouter(t)
	conv := models.Conversation{ID: "direct:a:b", Participants: []string{"a", "b"}}
	f.conversations.On("Patch", mock.Anything, "direct:a:b", models.ConversationPatch{ClearLastMessage: true}).Return(conv, nil).Once()
	f.hub.On("BroadcastToUsers", []string{"a", "b"}, mock.Anything).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.KeyConversation, mock.Anything).Return(nil).Once()

	assert.Equal(t, http.StatusOK, f.do(http.MethodPatch, "/conversations/direct:a:b", `{"clearLastMessage":true}`, nil).Code)
}

func TestResourceListBuildsFilters(t *testing.T) {
	f := setupRouter(t)
	want := repositories.ResourceFilter{
		Equals: map[string]string{"phone": "+33600000000"},
		Like:   map[string]string{"participants": "u1"},
		Page:   repositories.Page{Limit: 5},
	}
	f.resources.On("List", mock.Anything, "users", want).Return([]json.RawMessage{json.RawMessage(`{"id":"u1"}`)}, nil).Once()

	rec := f.do(http.MethodGet, "/users?phone=%2B33600000000&participants_like=u1&_limit=5&user_id=me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"u1"}]`, rec.Body.String())
}

func TestResourceCreateConflictAndMerge(t *testing.T) {
	f := setupRouter(t)
	f.resources.On("Create", mock.Anything, "contacts", map[string]any{"id": "c1"}).Return(nil, repositories.ErrResourceExists).Once()
	f.resources.On("Merge", mock.Anything, "contacts", "c1", map[string]any{"isFavorite": true}).Return(json.RawMessage(`{"id":"c1","isFavorite":true}`), nil).Once()

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/contacts", `{"id":"c1"}`, nil).Code)

	rec := f.do(http.MethodPatch, "/contacts/c1", `{"isFavorite":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"c1","isFavorite":true}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/contacts/c1", `[1]`, nil).Code)
}

func TestResourceDeleteNotFound(t *testing.T) {
	f := setupRouter(t)
	f.resources.On("Delete", mock.Anything, "groups", "g9").Return(repositories.ErrResourceNotFound).Once()
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/groups/g9", "", nil).Code)
}
