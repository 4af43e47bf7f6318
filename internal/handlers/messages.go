package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
)

// IdempotencyHeader carries the client-chosen key that makes POST /messages retry-safe.
const IdempotencyHeader = "Idempotency-Key"

// Broadcaster pushes events to connected users.
type Broadcaster interface {
	BroadcastToUsers(userIDs []string, ev models.ChatEvent)
}

// Publisher forwards events to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// MessageHandler serves /messages.
type MessageHandler struct {
	messages  repositories.MessageRepository
	resources repositories.ResourceRepository
	hub       Broadcaster
	publisher Publisher
	audit     *telemetry.AuditEmitter
	now       func() time.Time
}

func NewMessageHandler(messages repositories.MessageRepository, resources repositories.ResourceRepository, hub Broadcaster, publisher Publisher, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		resources: resources,
		hub:       hub,
		publisher: publisher,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a message. A repeated Idempotency-Key answers 200 with the
// original record instead of 201.
func (h *MessageHandler) Create(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if key := strings.TrimSpace(c.GetHeader(IdempotencyHeader)); key != "" {
		msg.IdempotencyKey = &key
	}
	if reason := h.prepare(&msg); reason != "" {
		badRequest(c, reason)
		return
	}

	res, err := h.messages.Create(c.Request.Context(), msg)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Replayed {
		observability.IncIdempotentReplay()
		logger.Info("idempotent replay", zap.String("message_id", res.Message.ID), zap.String("request_id", requestIDFromContext(c)))
		c.JSON(http.StatusOK, res.Message)
		return
	}

	kind := "direct"
	if res.Message.IsGroup() {
		kind = "group"
	}
	observability.IncMessageCreated(kind)

	stored := res.Message
	conv := res.Conversation
	recipients := h.recipients(c.Request.Context(), stored, &conv)
	h.notify(c, recipients, rabbitmq.KeyMessageCreated, models.ChatEvent{
		Type:           models.EventMessageCreated,
		Message:        &stored,
		ConversationID: stored.ConversationID,
	})
	h.notify(c, recipients, rabbitmq.KeyConversation, models.ChatEvent{
		Type:           models.EventConversationUpdated,
		Conversation:   &conv,
		ConversationID: conv.ID,
	})
	h.audit.Write(c.Request.Context(), "messages", stored.ID, "created", requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusCreated, stored)
}

// prepare fills defaults and returns a non-empty reason when msg is invalid.
func (h *MessageHandler) prepare(msg *models.Message) string {
	if strings.TrimSpace(msg.SenderID) == "" {
		return "senderId is required"
	}
	if (msg.Receiver() == "") == (msg.Group() == "") {
		return "exactly one of receiverId and groupId is required"
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "content is required"
	}
	if msg.Type == "" {
		msg.Type = models.TypeText
	}
	if !msg.Type.Valid() {
		return "invalid type"
	}
	if msg.Status == "" {
		msg.Status = models.StatusSent
	}
	if !msg.Status.Valid() {
		return "invalid status"
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now()
	}
	if msg.IdempotencyKey != nil && *msg.IdempotencyKey == "" {
		msg.IdempotencyKey = nil
	}
	return ""
}

// List answers GET /messages with the senderId, receiverId, groupId and
// conversationId filters plus paging.
func (h *MessageHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	list, err := h.messages.List(c.Request.Context(), repositories.MessageFilter{
		SenderID:       c.Query("senderId"),
		ReceiverID:     c.Query("receiverId"),
		GroupID:        c.Query("groupId"),
		ConversationID: c.Query("conversationId"),
		Page:           page,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Patch applies a partial update (status, edit, soft delete, reactions).
func (h *MessageHandler) Patch(c *gin.Context) {
	var patch models.MessagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if patch.Empty() {
		badRequest(c, "nothing to update")
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	msg, conv, err := h.messages.Patch(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	recipients := h.recipients(c.Request.Context(), msg, conv)
	h.notify(c, recipients, rabbitmq.KeyMessageUpdated, models.ChatEvent{
		Type:           models.EventMessageUpdated,
		Message:        &msg,
		ConversationID: msg.ConversationID,
	})
	if conv != nil {
		h.notify(c, recipients, rabbitmq.KeyConversation, models.ChatEvent{
			Type:           models.EventConversationUpdated,
			Conversation:   conv,
			ConversationID: conv.ID,
		})
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	msg, conv, err := h.messages.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	recipients := h.recipients(c.Request.Context(), msg, conv)
	h.notify(c, recipients, rabbitmq.KeyMessageDeleted, models.ChatEvent{
		Type:           models.EventMessageDeleted,
		Message:        &msg,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	if conv != nil {
		h.notify(c, recipients, rabbitmq.KeyConversation, models.ChatEvent{
			Type:           models.EventConversationUpdated,
			Conversation:   conv,
			ConversationID: conv.ID,
		})
	}
	h.audit.Write(c.Request.Context(), "messages", msg.ID, "deleted", requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, msg)
}

// recipients lists the users who should see a change to msg: both ends of a
// direct conversation, or every member of the group.
func (h *MessageHandler) recipients(ctx context.Context, msg models.Message, conv *models.Conversation) []string {
	if !msg.IsGroup() {
		return []string{msg.SenderID, msg.Receiver()}
	}

	ids := []string{msg.SenderID}
	if conv != nil {
		ids = append(ids, conv.Participants...)
	}
	if h.resources == nil {
		return ids
	}
	raw, err := h.resources.Get(ctx, "groups", msg.Group())
	if err != nil {
		logger.Warn("load group members", zap.String("group_id", msg.Group()), zap.Error(err))
		return ids
	}
	var g models.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		logger.Warn("decode group", zap.String("group_id", msg.Group()), zap.Error(err))
		return ids
	}
	return append(ids, g.Members...)
}

func (h *MessageHandler) notify(c *gin.Context, userIDs []string, routingKey string, ev models.ChatEvent) {
	if h.hub != nil {
		h.hub.BroadcastToUsers(userIDs, ev)
	}
	if h.publisher != nil {
		_ = h.publisher.Publish(c.Request.Context(), routingKey, ev)
	}
}
