package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
)

// ConversationHandler serves /conversations.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	hub           Broadcaster
	publisher     Publisher
}

func NewConversationHandler(conversations repositories.ConversationRepository, hub Broadcaster, publisher Publisher) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, hub: hub, publisher: publisher}
}

// List answers GET /conversations?participants_like=&type= with paging.
func (h *ConversationHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	kind := models.ConversationType(c.Query("type"))
	if kind != "" && kind != models.ConversationPrivate && kind != models.ConversationGroup {
		badRequest(c, "invalid type")
		return
	}
	list, err := h.conversations.List(c.Request.Context(), repositories.ConversationFilter{
		ParticipantLike: c.Query("participants_like"),
		Type:            kind,
		Page:            page,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.Conversation{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Patch(c *gin.Context) {
	var patch models.ConversationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid json")
		return
	}
	conv, err := h.conversations.Patch(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	h.notify(c, conv, models.ChatEvent{Type: models.EventConversationUpdated, Conversation: &conv, ConversationID: conv.ID})
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conv, err := h.conversations.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.notify(c, conv, models.ChatEvent{Type: models.EventConversationDeleted, ConversationID: conv.ID})
	c.JSON(http.StatusOK, gin.H{})
}

func (h *ConversationHandler) notify(c *gin.Context, conv models.Conversation, ev models.ChatEvent) {
	if h.hub != nil {
		h.hub.BroadcastToUsers(conv.Participants, ev)
	}
	if h.publisher != nil {
		_ = h.publisher.Publish(c.Request.Context(), rabbitmq.KeyConversation, ev)
	}
}
