package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (repositories.CreateResult, error) {
	args := m.Called(ctx, msg)
	var res repositories.CreateResult
	if val := args.Get(0); val != nil {
		res = val.(repositories.CreateResult)
	}
	return res, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, f repositories.MessageFilter) ([]models.Message, error) {
	args := m.Called(ctx, f)
	return messagesArg(args), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, id string) (models.Message, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Patch(ctx context.Context, id string, p models.MessagePatch) (models.Message, *models.Conversation, error) {
	args := m.Called(ctx, id, p)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	var conv *models.Conversation
	if val := args.Get(1); val != nil {
		conv = val.(*models.Conversation)
	}
	return msg, conv, args.Error(2)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, id string) (models.Message, *models.Conversation, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	var conv *models.Conversation
	if val := args.Get(1); val != nil {
		conv = val.(*models.Conversation)
	}
	return msg, conv, args.Error(2)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func conversationArg(args mock.Arguments) models.Conversation {
	if val := args.Get(0); val != nil {
		return val.(models.Conversation)
	}
	return models.Conversation{}
}

func (m *ConversationRepositoryMock) List(ctx context.Context, f repositories.ConversationFilter) ([]models.Conversation, error) {
	args := m.Called(ctx, f)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, id string) (models.Conversation, error) {
	args := m.Called(ctx, id)
	return conversationArg(args), args.Error(1)
}

func (m *ConversationRepositoryMock) Patch(ctx context.Context, id string, p models.ConversationPatch) (models.Conversation, error) {
	args := m.Called(ctx, id, p)
	return conversationArg(args), args.Error(1)
}

func (m *ConversationRepositoryMock) Delete(ctx context.Context, id string) (models.Conversation, error) {
	args := m.Called(ctx, id)
	return conversationArg(args), args.Error(1)
}

type ResourceRepositoryMock struct {
	mock.Mock
}

func rawArg(args mock.Arguments) json.RawMessage {
	if val := args.Get(0); val != nil {
		return val.(json.RawMessage)
	}
	return nil
}

func (m *ResourceRepositoryMock) List(ctx context.Context, collection string, f repositories.ResourceFilter) ([]json.RawMessage, error) {
	args := m.Called(ctx, collection, f)
	var list []json.RawMessage
	if val := args.Get(0); val != nil {
		list = val.([]json.RawMessage)
	}
	return list, args.Error(1)
}

func (m *ResourceRepositoryMock) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	args := m.Called(ctx, collection, id)
	return rawArg(args), args.Error(1)
}

func (m *ResourceRepositoryMock) Create(ctx context.Context, collection string, body map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, collection, body)
	return rawArg(args), args.Error(1)
}

func (m *ResourceRepositoryMock) Replace(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, collection, id, body)
	return rawArg(args), args.Error(1)
}

func (m *ResourceRepositoryMock) Merge(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, collection, id, body)
	return rawArg(args), args.Error(1)
}

func (m *ResourceRepositoryMock) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastToUsers(userIDs []string, ev models.ChatEvent) {
	m.Called(userIDs, ev)
}
