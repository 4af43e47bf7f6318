package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
)

type MessagesMock struct {
	mock.Mock
}

func messagesArg(args mock.Arguments) []models.Message {
	if val := args.Get(0); val != nil {
		return val.([]models.Message)
	}
	return nil
}

func (m *MessagesMock) Send(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessagesMock) FetchBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	args := m.Called(ctx, a, b)
	return messagesArg(args), args.Error(1)
}

func (m *MessagesMock) FetchGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	return messagesArg(args), args.Error(1)
}

func (m *MessagesMock) MarkRead(ctx context.Context, id string) (models.Message, error) {
	args := m.Called(ctx, id)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessagesMock) SentBy(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	return messagesArg(args), args.Error(1)
}

func (m *MessagesMock) ReceivedBy(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	return messagesArg(args), args.Error(1)
}

func (m *MessagesMock) ByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	return messagesArg(args), args.Error(1)
}

type DiscussionsMock struct {
	mock.Mock
}

func discussionsArg(args mock.Arguments) []models.Discussion {
	if val := args.Get(0); val != nil {
		return val.([]models.Discussion)
	}
	return nil
}

func (m *DiscussionsMock) Upsert(ctx context.Context, d models.Discussion) (models.Discussion, error) {
	args := m.Called(ctx, d)
	var out models.Discussion
	if val := args.Get(0); val != nil {
		out = val.(models.Discussion)
	}
	return out, args.Error(1)
}

func (m *DiscussionsMock) ListForUser(ctx context.Context, userID string) ([]models.Discussion, error) {
	args := m.Called(ctx, userID)
	return discussionsArg(args), args.Error(1)
}

func (m *DiscussionsMock) ListArchived(ctx context.Context, userID string) ([]models.Discussion, error) {
	args := m.Called(ctx, userID)
	return discussionsArg(args), args.Error(1)
}

func (m *DiscussionsMock) MarkRead(ctx context.Context, id string) (models.Discussion, error) {
	args := m.Called(ctx, id)
	var out models.Discussion
	if val := args.Get(0); val != nil {
		out = val.(models.Discussion)
	}
	return out, args.Error(1)
}

type GroupsMock struct {
	mock.Mock
}

func (m *GroupsMock) GroupIDsFor(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) GetUser(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *DirectoryMock) GetGroup(ctx context.Context, id string) (models.Group, error) {
	args := m.Called(ctx, id)
	var out models.Group
	if val := args.Get(0); val != nil {
		out = val.(models.Group)
	}
	return out, args.Error(1)
}
