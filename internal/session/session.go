// Package session persists the logged-in user between CLI runs and tracks
// the chat the user is currently looking at.
package session

import (
	"context"
	"errors"

	"chat-client/internal/models"
)

const (
	KeyPrefix      = "whatsapp_"
	KeyCurrentUser = KeyPrefix + "currentUser"
	KeyAuthToken   = KeyPrefix + "authToken"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// Session is what survives a restart.
type Session struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// Store persists a Session under the fixed keys.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}
