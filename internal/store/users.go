package store

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"chat-client/internal/models"
)

// DefaultStatus is the profile line given to new accounts.
const DefaultStatus = "Hey there! I am using WhatsApp."

// UserClient talks to /users.
type UserClient struct {
	c *Client
}

// Registration is the input to Register.
type Registration struct {
	FirstName string
	LastName  string
	Phone     string
}

// ProfileUpdate carries editable profile fields. Nil fields are left alone.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Status    *string `json:"status,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

// Get fetches a user by id.
func (u *UserClient) Get(ctx context.Context, id string) (models.User, error) {
	var out models.User
	if err := u.c.get(ctx, itemPath("users", id), nil, &out); err != nil {
		return models.User{}, errors.Wrapf(err, "get user %s", id)
	}
	return out, nil
}

// GetUser satisfies presenter.Directory.
func (u *UserClient) GetUser(ctx context.Context, id string) (models.User, error) {
	return u.Get(ctx, id)
}

// ByPhone returns the user registered under phone or ErrNotFound.
func (u *UserClient) ByPhone(ctx context.Context, phone string) (models.User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return models.User{}, err
	}
	var out []models.User
	if err := u.c.get(ctx, "/users", url.Values{"phone": {phone}}, &out); err != nil {
		return models.User{}, errors.Wrap(err, "lookup user by phone")
	}
	for _, user := range out {
		if user.Phone == phone {
			return user, nil
		}
	}
	return models.User{}, errors.Wrapf(ErrNotFound, "no user with phone %s", phone)
}

// Login finds the user by phone and marks them online.
func (u *UserClient) Login(ctx context.Context, phone string) (models.User, error) {
	user, err := u.ByPhone(ctx, phone)
	if err != nil {
		return models.User{}, err
	}
	return u.SetPresence(ctx, user.ID, true)
}

// Logout marks the user offline.
func (u *UserClient) Logout(ctx context.Context, id string) error {
	_, err := u.SetPresence(ctx, id, false)
	return err
}

// Register creates an account. A phone already in use yields ErrDuplicateRegistration.
func (u *UserClient) Register(ctx context.Context, r Registration) (models.User, error) {
	first, err := requireName("firstName", r.FirstName)
	if err != nil {
		return models.User{}, err
	}
	last, err := requireName("lastName", r.LastName)
	if err != nil {
		return models.User{}, err
	}
	phone, err := NormalizePhone(r.Phone)
	if err != nil {
		return models.User{}, err
	}

	if _, err := u.ByPhone(ctx, phone); err == nil {
		return models.User{}, ErrDuplicateRegistration
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	now := u.c.now()
	user := models.User{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  last,
		Phone:     phone,
		Status:    DefaultStatus,
		IsOnline:  true,
		LastSeen:  now,
		CreatedAt: now,
	}
	var out models.User
	if err := u.c.post(ctx, "/users", user, &out); err != nil {
		return models.User{}, errors.Wrap(err, "register user")
	}
	return out, nil
}

// UpdateProfile patches the editable profile fields.
func (u *UserClient) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (models.User, error) {
	if p.FirstName != nil {
		name, err := requireName("firstName", *p.FirstName)
		if err != nil {
			return models.User{}, err
		}
		p.FirstName = &name
	}
	if p.LastName != nil {
		name, err := requireName("lastName", *p.LastName)
		if err != nil {
			return models.User{}, err
		}
		p.LastName = &name
	}
	var out models.User
	if err := u.c.patch(ctx, itemPath("users", id), p, &out); err != nil {
		return models.User{}, errors.Wrapf(err, "update user %s", id)
	}
	return out, nil
}

// SetPresence flips isOnline and stamps lastSeen.
func (u *UserClient) SetPresence(ctx context.Context, id string, online bool) (models.User, error) {
	body := map[string]any{"isOnline": online, "lastSeen": u.c.now()}
	var out models.User
	if err := u.c.patch(ctx, itemPath("users", id), body, &out); err != nil {
		return models.User{}, errors.Wrapf(err, "set presence for %s", id)
	}
	return out, nil
}

// Search matches query against names and phone, case-insensitively.
func (u *UserClient) Search(ctx context.Context, query string) ([]models.User, error) {
	var all []models.User
	if err := u.c.get(ctx, "/users", nil, &all); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	var out []models.User
	for _, user := range all {
		if strings.Contains(strings.ToLower(user.DisplayName()), q) || strings.Contains(user.Phone, q) {
			out = append(out, user)
		}
	}
	return out, nil
}
