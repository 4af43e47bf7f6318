package store

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
)

// ContactClient talks to /contacts.
type ContactClient struct {
	c *Client
}

func (cc *ContactClient) byOwner(ctx context.Context, ownerID string, blocked *bool) ([]models.Contact, error) {
	q := url.Values{"userId": {ownerID}}
	if blocked != nil {
		if *blocked {
			q.Set("isBlocked", "true")
		} else {
			q.Set("isBlocked", "false")
		}
	}
	var out []models.Contact
	if err := cc.c.get(ctx, "/contacts", q, &out); err != nil {
		return nil, errors.Wrap(err, "list contacts")
	}
	return out, nil
}

// Get fetches one contact entry.
func (cc *ContactClient) Get(ctx context.Context, id string) (models.Contact, error) {
	var out models.Contact
	if err := cc.c.get(ctx, itemPath("contacts", id), nil, &out); err != nil {
		return models.Contact{}, errors.Wrapf(err, "get contact %s", id)
	}
	return out, nil
}

// Add creates a contact for ownerID pointing at the user registered under phone.
func (cc *ContactClient) Add(ctx context.Context, ownerID, name, phone string) (models.Contact, error) {
	name, err := requireName("name", name)
	if err != nil {
		return models.Contact{}, err
	}
	target, err := cc.c.Users.ByPhone(ctx, phone)
	if err != nil {
		return models.Contact{}, err
	}
	if target.ID == ownerID {
		return models.Contact{}, ErrSelfContact
	}

	existing, err := cc.byOwner(ctx, ownerID, nil)
	if err != nil {
		return models.Contact{}, err
	}
	for _, c := range existing {
		if c.ContactUserID == target.ID {
			return models.Contact{}, ErrDuplicateContact
		}
	}

	contact := models.Contact{
		ID:            uuid.NewString(),
		UserID:        ownerID,
		ContactUserID: target.ID,
		Name:          name,
		Phone:         target.Phone,
		CreatedAt:     cc.c.now(),
	}
	var out models.Contact
	if err := cc.c.post(ctx, "/contacts", contact, &out); err != nil {
		return models.Contact{}, errors.Wrap(err, "add contact")
	}
	return out, nil
}

// List returns the owner's non-blocked contacts with their user records attached.
// A contact whose user cannot be fetched is returned without one.
func (cc *ContactClient) List(ctx context.Context, ownerID string) ([]models.Contact, error) {
	blocked := false
	contacts, err := cc.byOwner(ctx, ownerID, &blocked)
	if err != nil {
		return nil, err
	}
	for i := range contacts {
		user, err := cc.c.Users.Get(ctx, contacts[i].ContactUserID)
		if err != nil {
			logger.Warn("contact user lookup failed",
				zap.String("contact", contacts[i].ID),
				zap.Error(err))
			continue
		}
		contacts[i].User = &user
	}
	return contacts, nil
}

// Blocked returns the owner's blocked contacts.
func (cc *ContactClient) Blocked(ctx context.Context, ownerID string) ([]models.Contact, error) {
	blocked := true
	return cc.byOwner(ctx, ownerID, &blocked)
}

// Block blocks a contact. Blocking an entry that points at the owner fails with ErrSelfBlock.
func (cc *ContactClient) Block(ctx context.Context, ownerID, contactID string) (models.Contact, error) {
	contact, err := cc.Get(ctx, contactID)
	if err != nil {
		return models.Contact{}, err
	}
	if contact.ContactUserID == ownerID {
		return models.Contact{}, ErrSelfBlock
	}
	return cc.update(ctx, contactID, map[string]any{"isBlocked": true})
}

func (cc *ContactClient) Unblock(ctx context.Context, contactID string) (models.Contact, error) {
	return cc.update(ctx, contactID, map[string]any{"isBlocked": false})
}

// ToggleFavorite flips isFavorite.
func (cc *ContactClient) ToggleFavorite(ctx context.Context, contactID string) (models.Contact, error) {
	contact, err := cc.Get(ctx, contactID)
	if err != nil {
		return models.Contact{}, err
	}
	return cc.update(ctx, contactID, map[string]any{"isFavorite": !contact.IsFavorite})
}

func (cc *ContactClient) Delete(ctx context.Context, contactID string) error {
	if err := cc.c.delete(ctx, itemPath("contacts", contactID)); err != nil {
		return errors.Wrapf(err, "delete contact %s", contactID)
	}
	return nil
}

func (cc *ContactClient) update(ctx context.Context, id string, fields map[string]any) (models.Contact, error) {
	var out models.Contact
	if err := cc.c.patch(ctx, itemPath("contacts", id), fields, &out); err != nil {
		return models.Contact{}, errors.Wrapf(err, "update contact %s", id)
	}
	return out, nil
}
