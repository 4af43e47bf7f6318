package store

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"chat-client/internal/models"
)

// DiscussionClient talks to /discussions.
type DiscussionClient struct {
	c *Client
}

func (d *DiscussionClient) forParticipant(ctx context.Context, userID string) ([]models.Discussion, error) {
	var all []models.Discussion
	if err := d.c.get(ctx, "/discussions", url.Values{"participants_like": {userID}}, &all); err != nil {
		return nil, errors.Wrap(err, "list discussions")
	}
	var out []models.Discussion
	for _, disc := range all {
		if contains(disc.Participants, userID) {
			out = append(out, disc)
		}
	}
	return out, nil
}

// ListForUser returns the user's non-archived discussions.
func (d *DiscussionClient) ListForUser(ctx context.Context, userID string) ([]models.Discussion, error) {
	return d.filter(ctx, userID, false)
}

// ListArchived returns the user's archived discussions.
func (d *DiscussionClient) ListArchived(ctx context.Context, userID string) ([]models.Discussion, error) {
	return d.filter(ctx, userID, true)
}

func (d *DiscussionClient) filter(ctx context.Context, userID string, archived bool) ([]models.Discussion, error) {
	all, err := d.forParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []models.Discussion
	for _, disc := range all {
		if disc.IsArchived == archived {
			out = append(out, disc)
		}
	}
	return out, nil
}

// Upsert creates the discussion or updates the one for the same contact or group.
func (d *DiscussionClient) Upsert(ctx context.Context, disc models.Discussion) (models.Discussion, error) {
	if disc.ContactID == "" && disc.GroupID == "" {
		return models.Discussion{}, invalid("discussion", "contactId or groupId is required")
	}
	existing, err := d.forParticipant(ctx, disc.CreatedBy)
	if err != nil {
		return models.Discussion{}, err
	}
	now := d.c.now()
	disc.LastActivity = now
	disc.IsGroup = disc.GroupID != ""

	for _, cur := range existing {
		if !sameTarget(cur, disc) {
			continue
		}
		disc.ID = cur.ID
		disc.IsFavorite = cur.IsFavorite
		disc.IsArchived = cur.IsArchived
		if disc.LastMessage == nil {
			disc.LastMessage = cur.LastMessage
		}
		var out models.Discussion
		if err := d.c.put(ctx, itemPath("discussions", cur.ID), disc, &out); err != nil {
			return models.Discussion{}, errors.Wrapf(err, "update discussion %s", cur.ID)
		}
		return out, nil
	}

	disc.ID = uuid.NewString()
	var out models.Discussion
	if err := d.c.post(ctx, "/discussions", disc, &out); err != nil {
		return models.Discussion{}, errors.Wrap(err, "create discussion")
	}
	return out, nil
}

// sameTarget matches on the non-empty key only; two empty group ids never match.
func sameTarget(a, b models.Discussion) bool {
	if b.GroupID != "" {
		return a.GroupID == b.GroupID
	}
	return a.GroupID == "" && a.ContactID == b.ContactID
}

func (d *DiscussionClient) Get(ctx context.Context, id string) (models.Discussion, error) {
	var out models.Discussion
	if err := d.c.get(ctx, itemPath("discussions", id), nil, &out); err != nil {
		return models.Discussion{}, errors.Wrapf(err, "get discussion %s", id)
	}
	return out, nil
}

// ToggleFavorite flips isFavorite.
func (d *DiscussionClient) ToggleFavorite(ctx context.Context, id string) (models.Discussion, error) {
	disc, err := d.Get(ctx, id)
	if err != nil {
		return models.Discussion{}, err
	}
	return d.update(ctx, id, map[string]any{"isFavorite": !disc.IsFavorite})
}

// MarkRead clears the unread flag and stamps lastReadAt.
func (d *DiscussionClient) MarkRead(ctx context.Context, id string) (models.Discussion, error) {
	return d.update(ctx, id, map[string]any{"hasUnreadMessages": false, "lastReadAt": d.c.now()})
}

func (d *DiscussionClient) SetArchived(ctx context.Context, id string, archived bool) (models.Discussion, error) {
	return d.update(ctx, id, map[string]any{"isArchived": archived})
}

func (d *DiscussionClient) update(ctx context.Context, id string, fields map[string]any) (models.Discussion, error) {
	var out models.Discussion
	if err := d.c.patch(ctx, itemPath("discussions", id), fields, &out); err != nil {
		return models.Discussion{}, errors.Wrapf(err, "update discussion %s", id)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
