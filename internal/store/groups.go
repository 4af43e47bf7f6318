package store

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"chat-client/internal/models"
)

// GroupClient talks to /groups.
type GroupClient struct {
	c *Client
}

// Get fetches one group.
func (g *GroupClient) Get(ctx context.Context, id string) (models.Group, error) {
	var out models.Group
	if err := g.c.get(ctx, itemPath("groups", id), nil, &out); err != nil {
		return models.Group{}, errors.Wrapf(err, "get group %s", id)
	}
	return out, nil
}

// GetGroup satisfies presenter.Directory.
func (g *GroupClient) GetGroup(ctx context.Context, id string) (models.Group, error) {
	return g.Get(ctx, id)
}

// Create makes a group owned by creatorID. The creator is always a member and admin.
func (g *GroupClient) Create(ctx context.Context, creatorID, name, description string, members []string) (models.Group, error) {
	name, err := requireName("name", name)
	if err != nil {
		return models.Group{}, err
	}
	group := models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		Members:     addUnique([]string{creatorID}, members...),
		Admins:      []string{creatorID},
		CreatedAt:   g.c.now(),
	}
	var out models.Group
	if err := g.c.post(ctx, "/groups", group, &out); err != nil {
		return models.Group{}, errors.Wrap(err, "create group")
	}
	return out, nil
}

// ListForMember returns the groups userID belongs to.
func (g *GroupClient) ListForMember(ctx context.Context, userID string) ([]models.Group, error) {
	var all []models.Group
	if err := g.c.get(ctx, "/groups", url.Values{"members_like": {userID}}, &all); err != nil {
		return nil, errors.Wrap(err, "list groups")
	}
	// members_like is a substring match.
	var out []models.Group
	for _, group := range all {
		if group.IsMember(userID) {
			out = append(out, group)
		}
	}
	return out, nil
}

// GroupIDsFor returns the ids of the groups userID belongs to.
func (g *GroupClient) GroupIDsFor(ctx context.Context, userID string) ([]string, error) {
	groups, err := g.ListForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(groups))
	for _, group := range groups {
		ids = append(ids, group.ID)
	}
	return ids, nil
}

func (g *GroupClient) AddMembers(ctx context.Context, groupID string, userIDs ...string) (models.Group, error) {
	group, err := g.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	return g.save(ctx, group.ID, map[string]any{"members": addUnique(group.Members, userIDs...)})
}

// RemoveMember drops userID from members and admins. The creator cannot be removed.
func (g *GroupClient) RemoveMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	group, err := g.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if userID == group.CreatedBy {
		return models.Group{}, ErrCreatorAdmin
	}
	return g.save(ctx, group.ID, map[string]any{
		"members": without(group.Members, userID),
		"admins":  without(group.Admins, userID),
	})
}

// PromoteAdmin grants admin rights to an existing member.
func (g *GroupClient) PromoteAdmin(ctx context.Context, groupID, userID string) (models.Group, error) {
	group, err := g.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.IsMember(userID) {
		return models.Group{}, invalid("userId", "not a member of the group")
	}
	return g.save(ctx, group.ID, map[string]any{"admins": addUnique(group.Admins, userID)})
}

// DemoteAdmin revokes admin rights. The creator always stays admin.
func (g *GroupClient) DemoteAdmin(ctx context.Context, groupID, userID string) (models.Group, error) {
	group, err := g.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if userID == group.CreatedBy {
		return models.Group{}, ErrCreatorAdmin
	}
	return g.save(ctx, group.ID, map[string]any{"admins": without(group.Admins, userID)})
}

func (g *GroupClient) save(ctx context.Context, id string, fields map[string]any) (models.Group, error) {
	var out models.Group
	if err := g.c.patch(ctx, itemPath("groups", id), fields, &out); err != nil {
		return models.Group{}, errors.Wrapf(err, "update group %s", id)
	}
	return out, nil
}

func addUnique(list []string, values ...string) []string {
	out := append([]string(nil), list...)
	seen := make(map[string]struct{}, len(out))
	for _, v := range out {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func without(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
