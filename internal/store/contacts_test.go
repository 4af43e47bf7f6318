package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func seedUsers(ms *memStore) {
	ms.seed("users",
		models.User{ID: "u1", FirstName: "Awa", LastName: "Diop", Phone: "+221770000001"},
		models.User{ID: "u2", FirstName: "Moussa", LastName: "Fall", Phone: "+221770000002"},
		models.User{ID: "u3", FirstName: "Fatou", LastName: "Sow", Phone: "+221770000003"},
	)
}

func TestContacts_AddRules(t *testing.T) {
	ms, c := newMemStore(t)
	seedUsers(ms)
	ctx := context.Background()

	contact, err := c.Contacts.Add(ctx, "u1", "Moussa", "+221 77 000 00 02")
	require.NoError(t, err)
	assert.Equal(t, "u2", contact.ContactUserID)
	assert.Equal(t, "u1", contact.UserID)

	_, err = c.Contacts.Add(ctx, "u1", "Moussa again", "+221770000002")
	assert.ErrorIs(t, err, ErrDuplicateContact)

	_, err = c.Contacts.Add(ctx, "u1", "Me", "+221770000001")
	assert.ErrorIs(t, err, ErrSelfContact)

	_, err = c.Contacts.Add(ctx, "u1", "", "+221770000003")
	assert.True(t, IsValidation(err))

	assert.Len(t, ms.items("contacts"), 1)
}

func TestContacts_ListBlockUnblock(t *testing.T) {
	ms, c := newMemStore(t)
	seedUsers(ms)
	ms.seed("contacts",
		models.Contact{ID: "c1", UserID: "u1", ContactUserID: "u2", Name: "Moussa"},
		models.Contact{ID: "c2", UserID: "u1", ContactUserID: "u3", Name: "Fatou"},
		models.Contact{ID: "c3", UserID: "u1", ContactUserID: "u1", Name: "Me"},
		models.Contact{ID: "c4", UserID: "u2", ContactUserID: "u1", Name: "Awa"},
	)
	ctx := context.Background()

	list, err := c.Contacts.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.NotNil(t, list[0].User)
	assert.Equal(t, "Moussa", list[0].User.FirstName)

	_, err = c.Contacts.Block(ctx, "u1", "c2")
	require.NoError(t, err)
	_, err = c.Contacts.Block(ctx, "u1", "c3")
	assert.ErrorIs(t, err, ErrSelfBlock)

	list, err = c.Contacts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	blocked, err := c.Contacts.Blocked(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "c2", blocked[0].ID)

	_, err = c.Contacts.Unblock(ctx, "c2")
	require.NoError(t, err)
	blocked, err = c.Contacts.Blocked(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, blocked)
}

func TestContacts_FavoriteAndDelete(t *testing.T) {
	ms, c := newMemStore(t)
	ms.seed("contacts", models.Contact{ID: "c1", UserID: "u1", ContactUserID: "u2"})
	ctx := context.Background()

	out, err := c.Contacts.ToggleFavorite(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, out.IsFavorite)
	out, err = c.Contacts.ToggleFavorite(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, out.IsFavorite)

	require.NoError(t, c.Contacts.Delete(ctx, "c1"))
	assert.Empty(t, ms.items("contacts"))
	assert.ErrorIs(t, c.Contacts.Delete(ctx, "c1"), ErrNotFound)
}
