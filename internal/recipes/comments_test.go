package recipes

import (
	"context"
	"testing"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentIndicesSurviveDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))

	for i, body := range []string{"first", "second", "third"} {
		index, err := env.service.AddComment(ctx, recipe.Slug, alice, body)
		require.NoError(t, err)
		assert.Equal(t, i, index)
	}
	assert.Equal(t, int64(3), env.reload(t, recipe.Slug).CommentCount)

	require.NoError(t, env.service.DeleteComment(ctx, recipe.Slug, "1", alice))

	entries, err := env.service.ListComments(ctx, recipe.Slug, alice)
	require.NoError(t, err)
	require.Len(t, entries, 3, "ledger length is unchanged")
	assert.Equal(t, "first", entries[0].Comment.Body)
	assert.True(t, entries[1].Deleted())
	assert.False(t, entries[1].CanDelete)
	assert.Equal(t, 2, entries[2].Index)
	assert.Equal(t, "third", entries[2].Comment.Body)
	assert.Equal(t, int64(2), env.reload(t, recipe.Slug).CommentCount)

	require.NoError(t, env.service.DeleteComment(ctx, recipe.Slug, "2", alice))
	entries, err = env.service.ListComments(ctx, recipe.Slug, alice)
	require.NoError(t, err)
	assert.Equal(t, "first", entries[0].Comment.Body)
	assert.Equal(t, int64(1), env.reload(t, recipe.Slug).CommentCount)

	index, err := env.service.AddComment(ctx, recipe.Slug, carol, "fourth")
	require.NoError(t, err)
	assert.Equal(t, 3, index, "positions are never reused")
}

func TestCommentCountMatchesLiveEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))

	for _, body := range []string{"a", "b", "c", "d"} {
		_, err := env.service.AddComment(ctx, recipe.Slug, alice, body)
		require.NoError(t, err)
	}
	require.NoError(t, env.service.DeleteComment(ctx, recipe.Slug, "0", alice))
	require.NoError(t, env.service.DeleteComment(ctx, recipe.Slug, "3", admin))

	entries, err := env.service.ListComments(ctx, recipe.Slug, users.Actor{})
	require.NoError(t, err)
	live := 0
	for _, entry := range entries {
		if !entry.Deleted() {
			live++
		}
	}
	assert.Equal(t, int64(live), env.reload(t, recipe.Slug).CommentCount)
}

func TestAddCommentRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))

	_, err := env.service.AddComment(ctx, recipe.Slug, users.Actor{}, "hello")
	assert.ErrorIs(t, err, domainerr.ErrForbidden)

	_, err = env.service.AddComment(ctx, recipe.Slug, alice, "   ")
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	_, err = env.service.AddComment(ctx, "missing", alice, "hello")
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestDeleteCommentRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))
	_, err := env.service.AddComment(ctx, recipe.Slug, alice, "hello")
	require.NoError(t, err)

	for _, raw := range []string{"one", "-1", "1", "99", ""} {
		err := env.service.DeleteComment(ctx, recipe.Slug, raw, admin)
		assert.ErrorIs(t, err, domainerr.ErrForbidden, "index %q", raw)
	}

	assert.ErrorIs(t, env.service.DeleteComment(ctx, recipe.Slug, "0", carol), domainerr.ErrForbidden)
	assert.ErrorIs(t, env.service.DeleteComment(ctx, recipe.Slug, "0", users.Actor{}), domainerr.ErrForbidden)

	require.NoError(t, env.service.DeleteComment(ctx, recipe.Slug, "0", admin))
	assert.ErrorIs(t, env.service.DeleteComment(ctx, recipe.Slug, "0", admin), domainerr.ErrForbidden,
		"tombstones cannot be deleted twice")
	assert.Equal(t, int64(0), env.reload(t, recipe.Slug).CommentCount)
}

func TestListCommentsMarksDeletable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))
	_, err := env.service.AddComment(ctx, recipe.Slug, alice, "mine")
	require.NoError(t, err)
	_, err = env.service.AddComment(ctx, recipe.Slug, carol, "theirs")
	require.NoError(t, err)

	entries, err := env.service.ListComments(ctx, recipe.Slug, alice)
	require.NoError(t, err)
	assert.True(t, entries[0].CanDelete)
	assert.False(t, entries[1].CanDelete)

	entries, err = env.service.ListComments(ctx, recipe.Slug, admin)
	require.NoError(t, err)
	assert.True(t, entries[0].CanDelete)
	assert.True(t, entries[1].CanDelete)
}

func TestAddCommentNotifiesAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recipe := env.create(t, bob, recipeInput("Bread"))
	_, err := env.service.AddComment(ctx, recipe.Slug, bob, "my own note")
	require.NoError(t, err)
	_, err = env.service.AddComment(ctx, recipe.Slug, alice, "lovely")
	require.NoError(t, err)

	events := env.published.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, activity.TypeRecipeCommented, events[0].Type)
	assert.Equal(t, "bob", events[0].Recipient)
	assert.Equal(t, "alice", events[0].Actor)
}
