package services

import (
	"context"
	"math"
	"testing"

	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/store"
	"github.com/isdelr/feedhub/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostSetsOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")

	post := env.createPost(t, ann, "Hello world")

	assert.Equal(t, models.Creator{ID: ann.UserID, Name: "Ann"}, post.Creator)
	owner, err := env.users.GetByID(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, owner.Posts)

	msgs := env.hub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, websocket.PostsEvent, msgs[0].Event)
	assert.Equal(t, websocket.ActionCreate, msgs[0].Action)
	assert.Equal(t, post, msgs[0].Post)
}

func TestCreatePostTrimsInput(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")

	post, err := env.feed.CreatePost(context.Background(), ann, models.PostInput{Title: "  Hello world  ", Content: " Some content here "})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", post.Title)
	assert.Equal(t, "Some content here", post.Content)
}

func TestCreatePostRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.feed.CreatePost(context.Background(), auth.Identity{}, models.PostInput{Title: "Hello world", Content: "Some content"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Empty(t, env.hub.published())
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")

	_, err := env.feed.CreatePost(context.Background(), ann, models.PostInput{Title: "Hi", Content: "abc"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Len(t, apperr.From(err).Fields, 2)

	total, err := env.posts.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreatePostForUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ghost := auth.Identity{Authenticated: true, UserID: "ghost"}

	_, err := env.feed.CreatePost(context.Background(), ghost, models.PostInput{Title: "Hello world", Content: "Some content"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestCreatePostSurvivesBroadcastFailure(t *testing.T) {
	env := newTestEnv(t)
	env.hub.err = websocket.ErrNotInitialized
	ann := env.signup(t, "a@x.com", "Ann")

	post := env.createPost(t, ann, "Hello world")

	stored, err := env.feed.GetPost(context.Background(), ann, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, stored.ID)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	post := env.createPost(t, ann, "Hello world")

	updated, err := env.feed.UpdatePost(ctx, ann, post.ID, models.PostInput{
		Title:    "New title",
		Content:  "New content",
		ImageURL: "images/2-new.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "images/2-new.png", updated.ImageURL)
	assert.Equal(t, post.Creator, updated.Creator)
	assert.Equal(t, []string{post.ImageURL}, env.images.removed)

	msgs := env.hub.published()
	require.Len(t, msgs, 2)
	assert.Equal(t, websocket.ActionUpdate, msgs[1].Action)
}

func TestUpdatePostKeepsImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	post := env.createPost(t, ann, "Hello world")

	for _, image := range []string{"", "undefined", post.ImageURL} {
		updated, err := env.feed.UpdatePost(ctx, ann, post.ID, models.PostInput{Title: "New title", Content: "New content", ImageURL: image})
		require.NoError(t, err)
		assert.Equal(t, post.ImageURL, updated.ImageURL)
	}
	assert.Empty(t, env.images.removed)
}

func TestUpdatePostShortTitleLeavesStorageUnchanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	post := env.createPost(t, ann, "Hello world")

	_, err := env.feed.UpdatePost(ctx, ann, post.ID, models.PostInput{Title: "Hey", Content: "New content", ImageURL: "images/2-new.png"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	stored, err := env.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", stored.Title)
	assert.Equal(t, post.ImageURL, stored.ImageURL)
	assert.Empty(t, env.images.removed)
	assert.Len(t, env.hub.published(), 1)
}

func TestNonOwnerIsForbidden(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	bob := env.signup(t, "b@x.com", "Bob")
	post := env.createPost(t, ann, "Hello world")

	_, err := env.feed.UpdatePost(ctx, bob, post.ID, models.PostInput{Title: "Hijacked", Content: "Hijacked", ImageURL: "images/evil.png"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = env.feed.DeletePost(ctx, bob, post.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	stored, err := env.feed.GetPost(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", stored.Title)
	assert.Equal(t, post.ImageURL, stored.ImageURL)
	assert.Empty(t, env.images.removed)

	owner, err := env.users.GetByID(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, owner.Posts)
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	keep := env.createPost(t, ann, "Keep this")
	post := env.createPost(t, ann, "Hello world")

	require.NoError(t, env.feed.DeletePost(ctx, ann, post.ID))

	_, err := env.feed.GetPost(ctx, ann, post.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	owner, err := env.users.GetByID(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, owner.Posts)
	assert.Equal(t, []string{post.ImageURL}, env.images.removed)

	msgs := env.hub.published()
	last := msgs[len(msgs)-1]
	assert.Equal(t, websocket.ActionDelete, last.Action)
	assert.Equal(t, post.ID, last.Post)
}

func TestDeletePostIgnoresImageCleanupFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.images.err = errBoom
	ann := env.signup(t, "a@x.com", "Ann")
	post := env.createPost(t, ann, "Hello world")

	require.NoError(t, env.feed.DeletePost(ctx, ann, post.ID))
	_, err := env.posts.Get(ctx, post.ID)
	assert.Error(t, err)
}

func TestMutationsOnMissingPost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")

	_, err := env.feed.UpdatePost(ctx, ann, "missing", models.PostInput{Title: "Hello world", Content: "Some content"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(env.feed.DeletePost(ctx, ann, "missing"), apperr.KindNotFound))
	assert.True(t, apperr.Is(env.feed.DeletePost(ctx, auth.Identity{}, "missing"), apperr.KindAuthorization))
}

func TestListPostsPaginates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	first := env.createPost(t, ann, "First post")
	second := env.createPost(t, ann, "Second post")
	third := env.createPost(t, ann, "Third post")

	page, err := env.feed.ListPosts(ctx, ann, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, third.ID, page.Posts[0].ID)
	assert.Equal(t, second.ID, page.Posts[1].ID)

	page, err = env.feed.ListPosts(ctx, ann, 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, first.ID, page.Posts[0].ID)

	page, err = env.feed.ListPosts(ctx, ann, 0)
	require.NoError(t, err)
	assert.Equal(t, third.ID, page.Posts[0].ID)

	_, err = env.feed.ListPosts(ctx, auth.Identity{}, 1)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

type failingSaveUsers struct {
	store.UserStoreProvider
}

func (failingSaveUsers) Save(context.Context, models.User) (models.User, error) {
	return models.User{}, errBoom
}

func TestCreatePostReportsPersistedPostWhenOwnerSaveFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	feed := NewFeedService(env.posts, failingSaveUsers{env.users}, env.images, env.hub, 2)

	_, err := feed.CreatePost(ctx, ann, models.PostInput{Title: "Hello world", Content: "Some content here", ImageURL: "images/1-a.png"})
	require.ErrorIs(t, err, ErrPostPersisted)
	assert.ErrorIs(t, err, errBoom)

	total, err := env.posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, env.hub.published())
}

func TestListPostsBeyondLastPage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	env.createPost(t, ann, "Hello world")

	for _, page := range []int{3, math.MaxInt} {
		result, err := env.feed.ListPosts(ctx, ann, page)
		require.NoError(t, err, "page %d", page)
		assert.Empty(t, result.Posts)
		assert.Equal(t, 1, result.TotalItems)
	}
}

func TestDeletePostKeepsImageSharedWithAnotherPost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	bob := env.signup(t, "b@x.com", "Bob")
	annPost := env.createPost(t, ann, "Hello world")

	bobPost, err := env.feed.CreatePost(ctx, bob, models.PostInput{Title: "Borrowed", Content: "Some content here", ImageURL: annPost.ImageURL})
	require.NoError(t, err)

	require.NoError(t, env.feed.DeletePost(ctx, bob, bobPost.ID))
	assert.Empty(t, env.images.removed)

	require.NoError(t, env.feed.DeletePost(ctx, ann, annPost.ID))
	assert.Equal(t, []string{annPost.ImageURL}, env.images.removed)
}

func TestReleaseImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann := env.signup(t, "a@x.com", "Ann")
	bob := env.signup(t, "b@x.com", "Bob")
	annPost := env.createPost(t, ann, "Hello world")

	err := env.feed.ReleaseImage(ctx, bob, annPost.ImageURL)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Empty(t, env.images.removed)

	assert.True(t, apperr.Is(env.feed.ReleaseImage(ctx, auth.Identity{}, "images/2-x.png"), apperr.KindAuthorization))

	require.NoError(t, env.feed.ReleaseImage(ctx, bob, "images/2-unused.png"))
	require.NoError(t, env.feed.ReleaseImage(ctx, ann, annPost.ImageURL))
	assert.Equal(t, []string{"images/2-unused.png", annPost.ImageURL}, env.images.removed)
}
