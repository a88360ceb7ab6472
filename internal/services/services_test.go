package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/database"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/store"
	"github.com/isdelr/feedhub/internal/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeHub struct {
	mu       sync.Mutex
	messages []websocket.Message
	err      error
}

func (h *fakeHub) Publish(msg websocket.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.messages = append(h.messages, msg)
	return nil
}

func (h *fakeHub) published() []websocket.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]websocket.Message(nil), h.messages...)
}

type fakeImages struct {
	removed []string
	err     error
}

func (f *fakeImages) Remove(path string) error {
	f.removed = append(f.removed, path)
	return f.err
}

type testEnv struct {
	feed     *FeedService
	accounts *UserService
	users    *store.UserStore
	posts    *store.PostStore
	hub      *fakeHub
	images   *fakeImages
	tokens   *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New("sqlite", filepath.Join(t.TempDir(), "feedhub.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	env := &testEnv{
		users:  store.NewUserStore(db),
		posts:  store.NewPostStore(db),
		hub:    &fakeHub{},
		images: &fakeImages{},
		tokens: auth.NewTokenService("test-secret", time.Hour),
	}
	env.feed = NewFeedService(env.posts, env.users, env.images, env.hub, 2)
	env.accounts = NewUserService(env.users, env.tokens)
	env.accounts.cost = bcrypt.MinCost
	return env
}

// signup creates an account and returns the identity a verified token would carry.
func (e *testEnv) signup(t *testing.T, email, name string) auth.Identity {
	t.Helper()
	user, err := e.accounts.Signup(context.Background(), models.SignupInput{Email: email, Name: name, Password: "pw123"})
	require.NoError(t, err)
	return auth.Identity{Authenticated: true, UserID: user.ID, Email: user.Email}
}

func (e *testEnv) createPost(t *testing.T, id auth.Identity, title string) models.Post {
	t.Helper()
	post, err := e.feed.CreatePost(context.Background(), id, models.PostInput{
		Title:    title,
		Content:  "Some content here",
		ImageURL: "images/1-" + title + ".png",
	})
	require.NoError(t, err)
	return post
}

var errBoom = errors.New("boom")
