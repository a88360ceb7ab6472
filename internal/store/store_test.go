package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/isdelr/feedhub/internal/database"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.New("sqlite", filepath.Join(t.TempDir(), "feedhub.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func insertUser(t *testing.T, users *UserStore, email string) models.User {
	t.Helper()
	u, err := users.Insert(context.Background(), models.User{
		Email:        email,
		Name:         "Ann",
		PasswordHash: "hash",
		Status:       models.DefaultStatus,
	})
	require.NoError(t, err)
	return u
}

func TestUserStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestDB(t))

	created := insertUser(t, users, "a@x.com")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{}, created.Posts)

	byEmail, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byEmail.Status = "busy"
	byEmail.AddPost("p1")
	byEmail.AddPost("p2")
	_, err = users.Save(ctx, byEmail)
	require.NoError(t, err)

	byID, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "busy", byID.Status)
	assert.Equal(t, []string{"p1", "p2"}, byID.Posts)
}

func TestUserStoreNotFound(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestDB(t))

	_, err := users.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = users.Save(ctx, models.User{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreRejectsDuplicateEmail(t *testing.T) {
	users := NewUserStore(newTestDB(t))
	insertUser(t, users, "a@x.com")

	_, err := users.Insert(context.Background(), models.User{Email: "a@x.com", Name: "Ann", PasswordHash: "h", Status: "s"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUniqueViolationFromPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23503", Message: "foreign key violation"})

	users := NewUserStore(sqlx.NewDb(mockDB, "sqlmock"))
	_, err = users.Insert(context.Background(), models.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = users.Insert(context.Background(), models.User{Email: "b@x.com"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreCRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users, posts := NewUserStore(db), NewPostStore(db)
	owner := insertUser(t, users, "a@x.com")

	created, err := posts.Insert(ctx, models.Post{
		Title:    "Hello world",
		Content:  "Some content here",
		ImageURL: "images/1-a.png",
		Creator:  models.Creator{ID: owner.ID},
	})
	require.NoError(t, err)

	got, err := posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.Title)
	assert.Equal(t, models.Creator{ID: owner.ID, Name: "Ann"}, got.Creator)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, 0)

	got.Title = "Changed title"
	got.ImageURL = "images/2-b.png"
	_, err = posts.Save(ctx, got)
	require.NoError(t, err)

	got, err = posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Changed title", got.Title)
	assert.Equal(t, "images/2-b.png", got.ImageURL)

	urls, err := posts.ImageURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"images/2-b.png": true}, urls)

	refs, err := posts.ImageRefs(ctx, "images/2-b.png")
	require.NoError(t, err)
	assert.Equal(t, []ImageRef{{PostID: created.ID, CreatorID: owner.ID}}, refs)
	refs, err = posts.ImageRefs(ctx, "images/1-a.png")
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, posts.Delete(ctx, created.ID))
	_, err = posts.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, posts.Delete(ctx, created.ID), ErrNotFound)
}

func TestPostStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users, posts := NewUserStore(db), NewPostStore(db)
	owner := insertUser(t, users, "a@x.com")

	var ids []string
	for _, title := range []string{"first post", "second post", "third post"} {
		p, err := posts.Insert(ctx, models.Post{Title: title, Content: "content", Creator: models.Creator{ID: owner.ID}})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	total, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, err := posts.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = posts.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestPostStoreMissingCreator(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	posts := NewPostStore(db)

	_, err := db.Exec("PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	_, err = posts.Insert(ctx, models.Post{Title: "orphan", Content: "content", Creator: models.Creator{ID: "ghost"}})
	require.NoError(t, err)

	page, err := posts.List(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrMissingCreator)
	assert.Nil(t, page)
}

func TestPostStoreInsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO posts").WillReturnError(errors.New("disk I/O error"))

	posts := NewPostStore(sqlx.NewDb(mockDB, "sqlmock"))
	_, err = posts.Insert(context.Background(), models.Post{Title: "Hello world", Creator: models.Creator{ID: "u1"}})
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
