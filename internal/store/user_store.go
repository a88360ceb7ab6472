package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/jmoiron/sqlx"
)

// UserStoreProvider defines the persistence operations for users.
type UserStoreProvider interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Insert(ctx context.Context, user models.User) (models.User, error)
	Save(ctx context.Context, user models.User) (models.User, error)
}

// UserStore stores users in the users table.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Status       string    `db:"status"`
	PostsJSON    string    `db:"posts_json"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const selectUser = `SELECT id, email, name, password_hash, status, posts_json, created_at, updated_at FROM users`

// GetByID retrieves a single user by id.
func (s *UserStore) GetByID(ctx context.Context, id string) (models.User, error) {
	return s.getOne(ctx, selectUser+" WHERE id = ?", id)
}

// GetByEmail retrieves a single user by email, including the password hash.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getOne(ctx, selectUser+" WHERE email = ?", email)
}

// Insert stores a new user. ID and timestamps are assigned here.
func (s *UserStore) Insert(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Posts == nil {
		user.Posts = []string{}
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	postsJSON, err := json.Marshal(user.Posts)
	if err != nil {
		return models.User{}, err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, email, name, password_hash, status, posts_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.Name, user.PasswordHash, user.Status, string(postsJSON), user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return models.User{}, fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// Save replaces the stored user document, including its owned post list.
func (s *UserStore) Save(ctx context.Context, user models.User) (models.User, error) {
	if user.Posts == nil {
		user.Posts = []string{}
	}
	postsJSON, err := json.Marshal(user.Posts)
	if err != nil {
		return models.User{}, err
	}
	user.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users SET email = ?, name = ?, password_hash = ?, status = ?, posts_json = ?, updated_at = ?
		WHERE id = ?`),
		user.Email, user.Name, user.PasswordHash, user.Status, string(postsJSON), user.UpdatedAt, user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	return user, nil
}

func (s *UserStore) getOne(ctx context.Context, query string, arg string) (models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", arg, ErrNotFound)
		}
		return models.User{}, err
	}
	return row.toModel()
}

func (r userRow) toModel() (models.User, error) {
	user := models.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.PostsJSON), &user.Posts); err != nil {
		return models.User{}, fmt.Errorf("corrupt posts list for user %s: %w", r.ID, err)
	}
	if user.Posts == nil {
		user.Posts = []string{}
	}
	return user, nil
}
