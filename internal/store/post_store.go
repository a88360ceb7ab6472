package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/jmoiron/sqlx"
)

// PostStoreProvider defines the persistence operations for posts.
type PostStoreProvider interface {
	Get(ctx context.Context, id string) (models.Post, error)
	List(ctx context.Context, offset, limit int) ([]models.Post, error)
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, post models.Post) (models.Post, error)
	Save(ctx context.Context, post models.Post) (models.Post, error)
	Delete(ctx context.Context, id string) error
	ImageRefs(ctx context.Context, imageURL string) ([]ImageRef, error)
}

// ImageRef identifies a post that uses an image.
type ImageRef struct {
	PostID    string `db:"id"`
	CreatorID string `db:"creator_id"`
}

// PostStore stores posts in the posts table. Reads populate the creator from users.
type PostStore struct {
	db *sqlx.DB
}

// NewPostStore creates a new PostStore.
func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

type postRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	ImageURL    string         `db:"image_url"`
	CreatorID   string         `db:"creator_id"`
	CreatorName sql.NullString `db:"creator_name"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const selectPost = `
	SELECT p.id, p.title, p.content, p.image_url, p.creator_id, u.name AS creator_name, p.created_at, p.updated_at
	FROM posts p LEFT JOIN users u ON u.id = p.creator_id`

// Get retrieves a single post by id.
func (s *PostStore) Get(ctx context.Context, id string) (models.Post, error) {
	var row postRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectPost+" WHERE p.id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return models.Post{}, err
	}
	return row.toModel()
}

// List returns a window of posts, newest first.
func (s *PostStore) List(ctx context.Context, offset, limit int) ([]models.Post, error) {
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(selectPost+" ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"), limit, offset)
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(rows))
	for _, row := range rows {
		post, err := row.toModel()
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Count returns the total number of posts.
func (s *PostStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM posts")
	return n, err
}

// Insert stores a new post. ID and timestamps are assigned here; Creator.ID must be set.
func (s *PostStore) Insert(ctx context.Context, post models.Post) (models.Post, error) {
	if post.Creator.ID == "" {
		return models.Post{}, errors.New("post has no creator")
	}
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	post.CreatedAt = now()
	post.UpdatedAt = post.CreatedAt

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO posts (id, title, content, image_url, creator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		post.ID, post.Title, post.Content, post.ImageURL, post.Creator.ID, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}
	return post, nil
}

// Save replaces the mutable fields of a stored post. The creator is never changed.
func (s *PostStore) Save(ctx context.Context, post models.Post) (models.Post, error) {
	post.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE posts SET title = ?, content = ?, image_url = ?, updated_at = ? WHERE id = ?`),
		post.Title, post.Content, post.ImageURL, post.UpdatedAt, post.ID)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to save post %s: %w", post.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Post{}, fmt.Errorf("post %s: %w", post.ID, ErrNotFound)
	}
	return post, nil
}

// Delete removes a post.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM posts WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return nil
}

// ImageRefs returns the posts that reference imageURL.
func (s *PostStore) ImageRefs(ctx context.Context, imageURL string) ([]ImageRef, error) {
	var refs []ImageRef
	err := s.db.SelectContext(ctx, &refs, s.db.Rebind("SELECT id, creator_id FROM posts WHERE image_url = ?"), imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts using %s: %w", imageURL, err)
	}
	return refs, nil
}

// ImageURLs returns every image path referenced by a post.
func (s *PostStore) ImageURLs(ctx context.Context) (map[string]bool, error) {
	var urls []string
	if err := s.db.SelectContext(ctx, &urls, "SELECT image_url FROM posts"); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set, nil
}

func (r postRow) toModel() (models.Post, error) {
	if !r.CreatorName.Valid {
		return models.Post{}, fmt.Errorf("post %s references user %s: %w", r.ID, r.CreatorID, ErrMissingCreator)
	}
	return models.Post{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		ImageURL:  r.ImageURL,
		Creator:   models.Creator{ID: r.CreatorID, Name: r.CreatorName.String},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
