package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/metrics"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/store"
	"github.com/isdelr/feedhub/internal/validation"
	"github.com/isdelr/feedhub/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes events to connected realtime clients.
type Broadcaster interface {
	Publish(msg websocket.Message) error
}

// ImageRemover deletes stored images by public path.
type ImageRemover interface {
	Remove(path string) error
}

// FeedServiceProvider defines the interface for feed services.
type FeedServiceProvider interface {
	ListPosts(ctx context.Context, id auth.Identity, page int) (models.PostPage, error)
	GetPost(ctx context.Context, id auth.Identity, postID string) (models.Post, error)
	CreatePost(ctx context.Context, id auth.Identity, in models.PostInput) (models.Post, error)
	UpdatePost(ctx context.Context, id auth.Identity, postID string, in models.PostInput) (models.Post, error)
	DeletePost(ctx context.Context, id auth.Identity, postID string) error
	ReleaseImage(ctx context.Context, id auth.Identity, path string) error
}

// FeedService runs the post mutation pipeline: authorize, validate, load, check
// ownership, clean up images, persist, broadcast.
type FeedService struct {
	posts   store.PostStoreProvider
	users   store.UserStoreProvider
	images  ImageRemover
	hub     Broadcaster
	perPage int
}

// NewFeedService creates a new FeedService.
func NewFeedService(posts store.PostStoreProvider, users store.UserStoreProvider, images ImageRemover, hub Broadcaster, perPage int) *FeedService {
	return &FeedService{
		posts:   posts,
		users:   users,
		images:  images,
		hub:     hub,
		perPage: perPage,
	}
}

// ErrPostPersisted marks a CreatePost failure that happened after the post row
// was written. The post, and the image it references, remain stored.
var ErrPostPersisted = errors.New("post stored but owner not updated")

var (
	errNotAuthenticated = apperr.Unauthorized("Not authenticated.")
	errPostNotFound     = apperr.NotFound("Could not find post.")
	errNotOwner         = apperr.Forbidden("Not authorized!")
)

// ListPosts returns one page of the feed, newest first. Pages start at 1.
func (s *FeedService) ListPosts(ctx context.Context, id auth.Identity, page int) (models.PostPage, error) {
	if !id.Authenticated {
		return models.PostPage{}, errNotAuthenticated
	}
	if page < 1 {
		page = 1
	}
	// Keep the offset within a 32-bit range for every driver.
	if maxPage := math.MaxInt32/s.perPage + 1; page > maxPage {
		page = maxPage
	}

	total, err := s.posts.Count(ctx)
	if err != nil {
		return models.PostPage{}, fmt.Errorf("failed to count posts: %w", err)
	}
	posts, err := s.posts.List(ctx, (page-1)*s.perPage, s.perPage)
	if err != nil {
		return models.PostPage{}, fmt.Errorf("failed to list posts: %w", err)
	}
	return models.PostPage{Posts: posts, TotalItems: total}, nil
}

// GetPost retrieves a single post.
func (s *FeedService) GetPost(ctx context.Context, id auth.Identity, postID string) (models.Post, error) {
	if !id.Authenticated {
		return models.Post{}, errNotAuthenticated
	}
	return s.load(ctx, postID)
}

// CreatePost stores a new post owned by the caller and announces it.
func (s *FeedService) CreatePost(ctx context.Context, id auth.Identity, in models.PostInput) (post models.Post, err error) {
	defer func() { metrics.RecordMutation(websocket.ActionCreate, err) }()

	if !id.Authenticated {
		return models.Post{}, errNotAuthenticated
	}
	if errs := validation.Post(in); len(errs) > 0 {
		return models.Post{}, apperr.Validation("Validation failed, entered data is incorrect.", errs)
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, apperr.Unauthorized("Invalid user.")
		}
		return models.Post{}, err
	}

	post, err = s.posts.Insert(ctx, models.Post{
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		ImageURL: in.ImageURL,
		Creator:  models.Creator{ID: user.ID, Name: user.Name},
	})
	if err != nil {
		return models.Post{}, err
	}

	user.AddPost(post.ID)
	if _, err := s.users.Save(ctx, user); err != nil {
		// The post row stays; there is no transaction spanning both documents.
		log.Error().Err(err).Str("post_id", post.ID).Str("user_id", user.ID).Msg("Post created but owner list not updated")
		return models.Post{}, fmt.Errorf("%w: %w", ErrPostPersisted, err)
	}

	log.Info().Str("post_id", post.ID).Str("user_id", user.ID).Msg("Post created")
	s.publish(websocket.ActionCreate, post)
	return post, nil
}

// UpdatePost replaces title, content and optionally the image of a post owned by the caller.
// An empty image path, or the literal "undefined", keeps the current image.
func (s *FeedService) UpdatePost(ctx context.Context, id auth.Identity, postID string, in models.PostInput) (post models.Post, err error) {
	defer func() { metrics.RecordMutation(websocket.ActionUpdate, err) }()

	if !id.Authenticated {
		return models.Post{}, errNotAuthenticated
	}
	if errs := validation.Post(in); len(errs) > 0 {
		return models.Post{}, apperr.Validation("Validation failed, entered data is incorrect.", errs)
	}

	post, err = s.load(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	if post.Creator.ID != id.UserID {
		return models.Post{}, errNotOwner
	}

	image := in.ImageURL
	if image == "" || image == "undefined" {
		image = post.ImageURL
	}
	if image != post.ImageURL {
		s.clearImage(ctx, post.ImageURL, post.ID)
	}

	post.Title = strings.TrimSpace(in.Title)
	post.Content = strings.TrimSpace(in.Content)
	post.ImageURL = image
	post, err = s.posts.Save(ctx, post)
	if err != nil {
		return models.Post{}, err
	}

	log.Info().Str("post_id", post.ID).Str("user_id", id.UserID).Msg("Post updated")
	s.publish(websocket.ActionUpdate, post)
	return post, nil
}

// DeletePost removes a post owned by the caller, its image and the owner's reference to it.
func (s *FeedService) DeletePost(ctx context.Context, id auth.Identity, postID string) (err error) {
	defer func() { metrics.RecordMutation(websocket.ActionDelete, err) }()

	if !id.Authenticated {
		return errNotAuthenticated
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return err
	}
	if post.Creator.ID != id.UserID {
		return errNotOwner
	}

	s.clearImage(ctx, post.ImageURL, post.ID)

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		log.Error().Err(err).Str("post_id", post.ID).Str("user_id", id.UserID).Msg("Post deleted but owner could not be loaded")
		return err
	}
	user.RemovePost(post.ID)
	if _, err := s.users.Save(ctx, user); err != nil {
		log.Error().Err(err).Str("post_id", post.ID).Str("user_id", id.UserID).Msg("Post deleted but owner list not updated")
		return err
	}

	log.Info().Str("post_id", post.ID).Str("user_id", id.UserID).Msg("Post deleted")
	s.publish(websocket.ActionDelete, post.ID)
	return nil
}

func (s *FeedService) load(ctx context.Context, postID string) (models.Post, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, errPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

// ReleaseImage removes an image the caller no longer needs, e.g. one replaced
// by a fresh upload. Images used by another user's post are refused.
func (s *FeedService) ReleaseImage(ctx context.Context, id auth.Identity, path string) error {
	if !id.Authenticated {
		return errNotAuthenticated
	}
	if path == "" {
		return nil
	}

	refs, err := s.posts.ImageRefs(ctx, path)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.CreatorID != id.UserID {
			return errNotOwner
		}
	}
	return s.images.Remove(path)
}

// clearImage removes the image superseded on postID unless another post still
// uses it. Failures are logged, never returned.
func (s *FeedService) clearImage(ctx context.Context, path, postID string) {
	if path == "" {
		return
	}

	refs, err := s.posts.ImageRefs(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("image", path).Msg("Failed to check image references, keeping image")
		return
	}
	for _, ref := range refs {
		if ref.PostID != postID {
			log.Info().Str("image", path).Str("post_id", ref.PostID).Msg("Image still used by another post, keeping it")
			return
		}
	}

	if err := s.images.Remove(path); err != nil {
		log.Warn().Err(err).Str("image", path).Msg("Failed to remove image")
	}
}

// publish hands the event to the hub without waiting for delivery.
func (s *FeedService) publish(action string, payload interface{}) {
	err := s.hub.Publish(websocket.NewPostMessage(action, payload))
	metrics.RecordBroadcast(action, err)
	if err == nil {
		return
	}

	ev := log.Warn()
	if errors.Is(err, websocket.ErrNotInitialized) {
		ev = log.Error()
	}
	ev.Err(err).Str("action", action).Msg("Failed to broadcast post event")
}
