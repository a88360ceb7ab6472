package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/services"
	"github.com/isdelr/feedhub/internal/validation"
	"github.com/rs/zerolog/hlog"
)

// FeedHandler handles HTTP requests for feed posts.
type FeedHandler struct {
	service services.FeedServiceProvider
	images  ImageStore
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(service services.FeedServiceProvider, images ImageStore) *FeedHandler {
	return &FeedHandler{service: service, images: images}
}

// GetAll handles retrieving one page of posts.
func (h *FeedHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	result, err := h.service.ListPosts(r.Context(), auth.FromContext(r.Context()), page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Fetched posts successfully.",
		"posts":      result.Posts,
		"totalItems": result.TotalItems,
	})
}

// Get handles retrieving a single post by its ID.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Post fetched.", "post": post})
}

// Create handles a multipart post submission with a required image.
func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := models.PostInput{Title: values["title"], Content: values["content"]}
	if errs := validation.Post(in); len(errs) > 0 {
		writeError(w, r, apperr.Validation("Validation failed, entered data is incorrect.", errs))
		return
	}

	in.ImageURL, err = saveUpload(r, h.images, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if in.ImageURL == "" {
		writeError(w, r, apperr.Validation("No image provided.", nil))
		return
	}

	post, err := h.service.CreatePost(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		if !errors.Is(err, services.ErrPostPersisted) {
			h.discard(r, in.ImageURL)
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Post created successfully!",
		"post":    post,
		"creator": post.Creator,
	})
}

// Update handles replacing a post. The image is either a new upload or the
// existing path sent back in the "image" field.
func (h *FeedHandler) Update(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := models.PostInput{Title: values["title"], Content: values["content"], ImageURL: values["image"]}
	if errs := validation.Post(in); len(errs) > 0 {
		writeError(w, r, apperr.Validation("Validation failed, entered data is incorrect.", errs))
		return
	}

	uploaded, err := saveUpload(r, h.images, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if uploaded != "" {
		in.ImageURL = uploaded
	}
	if in.ImageURL == "" {
		writeError(w, r, apperr.Validation("No file picked.", nil))
		return
	}

	post, err := h.service.UpdatePost(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "postId"), in)
	if err != nil {
		h.discard(r, uploaded)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Post updated!", "post": post})
}

// Delete handles removing a post.
func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePost(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "postId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted post."})
}

// discard removes an image uploaded for a request that was then rejected.
func (h *FeedHandler) discard(r *http.Request, path string) {
	if path == "" {
		return
	}
	if err := h.images.Remove(path); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("image", path).Msg("Failed to discard rejected upload")
	}
}
