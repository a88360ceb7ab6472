package handlers

import (
	"net/http"

	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/services"
	"github.com/rs/zerolog/hlog"
)

// ImageHandler handles standalone image uploads.
type ImageHandler struct {
	service services.FeedServiceProvider
	images  ImageStore
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(service services.FeedServiceProvider, images ImageStore) *ImageHandler {
	return &ImageHandler{service: service, images: images}
}

// Upload stores the "image" file and releases the image named by "oldPath", if any.
// A refused or failed release is logged; the new file is kept either way.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	path, err := saveUpload(r, h.images, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if path == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No file provided!"})
		return
	}

	if old := values["oldPath"]; old != "" {
		if err := h.service.ReleaseImage(r.Context(), auth.FromContext(r.Context()), old); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("image", old).Msg("Replaced image not removed")
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "File stored.", "filePath": path})
}
