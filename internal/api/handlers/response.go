package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/images"
	"github.com/rs/zerolog/hlog"
)

// maxUploadSize bounds multipart bodies held in memory; larger parts spill to disk.
const maxUploadSize = 10 << 20

// ImageStore saves uploaded images and removes superseded ones.
type ImageStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Remove(path string) error
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps err onto its status code. Unclassified failures are logged
// and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	}

	body := map[string]interface{}{"message": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["data"] = appErr.Fields
	}
	writeJSON(w, appErr.Status(), body)
}

// formValues reads a request body sent as JSON, multipart or url-encoded form.
// JSON values that are not strings are ignored.
func formValues(r *http.Request) (map[string]string, error) {
	values := make(map[string]string)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, apperr.Validation("Invalid request body.", nil)
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				values[k] = s
			}
		}
		return values, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, apperr.Validation("Invalid request body.", nil)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Validation("Invalid request body.", nil)
		}
	}

	for k, v := range r.Form {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	return values, nil
}

// saveUpload stores the multipart file in field, if any. A missing file or a
// file that is not an accepted image yields an empty path and no error.
func saveUpload(r *http.Request, store ImageStore, field string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return "", nil
	}

	path, err := store.Save(files[0])
	if errors.Is(err, images.ErrUnsupportedType) {
		hlog.FromRequest(r).Debug().Str("filename", files[0].Filename).Msg("Ignoring upload that is not an image")
		return "", nil
	}
	return path, err
}
