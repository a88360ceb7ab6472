package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusByKind(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("Invalid input.", nil), http.StatusUnprocessableEntity},
		{Unauthorized("Not authenticated."), http.StatusUnauthorized},
		{Forbidden("Not authorized!"), http.StatusForbidden},
		{NotFound("Could not find post."), http.StatusNotFound},
		{Duplicate("User exists already!"), http.StatusUnprocessableEntity},
		{From(errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Status(), tt.err.Message)
	}
}

func TestFromKeepsClassifiedErrors(t *testing.T) {
	wrapped := fmt.Errorf("update post: %w", Forbidden("Not authorized!"))

	got := From(wrapped)
	assert.Equal(t, KindForbidden, got.Kind)
	assert.Equal(t, "Not authorized!", got.Message)
	assert.True(t, Is(wrapped, KindForbidden))
}

func TestFromHidesInternalDetail(t *testing.T) {
	got := From(errors.New("sql: connection refused"))

	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, GenericMessage, got.Message)
	assert.ErrorContains(t, got, "connection refused")
}

func TestExtensions(t *testing.T) {
	err := Validation("Invalid input.", []FieldError{{Field: "title", Message: "Title is invalid"}})

	ext := err.Extensions()
	assert.Equal(t, http.StatusUnprocessableEntity, ext["code"])
	assert.Len(t, ext["data"], 1)

	assert.NotContains(t, NotFound("No post found.").Extensions(), "data")
}
