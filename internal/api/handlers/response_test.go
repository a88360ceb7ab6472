package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(rec, req, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperr.GenericMessage, gjson.Get(rec.Body.String(), "message").String())
	assert.False(t, gjson.Get(rec.Body.String(), "data").Exists())
}

func TestWriteErrorIncludesFieldData(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(rec, req, apperr.Validation("Validation failed.", []apperr.FieldError{{Field: "email", Message: "E-mail is invalid"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "email", gjson.Get(rec.Body.String(), "data.0.field").String())
}

func TestFormValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=a%40x.com&name=Ann"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	values, err := formValues(req)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", values["email"])
	assert.Equal(t, "Ann", values["name"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"Busy","count":3}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	values, err = formValues(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "Busy"}, values)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	_, err = formValues(req)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
