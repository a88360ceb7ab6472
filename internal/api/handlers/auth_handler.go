package handlers

import (
	"net/http"

	"github.com/isdelr/feedhub/internal/auth"
	"github.com/isdelr/feedhub/internal/models"
	"github.com/isdelr/feedhub/internal/services"
)

// AuthHandler handles signup, login and the caller's status.
type AuthHandler struct {
	service services.UserServiceProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider) *AuthHandler {
	return &AuthHandler{service: service}
}

// Signup handles new user registration.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.Signup(r.Context(), models.SignupInput{
		Email:    values["email"],
		Name:     values["name"],
		Password: values["password"],
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created!", "userId": user.ID})
}

// Login handles credential checks and token issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.service.Login(r.Context(), values["email"], values["password"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetStatus returns the caller's status text.
func (h *AuthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": user.Status})
}

// UpdateStatus replaces the caller's status text.
func (h *AuthHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.service.UpdateStatus(r.Context(), auth.FromContext(r.Context()), values["status"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User updated."})
}
