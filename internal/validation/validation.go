// Package validation checks inbound payloads. It never touches storage.
package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/isdelr/feedhub/internal/models"
)

var validate = validator.New()

// Field order in these structs is the order errors are reported in.
type postRules struct {
	Title   string `validate:"required,min=5"`
	Content string `validate:"required,min=5"`
}

type signupRules struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=5"`
	Name     string `validate:"required"`
}

type statusRules struct {
	Status string `validate:"required"`
}

var messages = map[string]apperr.FieldError{
	"Title":    {Field: "title", Message: "Title is invalid"},
	"Content":  {Field: "content", Message: "Content is invalid"},
	"Email":    {Field: "email", Message: "E-mail is invalid"},
	"Password": {Field: "password", Message: "Password too short"},
	"Name":     {Field: "name", Message: "Name is required"},
	"Status":   {Field: "status", Message: "Status is required"},
}

// Post validates title and content of a post payload.
func Post(in models.PostInput) []apperr.FieldError {
	return check(postRules{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
	})
}

// Signup validates the fields of a new account. The password is not trimmed.
func Signup(in models.SignupInput) []apperr.FieldError {
	return check(signupRules{
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
		Name:     strings.TrimSpace(in.Name),
	})
}

// Status validates a user status update.
func Status(status string) []apperr.FieldError {
	return check(statusRules{Status: strings.TrimSpace(status)})
}

func check(rules interface{}) []apperr.FieldError {
	err := validate.Struct(rules)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable with a malformed rules struct.
		return []apperr.FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, messages[fe.StructField()])
	}
	return fields
}
