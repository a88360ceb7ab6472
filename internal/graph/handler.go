package graph

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/isdelr/feedhub/internal/apperr"
	"github.com/rs/zerolog/hlog"
)

type request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Handler executes GraphQL requests posted as JSON.
type Handler struct {
	schema graphql.Schema
}

// NewHandler creates a new Handler.
func NewHandler(schema graphql.Schema) *Handler {
	return &Handler{schema: schema}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrors(w, http.StatusMethodNotAllowed, "Only POST is supported.")
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeErrors(w, http.StatusBadRequest, "Request must be a JSON object with a query.")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	for i, e := range result.Errors {
		result.Errors[i] = sanitize(r, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// sanitize replaces resolver failures with their classified message and
// extensions. Unclassified failures are logged and reported generically.
func sanitize(r *http.Request, e gqlerrors.FormattedError) gqlerrors.FormattedError {
	orig := e.OriginalError()
	var located *gqlerrors.Error
	if errors.As(orig, &located) {
		orig = located.OriginalError
	}
	if orig == nil {
		return e
	}

	appErr := apperr.From(orig)
	if appErr.Kind == apperr.KindInternal {
		hlog.FromRequest(r).Error().Err(orig).Interface("path", e.Path).Msg("GraphQL resolver failed")
	}
	e.Message = appErr.Message
	e.Extensions = appErr.Extensions()
	return e
}

func writeErrors(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]string{{"message": message}},
	})
}
