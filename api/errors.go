package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/arllen133/usersvc/orm"
)

// HTTPError is a failure with the status and detail the client sees.
// It is rendered as {"detail": Detail}.
type HTTPError struct {
	Status int
	Detail any
	Err    error // cause, logged for 5xx and never sent
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %v: %v", e.Status, e.Detail, e.Err)
	}
	return fmt.Sprintf("%d %v", e.Status, e.Detail)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError returns an HTTPError with no underlying cause.
func NewHTTPError(status int, detail any) *HTTPError {
	return &HTTPError{Status: status, Detail: detail}
}

// ValidationIssue is one entry of a 422 detail list.
type ValidationIssue struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

func validationError(issues ...ValidationIssue) *HTTPError {
	return &HTTPError{Status: http.StatusUnprocessableEntity, Detail: issues}
}

// Translate maps err to the response it produces.
// Handlers return *HTTPError for anything they want the client to see;
// everything else becomes a bare 404 or 500.
func Translate(err error) *HTTPError {
	var he *HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, orm.ErrNotFound):
		return &HTTPError{Status: http.StatusNotFound, Detail: "Not Found", Err: err}
	case errors.Is(err, orm.ErrDuplicate):
		return &HTTPError{Status: http.StatusBadRequest, Detail: "Email already registered", Err: err}
	}
	return &HTTPError{Status: http.StatusInternalServerError, Detail: "Internal Server Error", Err: err}
}

type detailBody struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, he *HTTPError) {
	writeJSON(w, he.Status, detailBody{Detail: he.Detail})
}
