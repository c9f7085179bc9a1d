package api

import (
	"crypto/subtle"
	"net/http"
)

// Verifier decides whether a presented token is acceptable.
type Verifier interface {
	Verify(token string) bool
}

// StaticToken accepts exactly one configured secret.
// The empty StaticToken accepts nothing.
type StaticToken string

func (t StaticToken) Verify(token string) bool {
	if t == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1
}

// HeaderToken requires header to carry a token accepted by v.
func HeaderToken(header string, v Verifier) Precondition {
	return func(r *http.Request) error {
		if !v.Verify(r.Header.Get(header)) {
			return NewHTTPError(http.StatusBadRequest, header+" header invalid")
		}
		return nil
	}
}

// QueryToken requires the query parameter param to carry a token accepted by v.
func QueryToken(param string, v Verifier) Precondition {
	return func(r *http.Request) error {
		if !v.Verify(r.URL.Query().Get(param)) {
			return NewHTTPError(http.StatusBadRequest, "No Jenny token provided")
		}
		return nil
	}
}
