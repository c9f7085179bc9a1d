package api

import (
	"context"
	"net/http"
)

// AdminGroup serves the restricted admin record.
func AdminGroup() Group {
	return Group{
		Prefix:    "/admin",
		Tags:      []string{"admin"},
		Responses: map[int]string{http.StatusTeapot: "I'm a teapot"},
		Routes: []Route{
			{Method: http.MethodGet, Path: "/", Name: "read_admin", Summary: "Read Admin", Handler: adminData},
		},
	}
}

func adminData(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, message{Message: "Admin getting schwifty"})
	return nil
}

type message struct {
	Message string `json:"message"`
}

// RootGroup serves the application index.
func RootGroup() Group {
	return Group{
		Routes: []Route{
			{Method: http.MethodGet, Path: "/", Name: "root", Summary: "Root", Handler: func(w http.ResponseWriter, _ *http.Request) error {
				writeJSON(w, http.StatusOK, message{Message: "Hello Bigger Applications!"})
				return nil
			}},
		},
	}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(db Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			writeError(w, NewHTTPError(http.StatusServiceUnavailable, "Database unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func catalogHandler(r *Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, r.Catalog())
	})
}
