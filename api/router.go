// Package api composes the HTTP surface from independent route groups.
//
// A Group bundles routes under one path prefix with shared tags and
// preconditions. Preconditions run as gorilla/mux middleware on the group's
// subrouter, so a failing check answers the request before any handler body.
//
//	r := api.NewRouter(logger)
//	r.Include(api.Group{
//	    Prefix:        "/items",
//	    Tags:          []string{"items"},
//	    Preconditions: []api.Precondition{api.HeaderToken("X-Token", verifier)},
//	    Routes:        routes,
//	})
package api

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// HandlerFunc is an endpoint body. A returned error is passed through Translate.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Precondition is a check evaluated before the handler body.
// A non-nil error short-circuits the request.
type Precondition func(r *http.Request) error

// Route is one endpoint definition.
type Route struct {
	Method    string
	Path      string // relative to the group prefix
	Name      string
	Summary   string
	Tags      []string
	Responses map[int]string // documented non-default responses
	Handler   HandlerFunc
}

// Group is a set of routes sharing a prefix, tags and preconditions.
type Group struct {
	Prefix        string
	Tags          []string
	Preconditions []Precondition
	Responses     map[int]string
	Routes        []Route
}

// Router is the composition root for groups.
type Router struct {
	mux           *mux.Router
	logger        *slog.Logger
	preconditions []Precondition
	catalog       []CatalogEntry
}

// NewRouter returns an empty router. Unknown paths and methods answer
// with {"detail": "Not Found"} and {"detail": "Method Not Allowed"}.
// A path that only matches with its trailing slash added or removed is
// redirected with 307, which keeps the method and body.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if target, ok := slashRedirect(m, req); ok {
			http.Redirect(w, req, target, http.StatusTemporaryRedirect)
			return
		}
		writeError(w, NewHTTPError(http.StatusNotFound, "Not Found"))
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"))
	})
	return &Router{mux: m, logger: logger}
}

// Require adds a precondition to every group included afterwards.
func (r *Router) Require(p Precondition) {
	r.preconditions = append(r.preconditions, p)
}

// Include mounts g. Routes are matched in the order they are listed, so a
// more specific path must come before a catch-all one.
func (r *Router) Include(g Group) {
	var sub *mux.Router
	if g.Prefix == "" {
		sub = r.mux.NewRoute().Subrouter()
	} else {
		sub = r.mux.PathPrefix(g.Prefix).Subrouter()
	}

	pre := append(slices.Clone(r.preconditions), g.Preconditions...)
	if len(pre) > 0 {
		sub.Use(r.guard(pre))
	}

	for _, rt := range g.Routes {
		sub.Handle(rt.Path, r.adapt(rt.Handler)).Methods(rt.Method).Name(rt.Name)
		r.catalog = append(r.catalog, newCatalogEntry(g, rt))
	}
}

// Handle registers a plain handler outside any group. It has no preconditions.
func (r *Router) Handle(method, path string, h http.Handler) {
	r.mux.Handle(path, h).Methods(method)
}

// Use installs middleware that runs for every matched route.
func (r *Router) Use(mw ...mux.MiddlewareFunc) {
	r.mux.Use(mw...)
}

// slashRedirect returns req's URL with the trailing slash toggled when that
// path matches a route for req's method.
func slashRedirect(m *mux.Router, req *http.Request) (string, bool) {
	p := req.URL.Path
	switch {
	case p == "/" || p == "":
		return "", false
	case strings.HasSuffix(p, "/"):
		p = strings.TrimSuffix(p, "/")
	default:
		p += "/"
	}

	alt := req.Clone(req.Context())
	alt.URL.Path, alt.URL.RawPath = p, ""
	var match mux.RouteMatch
	if !m.Match(alt, &match) || match.MatchErr != nil {
		return "", false
	}
	u := *req.URL
	u.Path, u.RawPath = p, ""
	return u.RequestURI(), true
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) guard(pre []Precondition) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			for _, p := range pre {
				if err := p(req); err != nil {
					r.fail(w, req, err)
					return
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *Router) adapt(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.fail(w, req, err)
		}
	})
}

func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	he := Translate(err)
	if he.Status >= http.StatusInternalServerError {
		r.logger.LogAttrs(req.Context(), slog.LevelError, "request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", he.Status),
			slog.Any("error", err),
		)
	}
	writeError(w, he)
}

// CatalogEntry documents one mounted route.
type CatalogEntry struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Name      string            `json:"name"`
	Summary   string            `json:"summary,omitempty"`
	Tags      []string          `json:"tags"`
	Responses map[string]string `json:"responses,omitempty"`
}

func newCatalogEntry(g Group, rt Route) CatalogEntry {
	e := CatalogEntry{
		Method:  rt.Method,
		Path:    g.Prefix + rt.Path,
		Name:    rt.Name,
		Summary: rt.Summary,
		Tags:    append(append([]string{}, g.Tags...), rt.Tags...),
	}
	for _, src := range []map[int]string{g.Responses, rt.Responses} {
		for code, desc := range src {
			if e.Responses == nil {
				e.Responses = make(map[string]string)
			}
			e.Responses[strconv.Itoa(code)] = desc
		}
	}
	return e
}

// Catalog lists mounted routes in registration order.
func (r *Router) Catalog() []CatalogEntry {
	return slices.Clone(r.catalog)
}
