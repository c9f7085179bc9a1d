package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/arllen133/usersvc/models"
	"github.com/arllen133/usersvc/orm"
)

// Database hands out request-scoped sessions.
type Database interface {
	Pinger
	WithSession(ctx context.Context, fn func(s *orm.Session) error) error
}

type username struct {
	Username string `json:"username"`
}

type userHandlers struct {
	db Database
}

// UsersGroup serves the static user endpoints and the persisted user
// endpoints under one prefix. Numeric ids are matched before usernames.
func UsersGroup(db Database) Group {
	h := userHandlers{db: db}
	return Group{
		Prefix: "/users",
		Tags:   []string{"users"},
		Routes: []Route{
			{Method: http.MethodGet, Path: "/", Name: "read_users", Summary: "Read Users", Handler: readUsers},
			{
				Method:    http.MethodPost,
				Path:      "/",
				Name:      "create_user",
				Summary:   "Create User",
				Responses: map[int]string{http.StatusCreated: "Created", http.StatusBadRequest: "Email already registered"},
				Handler:   h.create,
			},
			{Method: http.MethodGet, Path: "/me", Name: "read_user_me", Summary: "Read User Me", Handler: readUserMe},
			{
				Method:    http.MethodGet,
				Path:      "/{user_id:[0-9]+}",
				Name:      "read_user_by_id",
				Summary:   "Read User By Id",
				Responses: map[int]string{http.StatusNotFound: "User not found"},
				Handler:   h.get,
			},
			{Method: http.MethodGet, Path: "/{username}", Name: "read_user", Summary: "Read User", Handler: readUser},
		},
	}
}

func readUsers(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, []username{{"Rick"}, {"Morty"}})
	return nil
}

func readUserMe(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, username{"fakecurrentuser"})
	return nil
}

func readUser(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, username{mux.Vars(r)["username"]})
	return nil
}

func (h userHandlers) create(w http.ResponseWriter, r *http.Request) error {
	user, err := decodeUserCreate(r)
	if err != nil {
		return err
	}

	ctx := r.Context()
	err = h.db.WithSession(ctx, func(s *orm.Session) error {
		return s.Transaction(ctx, func(s *orm.Session) error {
			return orm.NewRepository[models.User](s).Create(ctx, user)
		})
	})
	if err != nil {
		return userError(err)
	}
	writeJSON(w, http.StatusCreated, user)
	return nil
}

func (h userHandlers) get(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		// all digits but out of int64 range
		return validationError(ValidationIssue{Type: "int_parsing", Loc: []string{"path", "user_id"}, Msg: "Input should be a valid integer"})
	}

	ctx := r.Context()
	var user *models.User
	err = h.db.WithSession(ctx, func(s *orm.Session) error {
		user, err = orm.NewRepository[models.User](s).FindOne(ctx, id)
		return err
	})
	if err != nil {
		return userError(err)
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func userError(err error) error {
	switch {
	case errors.Is(err, orm.ErrDuplicate):
		return &HTTPError{Status: http.StatusBadRequest, Detail: "Email already registered", Err: err}
	case errors.Is(err, orm.ErrNotFound):
		return &HTTPError{Status: http.StatusNotFound, Detail: "User not found", Err: err}
	}
	return &HTTPError{Status: http.StatusInternalServerError, Detail: "Database error occurred", Err: err}
}

// decodeUserCreate reads name, email and age from a JSON body, or from the
// query string and form fields otherwise.
func decodeUserCreate(r *http.Request) (*models.User, error) {
	mediatype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediatype == "application/json" {
		return decodeUserJSON(r)
	}

	if err := r.ParseForm(); err != nil {
		return nil, validationError(ValidationIssue{Type: "value_error", Loc: []string{"body"}, Msg: err.Error()})
	}

	var issues []ValidationIssue
	user := &models.User{Name: r.Form.Get("name"), Email: r.Form.Get("email")}
	for _, f := range []string{"name", "email"} {
		if !r.Form.Has(f) {
			issues = append(issues, ValidationIssue{Type: "missing", Loc: []string{"query", f}, Msg: "Field required"})
		}
	}
	if r.Form.Has("age") {
		age, err := strconv.Atoi(r.Form.Get("age"))
		if err != nil {
			issues = append(issues, ValidationIssue{Type: "int_parsing", Loc: []string{"query", "age"}, Msg: "Input should be a valid integer, unable to parse string as an integer"})
		}
		user.Age = &age
	}
	if len(issues) > 0 {
		return nil, validationError(issues...)
	}
	return user, nil
}

func decodeUserJSON(r *http.Request) (*models.User, error) {
	var in struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Age   *int    `json:"age"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, validationError(typeIssue(te))
		}
		return nil, validationError(ValidationIssue{Type: "json_invalid", Loc: []string{"body"}, Msg: "JSON decode error"})
	}

	var issues []ValidationIssue
	if in.Name == nil {
		issues = append(issues, ValidationIssue{Type: "missing", Loc: []string{"body", "name"}, Msg: "Field required"})
	}
	if in.Email == nil {
		issues = append(issues, ValidationIssue{Type: "missing", Loc: []string{"body", "email"}, Msg: "Field required"})
	}
	if len(issues) > 0 {
		return nil, validationError(issues...)
	}

	return &models.User{Name: *in.Name, Email: *in.Email, Age: in.Age}, nil
}

// typeIssue describes a JSON value that does not fit its target field.
// te.Value is "number", "number 1.5", "string", "bool", "array" or "object".
func typeIssue(te *json.UnmarshalTypeError) ValidationIssue {
	issue := ValidationIssue{Loc: []string{"body", te.Field}}
	switch te.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		number, isNumber := strings.CutPrefix(te.Value, "number ")
		switch {
		case isNumber && strings.ContainsAny(number, ".eE"):
			issue.Type, issue.Msg = "int_from_float", "Input should be a valid integer, got a number with a fractional part"
		case isNumber:
			issue.Type, issue.Msg = "int_parsing_size", "Input should be a valid integer, unable to parse input as an integer"
		case te.Value == "string":
			issue.Type, issue.Msg = "int_parsing", "Input should be a valid integer, unable to parse string as an integer"
		default:
			issue.Type, issue.Msg = "int_type", "Input should be a valid integer"
		}
	case reflect.String:
		issue.Type, issue.Msg = "string_type", "Input should be a valid string"
	default:
		issue.Type, issue.Msg = "value_error", "Input should be a valid "+te.Type.String()
	}
	return issue
}
