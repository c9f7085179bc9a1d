package api

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/gorilla/mux"
)

// ErrItemNotFound is returned by an ItemStore for an unknown id.
var ErrItemNotFound = errors.New("item not found")

// Item is a catalogue entry.
type Item struct {
	Name string `json:"name"`
}

// ItemStore is read access to items keyed by id.
type ItemStore interface {
	List(ctx context.Context) (map[string]Item, error)
	Get(ctx context.Context, id string) (Item, error)
}

type fixtureItems map[string]Item

// FixtureItems returns the built-in read-only catalogue.
func FixtureItems() ItemStore {
	return fixtureItems{
		"plumbus": {Name: "Plumbus"},
		"gun":     {Name: "Portal Gun"},
	}
}

func (f fixtureItems) List(context.Context) (map[string]Item, error) {
	return maps.Clone(map[string]Item(f)), nil
}

func (f fixtureItems) Get(_ context.Context, id string) (Item, error) {
	item, ok := f[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

// updatableItem is the only id PUT /items/{item_id} accepts.
const updatableItem = "plumbus"

type itemHandlers struct {
	store ItemStore
}

// ItemsGroup serves the item catalogue behind the X-Token header check.
func ItemsGroup(store ItemStore, v Verifier) Group {
	h := itemHandlers{store: store}
	return Group{
		Prefix:        "/items",
		Tags:          []string{"items"},
		Preconditions: []Precondition{HeaderToken("X-Token", v)},
		Responses:     map[int]string{http.StatusNotFound: "Not found"},
		Routes: []Route{
			{Method: http.MethodGet, Path: "/", Name: "read_items", Summary: "Read Items", Handler: h.list},
			{Method: http.MethodGet, Path: "/{item_id}", Name: "read_item", Summary: "Read Item", Handler: h.get},
			{
				Method:    http.MethodPut,
				Path:      "/{item_id}",
				Name:      "update_item",
				Summary:   "Update Item",
				Tags:      []string{"custom"},
				Responses: map[int]string{http.StatusForbidden: "Operation forbidden"},
				Handler:   h.update,
			},
		},
	}
}

func (h itemHandlers) list(w http.ResponseWriter, r *http.Request) error {
	items, err := h.store.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, items)
	return nil
}

func (h itemHandlers) get(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["item_id"]
	item, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrItemNotFound) {
		return &HTTPError{Status: http.StatusNotFound, Detail: "Item not found", Err: err}
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, struct {
		Name   string `json:"name"`
		ItemID string `json:"item_id"`
	}{item.Name, id})
	return nil
}

func (h itemHandlers) update(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["item_id"]
	if id != updatableItem {
		return NewHTTPError(http.StatusForbidden, "You can only update the item: "+updatableItem)
	}
	writeJSON(w, http.StatusOK, struct {
		ItemID string `json:"item_id"`
		Name   string `json:"name"`
	}{id, "The great Plumbus"})
	return nil
}
