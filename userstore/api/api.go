// Package api exposes the per-user health records over HTTP. Every handler
// resolves the store from the authenticated username, never from the request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	authapi "github.com/andrebq/healthtrack/auth/api"
	"github.com/andrebq/healthtrack/internal/logutil"
	"github.com/andrebq/healthtrack/internal/views"
	"github.com/andrebq/healthtrack/userstore"
	"github.com/julienschmidt/httprouter"
)

const (
	maxBody = 64 << 10
)

type (
	Handler struct {
		deck  *userstore.Deck
		views *views.Set
		now   func() time.Time
	}

	// collection describes one record table in terms of Store methods.
	collection[T any] struct {
		path   string
		list   func(*userstore.Store, context.Context, int) ([]T, error)
		add    func(*userstore.Store, context.Context, T) (T, error)
		update func(*userstore.Store, context.Context, T) (T, error)
		remove func(*userstore.Store, context.Context, int64) error
		setID  func(*T, int64)
	}

	dataBody struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data,omitempty"`
	}

	errorBody struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	badRequest struct {
		reason string
	}
)

func (b badRequest) Error() string {
	return b.reason
}

// NewHandler serves the stores of deck. now may be nil.
func NewHandler(deck *userstore.Deck, views *views.Set, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{deck: deck, views: views, now: now}
}

// Mount registers /api/health (bearer token) and the dashboard at /
// (session cookie).
func (h *Handler) Mount(router *httprouter.Router, realm *authapi.SecurityRealm) {
	mountCollection(router, realm, h, collection[userstore.WeightEntry]{
		path:   "/api/health/weight",
		list:   (*userstore.Store).ListWeight,
		add:    (*userstore.Store).AddWeight,
		update: (*userstore.Store).UpdateWeight,
		remove: (*userstore.Store).DeleteWeight,
		setID:  func(w *userstore.WeightEntry, id int64) { w.ID = id },
	})
	mountCollection(router, realm, h, collection[userstore.Exercise]{
		path:   "/api/health/exercises",
		list:   (*userstore.Store).ListExercises,
		add:    (*userstore.Store).AddExercise,
		update: (*userstore.Store).UpdateExercise,
		remove: (*userstore.Store).DeleteExercise,
		setID:  func(e *userstore.Exercise, id int64) { e.ID = id },
	})
	mountCollection(router, realm, h, collection[userstore.Meal]{
		path:   "/api/health/meals",
		list:   (*userstore.Store).ListMeals,
		add:    (*userstore.Store).AddMeal,
		update: (*userstore.Store).UpdateMeal,
		remove: (*userstore.Store).DeleteMeal,
		setID:  func(m *userstore.Meal, id int64) { m.ID = id },
	})
	mountCollection(router, realm, h, collection[userstore.Goal]{
		path: "/api/health/goals",
		list: func(s *userstore.Store, ctx context.Context, _ int) ([]userstore.Goal, error) {
			return s.ListGoals(ctx)
		},
		add:    (*userstore.Store).AddGoal,
		update: (*userstore.Store).UpdateGoal,
		remove: (*userstore.Store).DeleteGoal,
		setID:  func(g *userstore.Goal, id int64) { g.ID = id },
	})
	router.Handler("POST", "/api/health/goals/:id/toggle", realm.Protect(http.HandlerFunc(h.toggleGoal)))
	router.Handler("GET", "/api/health/summary", realm.Protect(http.HandlerFunc(h.summary)))
	router.Handler("GET", "/", realm.RequireSession(http.HandlerFunc(h.dashboard)))
}

func mountCollection[T any](router *httprouter.Router, realm *authapi.SecurityRealm, h *Handler, c collection[T]) {
	router.Handler("GET", c.path, realm.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := h.store(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items, err := c.list(store, r.Context(), listLimit(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dataBody{Success: true, Data: items})
	})))
	router.Handler("POST", c.path, realm.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := h.store(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var item T
		if err := decodeBody(r, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item, err = c.add(store, r.Context(), item)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, dataBody{Success: true, Data: item})
	})))
	router.Handler("PUT", c.path+"/:id", realm.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := h.store(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var item T
		if err := decodeBody(r, &item); err != nil {
			writeError(w, r, err)
			return
		}
		c.setID(&item, id)
		item, err = c.update(store, r.Context(), item)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dataBody{Success: true, Data: item})
	})))
	router.Handler("DELETE", c.path+"/:id", realm.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := h.store(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := c.remove(store, r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dataBody{Success: true})
	})))
}

func (h *Handler) toggleGoal(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := store.ToggleGoal(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: goal})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.Parse(userstore.DateLayout, raw)
		if err != nil {
			writeError(w, r, badRequest{reason: "date must use YYYY-MM-DD"})
			return
		}
	}
	sum, err := store.Summary(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: sum})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	page := views.Page{Title: "Dashboard", Username: authapi.Username(r.Context())}
	log := logutil.GetOrDefault(r.Context())
	store, err := h.store(r)
	if errors.As(err, new(userstore.StoreNotFound)) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	} else if err != nil {
		log.Error().Err(err).Msg("Unable to open user store")
		page.Error = "Unable to load your data"
		h.views.Render(w, r, http.StatusInternalServerError, views.DashboardPage, page)
		return
	}
	sum, err := store.Summary(r.Context(), h.now())
	if err != nil {
		log.Error().Err(err).Msg("Unable to load summary")
		page.Error = "Unable to load your data"
		h.views.Render(w, r, http.StatusInternalServerError, views.DashboardPage, page)
		return
	}
	page.Data = sum
	h.views.Render(w, r, http.StatusOK, views.DashboardPage, page)
}

func (h *Handler) store(r *http.Request) (*userstore.Store, error) {
	username := authapi.Username(r.Context())
	if username == "" {
		return nil, errors.New("handler mounted without authentication")
	}
	// stores are provisioned by the gateway only, a token that outlived its
	// account must not bring the store back
	return h.deck.Lookup(r.Context(), username)
}

func recordID(r *http.Request) (int64, error) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest{reason: "invalid id"}
	}
	return id, nil
}

// listLimit reads ?limit=, "all" (or 0) returns every record.
func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	switch raw {
	case "":
		return userstore.DefaultListLimit
	case "all":
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return userstore.DefaultListLimit
	}
	return n
}

func decodeBody(r *http.Request, out interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(out)
	if err != nil {
		return badRequest{reason: "Invalid request body"}
	}
	return nil
}

func statusCode(err error) int {
	var (
		invalid  userstore.InvalidRecord
		notFound userstore.RecordNotFound
		bad      badRequest
		gone     userstore.StoreNotFound
	)
	switch {
	case errors.As(err, &gone):
		return http.StatusUnauthorized
	case errors.As(err, &invalid), errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	msg := err.Error()
	if status == http.StatusUnauthorized {
		msg = "Unauthorized"
	} else if status == http.StatusInternalServerError {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Request failed")
		msg = "Internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
