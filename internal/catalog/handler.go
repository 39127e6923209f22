package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const (
	maxJSONBodyBytes      = 1 << 20
	maxCategoryNameLength = 100
)

// Store is the reference-data access the handler needs.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
	ListUnits(ctx context.Context) ([]Unit, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		captureError(w, err, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createCategoryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > maxCategoryNameLength {
		writeError(w, http.StatusBadRequest, "category name is required")
		return
	}

	category, err := h.store.CreateCategory(r.Context(), body.Name)
	if err != nil {
		if errors.Is(err, ErrCategoryExists) {
			writeError(w, http.StatusConflict, "category already exists")
			return
		}
		captureError(w, err, "failed to create category")
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.store.ListUnits(r.Context())
	if err != nil {
		captureError(w, err, "failed to list units")
		return
	}

	writeJSON(w, http.StatusOK, units)
}

func captureError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
