package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"

	"recipes-api/internal/auth"
)

const (
	maxJSONBodyBytes = 1 << 20

	maxNameLength         = 500
	maxDescriptionLength  = 5000
	maxInstructionsLength = 10000
	maxServings           = 100

	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the recipe persistence the handler needs.
type Store interface {
	Create(ctx context.Context, input CreateInput) (Recipe, error)
	GetByID(ctx context.Context, id string) (Recipe, error)
	List(ctx context.Context, filter Filter) (Page, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createRecipeRequest struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Instructions    string            `json:"instructions"`
	CookTimeMinutes int               `json:"cook_time_minutes"`
	PrepTimeMinutes int               `json:"prep_time_minutes"`
	Servings        int               `json:"servings"`
	Ingredients     []IngredientInput `json:"ingredients"`
	CategoryIDs     []string          `json:"category_ids"`
	ImageURLs       []string          `json:"image_urls"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	authorID := auth.UserIDFromContext(r.Context())
	if authorID == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createRecipeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if message, ok := validateCreateRequest(&body); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	created, err := h.store.Create(r.Context(), CreateInput{
		AuthorID:        authorID,
		Name:            body.Name,
		Description:     body.Description,
		Instructions:    body.Instructions,
		CookTimeMinutes: body.CookTimeMinutes,
		PrepTimeMinutes: body.PrepTimeMinutes,
		Servings:        body.Servings,
		Ingredients:     body.Ingredients,
		CategoryIDs:     body.CategoryIDs,
		ImageURLs:       body.ImageURLs,
	})
	if err != nil {
		if errors.Is(err, ErrBadReference) {
			writeError(w, http.StatusBadRequest, "unknown unit or category id")
			return
		}
		captureError(w, err, "failed to create recipe")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recipe id is required")
		return
	}

	recipe, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		captureError(w, err, "failed to load recipe")
		return
	}

	writeJSON(w, http.StatusOK, recipe)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := Filter{
		AuthorID:   strings.TrimSpace(query.Get("author_id")),
		CategoryID: strings.TrimSpace(query.Get("category_id")),
		Page:       parsePositiveInt(query.Get("page"), 1),
		PageSize:   parsePositiveInt(query.Get("page_size"), defaultPageSize),
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	page, err := h.store.List(r.Context(), filter)
	if err != nil {
		captureError(w, err, "failed to list recipes")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func validateCreateRequest(body *createRecipeRequest) (string, bool) {
	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)
	body.Instructions = strings.TrimSpace(body.Instructions)

	switch {
	case body.Name == "" || len(body.Name) > maxNameLength:
		return "recipe name is required", false
	case len(body.Description) > maxDescriptionLength:
		return "description is too long", false
	case body.Instructions == "" || len(body.Instructions) > maxInstructionsLength:
		return "instructions are required", false
	case body.CookTimeMinutes < 1:
		return "cook time must be at least one minute", false
	case body.PrepTimeMinutes < 1:
		return "prep time must be at least one minute", false
	case body.Servings < 1 || body.Servings > maxServings:
		return "servings must be between 1 and 100", false
	case len(body.Ingredients) == 0:
		return "at least one ingredient is required", false
	case len(body.CategoryIDs) == 0:
		return "at least one category is required", false
	}

	for i := range body.Ingredients {
		ingredient := &body.Ingredients[i]
		ingredient.Name = strings.TrimSpace(ingredient.Name)
		if ingredient.Name == "" {
			return "ingredient name is required", false
		}
		if ingredient.Quantity <= 0 {
			return "ingredient quantity must be positive", false
		}
		if strings.TrimSpace(ingredient.UnitID) == "" {
			return "ingredient unit is required", false
		}
	}

	for _, categoryID := range body.CategoryIDs {
		if strings.TrimSpace(categoryID) == "" {
			return "category id is required", false
		}
	}

	return "", true
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
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
