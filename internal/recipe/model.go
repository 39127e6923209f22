package recipe

import "time"

type Author struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Ingredient struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	UnitID   string  `json:"unit_id"`
	UnitName string  `json:"unit"`
}

type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Recipe struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Instructions    string        `json:"instructions"`
	CookTimeMinutes int           `json:"cook_time_minutes"`
	PrepTimeMinutes int           `json:"prep_time_minutes"`
	Servings        int           `json:"servings"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
	Author          Author        `json:"author"`
	Ingredients     []Ingredient  `json:"ingredients"`
	Categories      []CategoryRef `json:"categories"`
	Images          []string      `json:"images"`
}

type IngredientInput struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	UnitID   string  `json:"unit_id"`
}

type CreateInput struct {
	AuthorID        string
	Name            string
	Description     string
	Instructions    string
	CookTimeMinutes int
	PrepTimeMinutes int
	Servings        int
	Ingredients     []IngredientInput
	CategoryIDs     []string
	ImageURLs       []string
}

type Filter struct {
	AuthorID   string
	CategoryID string
	Page       int
	PageSize   int
}

type Page struct {
	Items    []Recipe `json:"items"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int64    `json:"total"`
}
