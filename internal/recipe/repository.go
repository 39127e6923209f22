package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("recipe not found")
	// ErrBadReference covers unknown author, unit or category ids.
	ErrBadReference = errors.New("referenced record does not exist")
)

const foreignKeyViolation = "23503"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create writes the recipe and all of its ingredients, category links and
// images in one transaction. Any failure rolls the whole recipe back.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Recipe, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Recipe{}, fmt.Errorf("begin create recipe tx: %w", err)
	}
	defer tx.Rollback()

	recipeID := uuid.NewString()
	createdAt := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recipes (id, author_id, name, description, instructions, cook_time_minutes, prep_time_minutes, servings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, recipeID, input.AuthorID, input.Name, input.Description, input.Instructions,
		input.CookTimeMinutes, input.PrepTimeMinutes, input.Servings, createdAt); err != nil {
		return Recipe{}, mapWriteError("insert recipe", err)
	}

	for _, ingredient := range input.Ingredients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_ingredients (id, recipe_id, name, quantity, unit_id)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), recipeID, ingredient.Name, ingredient.Quantity, ingredient.UnitID); err != nil {
			return Recipe{}, mapWriteError("insert recipe ingredient", err)
		}
	}

	for _, categoryID := range input.CategoryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_categories (id, recipe_id, category_id, created_at)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), recipeID, categoryID, createdAt); err != nil {
			return Recipe{}, mapWriteError("insert recipe category", err)
		}
	}

	for _, imageURL := range input.ImageURLs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_images (id, recipe_id, url)
			VALUES ($1, $2, $3)
		`, uuid.NewString(), recipeID, imageURL); err != nil {
			return Recipe{}, mapWriteError("insert recipe image", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Recipe{}, fmt.Errorf("commit create recipe tx: %w", err)
	}

	return r.GetByID(ctx, recipeID)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Recipe, error) {
	var recipe Recipe
	err := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.description, r.instructions,
		       r.cook_time_minutes, r.prep_time_minutes, r.servings,
		       r.created_at, r.updated_at,
		       u.id, u.first_name, u.last_name
		FROM recipes r
		JOIN users u ON u.id = r.author_id
		WHERE r.id = $1
	`, id).Scan(
		&recipe.ID, &recipe.Name, &recipe.Description, &recipe.Instructions,
		&recipe.CookTimeMinutes, &recipe.PrepTimeMinutes, &recipe.Servings,
		&recipe.CreatedAt, &recipe.UpdatedAt,
		&recipe.Author.ID, &recipe.Author.FirstName, &recipe.Author.LastName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recipe{}, ErrNotFound
		}
		return Recipe{}, fmt.Errorf("query recipe: %w", err)
	}

	if err := r.loadChildren(ctx, &recipe); err != nil {
		return Recipe{}, err
	}

	return recipe, nil
}

// List returns one page of recipes, newest first, optionally filtered by
// author or category.
func (r *Repository) List(ctx context.Context, filter Filter) (Page, error) {
	where := ` WHERE TRUE`
	args := make([]any, 0, 4)

	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		where += fmt.Sprintf(" AND r.author_id = $%d", len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where += fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM recipe_categories rc WHERE rc.recipe_id = r.id AND rc.category_id = $%d)",
			len(args))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes r`+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count recipes: %w", err)
	}

	args = append(args, filter.PageSize)
	limitPos := len(args)
	args = append(args, (filter.Page-1)*filter.PageSize)
	offsetPos := len(args)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.name, r.description, r.instructions,
		       r.cook_time_minutes, r.prep_time_minutes, r.servings,
		       r.created_at, r.updated_at,
		       u.id, u.first_name, u.last_name
		FROM recipes r
		JOIN users u ON u.id = r.author_id
		%s
		ORDER BY r.created_at DESC, r.id
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos), args...)
	if err != nil {
		return Page{}, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	items := make([]Recipe, 0, filter.PageSize)
	for rows.Next() {
		var recipe Recipe
		if err := rows.Scan(
			&recipe.ID, &recipe.Name, &recipe.Description, &recipe.Instructions,
			&recipe.CookTimeMinutes, &recipe.PrepTimeMinutes, &recipe.Servings,
			&recipe.CreatedAt, &recipe.UpdatedAt,
			&recipe.Author.ID, &recipe.Author.FirstName, &recipe.Author.LastName,
		); err != nil {
			return Page{}, fmt.Errorf("scan recipe: %w", err)
		}
		items = append(items, recipe)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate recipes: %w", err)
	}

	for i := range items {
		if err := r.loadChildren(ctx, &items[i]); err != nil {
			return Page{}, err
		}
	}

	return Page{Items: items, Page: filter.Page, PageSize: filter.PageSize, Total: total}, nil
}

func (r *Repository) loadChildren(ctx context.Context, recipe *Recipe) error {
	ingredients, err := r.loadIngredients(ctx, recipe.ID)
	if err != nil {
		return err
	}
	recipe.Ingredients = ingredients

	categories, err := r.loadCategories(ctx, recipe.ID)
	if err != nil {
		return err
	}
	recipe.Categories = categories

	images, err := r.loadImages(ctx, recipe.ID)
	if err != nil {
		return err
	}
	recipe.Images = images

	return nil
}

func (r *Repository) loadIngredients(ctx context.Context, recipeID string) ([]Ingredient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.quantity, i.unit_id, un.name
		FROM recipe_ingredients i
		JOIN units un ON un.id = i.unit_id
		WHERE i.recipe_id = $1
		ORDER BY i.name
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("query recipe ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := make([]Ingredient, 0)
	for rows.Next() {
		var ingredient Ingredient
		if err := rows.Scan(&ingredient.ID, &ingredient.Name, &ingredient.Quantity,
			&ingredient.UnitID, &ingredient.UnitName); err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		ingredients = append(ingredients, ingredient)
	}

	return ingredients, rows.Err()
}

func (r *Repository) loadCategories(ctx context.Context, recipeID string) ([]CategoryRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name
		FROM recipe_categories rc
		JOIN categories c ON c.id = rc.category_id
		WHERE rc.recipe_id = $1
		ORDER BY c.name
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("query recipe categories: %w", err)
	}
	defer rows.Close()

	categories := make([]CategoryRef, 0)
	for rows.Next() {
		var category CategoryRef
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, fmt.Errorf("scan recipe category: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

func (r *Repository) loadImages(ctx context.Context, recipeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url FROM recipe_images WHERE recipe_id = $1 ORDER BY id
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("query recipe images: %w", err)
	}
	defer rows.Close()

	images := make([]string, 0)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan recipe image: %w", err)
		}
		images = append(images, url)
	}

	return images, rows.Err()
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrBadReference
	}
	return fmt.Errorf("%s: %w", op, err)
}
