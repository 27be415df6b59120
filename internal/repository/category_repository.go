package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toolcatalog/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound      = fmt.Errorf("category %w", domain.ErrNotFound)
	ErrCategoryAlreadyExists = fmt.Errorf("category %w", domain.ErrConflict)
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	CreateIfAbsent(ctx context.Context, category *domain.Category) (*domain.Category, error)
	FindByName(ctx context.Context, name string) (*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	DeleteIfOrphaned(ctx context.Context, id, excludingProductID uuid.UUID) (bool, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

// CreateIfAbsent inserts the category unless one with the same name exists and returns
// the stored row either way. Concurrent callers converge on a single row.
func (r *categoryRepository) CreateIfAbsent(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO categories (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`

	stored := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, category.ID, category.Name, category.CreatedAt).Scan(
		&stored.ID,
		&stored.Name,
		&stored.CreatedAt,
	)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	// lost the race, the row exists
	return r.FindByName(ctx, category.Name)
}

// FindByName retrieves a category by its exact name
func (r *categoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	query := `
		SELECT id, name, created_at
		FROM categories
		WHERE name = $1
	`

	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&category.ID,
		&category.Name,
		&category.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by name: %w", err)
	}

	return category, nil
}

// FindByID retrieves a category by ID using parameterized queries
func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := `
		SELECT id, name, created_at
		FROM categories
		WHERE id = $1
	`

	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

// ListWithCounts returns every category with the number of products referencing it,
// ordered by name
func (r *categoryRepository) ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	query := `
		SELECT c.id, c.name, COUNT(pc.product_id)
		FROM categories c
		LEFT JOIN product_categories pc ON pc.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	counts := []domain.CategoryCount{}
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		counts = append(counts, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return counts, nil
}

// Rename changes a category's name
func (r *categoryRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE categories SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to rename category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

// DeleteIfOrphaned deletes the category iff no product other than excludingProductID
// references it. The check and the delete are one statement.
func (r *categoryRepository) DeleteIfOrphaned(ctx context.Context, id, excludingProductID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM categories c
		WHERE c.id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM product_categories pc
			WHERE pc.category_id = c.id AND pc.product_id <> $2
		  )
	`

	result, err := r.db.ExecContext(ctx, query, id, excludingProductID)
	if err != nil {
		return false, fmt.Errorf("failed to delete orphaned category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
