package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"toolcatalog/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

const productColumns = `
	p.id, p.image_url, p.domain_name, p.url, p.description, p.rating,
	p.free_trial_available, p.reviewers, p.keywords, p.created_at, p.updated_at,
	COALESCE((
		SELECT json_agg(json_build_object('id', c.id, 'name', c.name) ORDER BY pc.position)
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = p.id
	), '[]'::json)
`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, q ProductQuery) ([]*domain.Product, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts the product row and its category links. Category IDs must already exist.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	reviewers, keywords, err := encodeLists(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, image_url, domain_name, url, description, rating,
		                      free_trial_available, reviewers, keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.ImageURL,
		product.DomainName,
		product.URL,
		product.Description,
		product.Rating,
		product.FreeTrialAvailable,
		reviewers,
		keywords,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return r.linkCategories(ctx, product.ID, product.CategoryIDs())
}

// Update overwrites the product row and replaces its category links
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	reviewers, keywords, err := encodeLists(product)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET image_url = $2, domain_name = $3, url = $4, description = $5, rating = $6,
		    free_trial_available = $7, reviewers = $8::jsonb, keywords = $9::jsonb
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.ImageURL,
		product.DomainName,
		product.URL,
		product.Description,
		product.Rating,
		product.FreeTrialAvailable,
		reviewers,
		keywords,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to unlink product categories: %w", err)
	}

	return r.linkCategories(ctx, product.ID, product.CategoryIDs())
}

// Delete removes a product; its category links cascade
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its categories in their stored order
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves the products matching q, never returning a nil slice
func (r *productRepository) List(ctx context.Context, q ProductQuery) ([]*domain.Product, error) {
	products := []*domain.Product{}
	if q.MatchNone {
		return products, nil
	}

	where, args := q.Where()
	query := fmt.Sprintf(`SELECT %s FROM products p %s %s`, productColumns, where, q.OrderBy())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (r *productRepository) linkCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error {
	query := `
		INSERT INTO product_categories (product_id, category_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, category_id) DO NOTHING
	`

	for position, categoryID := range categoryIDs {
		if _, err := r.db.ExecContext(ctx, query, productID, categoryID, position); err != nil {
			return fmt.Errorf("failed to link category %s: %w", categoryID, err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product                         domain.Product
		reviewers, keywords, categories []byte
	)

	err := row.Scan(
		&product.ID,
		&product.ImageURL,
		&product.DomainName,
		&product.URL,
		&product.Description,
		&product.Rating,
		&product.FreeTrialAvailable,
		&reviewers,
		&keywords,
		&product.CreatedAt,
		&product.UpdatedAt,
		&categories,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(reviewers, &product.Reviewers); err != nil {
		return nil, fmt.Errorf("failed to decode reviewers: %w", err)
	}
	if err := json.Unmarshal(keywords, &product.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	if err := json.Unmarshal(categories, &product.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	return &product, nil
}

func encodeLists(product *domain.Product) (reviewers, keywords string, err error) {
	rv := product.Reviewers
	if rv == nil {
		rv = []domain.Reviewer{}
	}
	kw := product.Keywords
	if kw == nil {
		kw = []string{}
	}

	rb, err := json.Marshal(rv)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode reviewers: %w", err)
	}
	kb, err := json.Marshal(kw)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode keywords: %w", err)
	}

	return string(rb), string(kb), nil
}
