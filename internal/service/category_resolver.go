package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryCountCache stores the category listing between product writes. Set takes the
// version reported by the Get that missed; Invalidate retires it.
type CategoryCountCache interface {
	Get(ctx context.Context) (counts []domain.CategoryCount, version int64, ok bool, err error)
	Set(ctx context.Context, version int64, counts []domain.CategoryCount) error
	Invalidate(ctx context.Context) error
}

// CategoryService is the category surface exposed over HTTP
type CategoryService interface {
	ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error)
}

// CategoryResolver owns the category lifecycle: lookup, lazy creation on product writes
// and removal once no product references a category.
type CategoryResolver struct {
	categories repository.CategoryRepository
	cache      CategoryCountCache
	logger     *zap.Logger
	now        func() time.Time
}

// NewCategoryResolver creates a resolver; cache may be nil
func NewCategoryResolver(categories repository.CategoryRepository, cache CategoryCountCache, logger *zap.Logger) *CategoryResolver {
	return &CategoryResolver{
		categories: categories,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// WithRepository returns a resolver bound to repo, typically a transaction's repository
func (r *CategoryResolver) WithRepository(repo repository.CategoryRepository) *CategoryResolver {
	bound := *r
	bound.categories = repo
	return &bound
}

// Lookup finds a category by exact name. found is false when it does not exist.
func (r *CategoryResolver) Lookup(ctx context.Context, name string) (category *domain.Category, found bool, err error) {
	category, err = r.categories.FindByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return category, true, nil
}

// ResolveOrCreate maps names to category references, creating missing categories.
// Order is preserved and repeated names collapse to their first occurrence. Names are
// resolved in sorted order so concurrent writers take the unique index in the same order.
func (r *CategoryResolver) ResolveOrCreate(ctx context.Context, names []string) ([]domain.CategoryRef, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domain.NewValidationError("categories", "Category names must not be empty")
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	resolved := make(map[string]domain.CategoryRef, len(unique))
	for _, name := range slices.Sorted(maps.Keys(seen)) {
		category, err := r.categories.FindByName(ctx, name)
		if errors.Is(err, repository.ErrCategoryNotFound) {
			category, err = r.categories.CreateIfAbsent(ctx, &domain.Category{
				ID:        uuid.New(),
				Name:      name,
				CreatedAt: r.now().UTC(),
			})
		}
		if err != nil {
			return nil, err
		}
		resolved[name] = domain.CategoryRef{ID: category.ID, Name: category.Name}
	}

	refs := make([]domain.CategoryRef, 0, len(unique))
	for _, name := range unique {
		refs = append(refs, resolved[name])
	}
	return refs, nil
}

// ReconcileOnRemoval deletes each category no product other than excludingProductID
// references any more. Failures are logged and skipped; the ids actually deleted are returned.
func (r *CategoryResolver) ReconcileOnRemoval(ctx context.Context, categoryIDs []uuid.UUID, excludingProductID uuid.UUID) []uuid.UUID {
	var deleted []uuid.UUID
	for _, id := range categoryIDs {
		ok, err := r.categories.DeleteIfOrphaned(ctx, id, excludingProductID)
		if err != nil {
			r.logger.Warn("Failed to reconcile category",
				zap.String("category_id", id.String()),
				zap.String("product_id", excludingProductID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			deleted = append(deleted, id)
			r.logger.Info("Deleted orphaned category", zap.String("category_id", id.String()))
		}
	}

	r.InvalidateCounts(ctx)
	return deleted
}

// ListWithCounts returns categories with product counts, alphabetically
func (r *CategoryResolver) ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	var (
		version   int64
		cacheable bool
	)
	if r.cache != nil {
		counts, v, ok, err := r.cache.Get(ctx)
		switch {
		case err != nil:
			r.logger.Warn("Category cache read failed", zap.Error(err))
		case ok:
			return counts, nil
		default:
			version, cacheable = v, true
		}
	}

	all, err := r.categories.ListWithCounts(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list categories", Err: err}
	}

	counts := make([]domain.CategoryCount, 0, len(all))
	for _, c := range all {
		if c.Count == 0 {
			// every category should be referenced by at least one product
			r.logger.Warn("Category without products",
				zap.String("category_id", c.ID.String()),
				zap.String("category", c.Name),
			)
			continue
		}
		counts = append(counts, c)
	}

	if cacheable {
		if err := r.cache.Set(ctx, version, counts); err != nil {
			r.logger.Warn("Category cache write failed", zap.Error(err))
		}
	}

	return counts, nil
}

// Rename changes a category's name; the new name must not be taken
func (r *CategoryResolver) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "This field is required")
	}
	if len(name) > 100 {
		return nil, domain.NewValidationError("name", "Value is too long")
	}

	if err := r.categories.Rename(ctx, id, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, &domain.StorageError{Op: "rename category", Err: err}
	}

	r.InvalidateCounts(ctx)

	category, err := r.categories.FindByID(ctx, id)
	if err != nil {
		return nil, &domain.StorageError{Op: "find category", Err: err}
	}
	return category, nil
}

// InvalidateCounts drops the cached listing; failures are logged
func (r *CategoryResolver) InvalidateCounts(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Warn("Category cache invalidation failed", zap.Error(err))
	}
}
