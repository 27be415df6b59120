package service

import (
	"context"
	"errors"
	"time"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"
	"toolcatalog/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultUploadTimeout bounds a single image upload
const DefaultUploadTimeout = 15 * time.Second

// ImageStore persists product images and serves them by URL
type ImageStore interface {
	Upload(ctx context.Context, img domain.ImageUpload) (string, error)
	Delete(ctx context.Context, url string) error
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, input ProductInput, image *domain.ImageUpload) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch, image *domain.ImageUpload) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, sel filter.Selection, secondary SecondaryFilters) ([]*domain.Product, error)
}

type productService struct {
	products      repository.ProductRepository
	tx            repository.Transactor
	categories    *CategoryResolver
	queries       *QueryBuilder
	images        ImageStore
	uploadTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	tx repository.Transactor,
	categories *CategoryResolver,
	images ImageStore,
	uploadTimeout time.Duration,
	logger *zap.Logger,
) ProductService {
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &productService{
		products:      products,
		tx:            tx,
		categories:    categories,
		queries:       NewQueryBuilder(categories),
		images:        images,
		uploadTimeout: uploadTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Create validates the input, uploads the image if one is given and then stores the
// product together with any new categories in one transaction.
func (s *productService) Create(ctx context.Context, input ProductInput, image *domain.ImageUpload) (*domain.Product, error) {
	input.normalize()
	if err := input.validate(image != nil); err != nil {
		return nil, err
	}

	var uploaded string
	if image != nil {
		url, err := s.upload(ctx, *image)
		if err != nil {
			return nil, err
		}
		input.ImageURL = url
		uploaded = url
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:                 uuid.New(),
		ImageURL:           input.ImageURL,
		DomainName:         input.domainName(),
		URL:                input.URL,
		Description:        input.Description,
		Rating:             input.Rating,
		FreeTrialAvailable: input.FreeTrialAvailable,
		Reviewers:          input.Reviewers,
		Keywords:           input.Keywords,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		refs, err := s.categories.WithRepository(repos.Categories).ResolveOrCreate(ctx, input.Categories)
		if err != nil {
			return err
		}
		product.Categories = refs
		return repos.Products.Create(ctx, product)
	})
	if err != nil {
		if uploaded != "" {
			s.removeImage(ctx, uploaded)
		}
		return nil, storageError("create product", err)
	}

	s.categories.InvalidateCounts(ctx)

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.Strings("categories", product.CategoryNames()),
	)
	return product, nil
}

// Update applies the present fields of patch. Categories dropped by the update are
// reconciled after commit.
func (s *productService) Update(ctx context.Context, id uuid.UUID, patch ProductPatch, image *domain.ImageUpload) (*domain.Product, error) {
	patch.normalize()
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var uploaded string
	if image != nil {
		url, err := s.upload(ctx, *image)
		if err != nil {
			return nil, err
		}
		patch.ImageURL = &url
		uploaded = url
	}

	var (
		product       *domain.Product
		oldImageURL   string
		oldCategories []uuid.UUID
	)

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		oldImageURL = existing.ImageURL
		oldCategories = existing.CategoryIDs()

		patch.apply(existing)

		if patch.Categories != nil {
			refs, err := s.categories.WithRepository(repos.Categories).ResolveOrCreate(ctx, patch.Categories)
			if err != nil {
				return err
			}
			existing.Categories = refs
		}

		if err := repos.Products.Update(ctx, existing); err != nil {
			return err
		}
		product = existing
		return nil
	})
	if err != nil {
		if uploaded != "" {
			s.removeImage(ctx, uploaded)
		}
		return nil, storageError("update product", err)
	}

	if removed := difference(oldCategories, product.CategoryIDs()); len(removed) > 0 {
		s.categories.ReconcileOnRemoval(ctx, removed, product.ID)
	} else {
		s.categories.InvalidateCounts(ctx)
	}

	if oldImageURL != "" && oldImageURL != product.ImageURL {
		s.removeImage(ctx, oldImageURL)
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	return product, nil
}

// Delete removes the product, then its image and any categories left without products
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	var former *domain.Product

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Products.Delete(ctx, id); err != nil {
			return err
		}
		former = existing
		return nil
	})
	if err != nil {
		return storageError("delete product", err)
	}

	s.removeImage(ctx, former.ImageURL)
	s.categories.ReconcileOnRemoval(ctx, former.CategoryIDs(), former.ID)

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// GetByID retrieves a product by its ID
func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("find product", err)
	}
	return product, nil
}

// List returns the products matching the selection and secondary filters
func (s *productService) List(ctx context.Context, sel filter.Selection, secondary SecondaryFilters) ([]*domain.Product, error) {
	q, err := s.queries.Build(ctx, sel, secondary)
	if err != nil {
		return nil, err
	}

	products, err := s.products.List(ctx, q)
	if err != nil {
		return nil, storageError("list products", err)
	}
	return products, nil
}

func (s *productService) upload(ctx context.Context, image domain.ImageUpload) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	url, err := s.images.Upload(uploadCtx, image)
	if err != nil {
		s.logger.Error("Image upload failed", zap.String("filename", image.Filename), zap.Error(err))
		return "", &domain.UploadError{Err: err}
	}
	return url, nil
}

// removeImage deletes an image best-effort, detached from the request's cancellation
func (s *productService) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.uploadTimeout)
	defer cancel()

	if err := s.images.Delete(deleteCtx, url); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("image_url", url), zap.Error(err))
	}
}

// storageError passes domain errors through and wraps everything else
func storageError(op string, err error) error {
	var (
		validationErr *domain.ValidationError
		uploadErr     *domain.UploadError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.As(err, &validationErr),
		errors.As(err, &uploadErr):
		return err
	default:
		return &domain.StorageError{Op: op, Err: err}
	}
}

// difference returns the ids in a that are not in b
func difference(a, b []uuid.UUID) []uuid.UUID {
	keep := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		keep[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
