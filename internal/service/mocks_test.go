package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing

type mockProductRepository struct {
	products  map[uuid.UUID]*domain.Product
	createErr error
	lastQuery repository.ProductQuery
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Categories = append([]domain.CategoryRef(nil), p.Categories...)
	c.Keywords = append([]string(nil), p.Keywords...)
	c.Reviewers = append([]domain.Reviewer(nil), p.Reviewers...)
	return &c
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (m *mockProductRepository) List(ctx context.Context, q repository.ProductQuery) ([]*domain.Product, error) {
	m.lastQuery = q
	out := []*domain.Product{}
	if q.MatchNone {
		return out, nil
	}
	for _, p := range m.products {
		if q.CategoryID != nil && !containsID(p.CategoryIDs(), *q.CategoryID) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (m *mockProductRepository) references(categoryID uuid.UUID, excluding uuid.UUID) (others, excluded bool) {
	for _, p := range m.products {
		if !containsID(p.CategoryIDs(), categoryID) {
			continue
		}
		if p.ID == excluding {
			excluded = true
		} else {
			others = true
		}
	}
	return others, excluded
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
	products   *mockProductRepository
	deleteErr  error
	findErr    error
	created    []string
}

func newMockCategoryRepository(products *mockProductRepository) *mockCategoryRepository {
	return &mockCategoryRepository{
		categories: make(map[uuid.UUID]*domain.Category),
		products:   products,
	}
}

func (m *mockCategoryRepository) CreateIfAbsent(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Name == category.Name {
			cc := *c
			return &cc, nil
		}
	}
	stored := *category
	m.categories[stored.ID] = &stored
	m.created = append(m.created, stored.Name)
	cc := stored
	return &cc, nil
}

func (m *mockCategoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, c := range m.categories {
		if c.Name == name {
			cc := *c
			return &cc, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *mockCategoryRepository) ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	counts := []domain.CategoryCount{}
	for _, c := range m.categories {
		n := 0
		for _, p := range m.products.products {
			if containsID(p.CategoryIDs(), c.ID) {
				n++
			}
		}
		counts = append(counts, domain.CategoryCount{ID: c.ID, Name: c.Name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return counts, nil
}

func (m *mockCategoryRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	c, ok := m.categories[id]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	for _, other := range m.categories {
		if other.ID != id && other.Name == name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	c.Name = name
	return nil
}

func (m *mockCategoryRepository) DeleteIfOrphaned(ctx context.Context, id, excludingProductID uuid.UUID) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if _, ok := m.categories[id]; !ok {
		return false, nil
	}
	others, excluded := m.products.references(id, excludingProductID)
	if others {
		return false, nil
	}
	if excluded {
		return false, errors.New("violates foreign key constraint")
	}
	delete(m.categories, id)
	return true, nil
}

// mockTransactor restores both stores when the unit of work fails
type mockTransactor struct {
	products   *mockProductRepository
	categories *mockCategoryRepository
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	productSnapshot := make(map[uuid.UUID]*domain.Product, len(m.products.products))
	for id, p := range m.products.products {
		productSnapshot[id] = p
	}
	categorySnapshot := make(map[uuid.UUID]*domain.Category, len(m.categories.categories))
	for id, c := range m.categories.categories {
		cc := *c
		categorySnapshot[id] = &cc
	}

	if err := fn(repository.Repositories{Products: m.products, Categories: m.categories}); err != nil {
		m.products.products = productSnapshot
		m.categories.categories = categorySnapshot
		return err
	}
	return nil
}

type mockImageStore struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
	deleteErr error
}

func (m *mockImageStore) Upload(ctx context.Context, img domain.ImageUpload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	url := "https://cdn.example.com/product-images/products/" + img.Filename
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *mockImageStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	return m.deleteErr
}

type racingCategoryRepository struct {
	*mockCategoryRepository
	during func()
}

func (r *racingCategoryRepository) ListWithCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	counts, err := r.mockCategoryRepository.ListWithCounts(ctx)
	r.during()
	return counts, err
}

type mockCountCache struct {
	counts        []domain.CategoryCount
	cached        bool
	getErr        error
	invalidations int
	sets          int
}

func (m *mockCountCache) Get(ctx context.Context) ([]domain.CategoryCount, int64, bool, error) {
	if m.getErr != nil {
		return nil, 0, false, m.getErr
	}
	return m.counts, int64(m.invalidations), m.cached, nil
}

func (m *mockCountCache) Set(ctx context.Context, version int64, counts []domain.CategoryCount) error {
	m.sets++
	if version != int64(m.invalidations) {
		return nil
	}
	m.counts = counts
	m.cached = true
	return nil
}

func (m *mockCountCache) Invalidate(ctx context.Context) error {
	m.counts = nil
	m.cached = false
	m.invalidations++
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
