package repository

import (
	"context"
	"testing"
	"time"

	"toolcatalog/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCategory(t *testing.T, repo CategoryRepository, name string) domain.CategoryRef {
	t.Helper()
	c, err := repo.CreateIfAbsent(context.Background(), &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return domain.CategoryRef{ID: c.ID, Name: c.Name}
}

func newProduct(domainName string, rating float64, categories ...domain.CategoryRef) *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:                 uuid.New(),
		ImageURL:           "https://cdn.example.com/" + domainName + ".png",
		DomainName:         domainName,
		URL:                "https://" + domainName,
		Description:        "A tool called " + domainName,
		Rating:             rating,
		FreeTrialAvailable: false,
		Reviewers:          []domain.Reviewer{},
		Keywords:           []string{},
		Categories:         categories,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	resetTables(t)

	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(domainName string, description string, rating float64, keywords []string, freeTrial bool) bool {
			ctx := context.Background()

			first := createCategory(t, categoryRepo, "Cat "+uuid.NewString())
			second := createCategory(t, categoryRepo, "Cat "+uuid.NewString())

			product := newProduct(domainName, rating, second, first)
			product.Description = description
			product.Keywords = keywords
			product.FreeTrialAvailable = freeTrial
			product.Reviewers = []domain.Reviewer{{Name: "Jane", URL: "https://reviews.example.com/" + domainName}}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.DomainName != product.DomainName ||
				retrieved.Description != product.Description ||
				retrieved.URL != product.URL ||
				retrieved.ImageURL != product.ImageURL ||
				retrieved.FreeTrialAvailable != product.FreeTrialAvailable {
				t.Logf("FAIL: scalar mismatch. Expected %+v, got %+v", product, retrieved)
				return false
			}

			if retrieved.Rating != product.Rating {
				t.Logf("FAIL: Rating mismatch. Expected %f, got %f", product.Rating, retrieved.Rating)
				return false
			}

			if !assert.ObjectsAreEqual(product.Keywords, retrieved.Keywords) {
				t.Logf("FAIL: Keywords mismatch. Expected %v, got %v", product.Keywords, retrieved.Keywords)
				return false
			}

			if !assert.ObjectsAreEqual(product.Reviewers, retrieved.Reviewers) {
				t.Logf("FAIL: Reviewers mismatch. Expected %v, got %v", product.Reviewers, retrieved.Reviewers)
				return false
			}

			// category order is preserved
			if !assert.ObjectsAreEqual(product.Categories, retrieved.Categories) {
				t.Logf("FAIL: Categories mismatch. Expected %v, got %v", product.Categories, retrieved.Categories)
				return false
			}

			if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
				t.Logf("FAIL: timestamps not set")
				return false
			}

			_ = productRepo.Delete(ctx, product.ID)
			return true
		},
		gen.RegexMatch(`[a-z]{3,20}\.(com|io|dev)`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`),
		gen.Float64Range(1, 10),
		gen.SliceOf(gen.RegexMatch(`[a-z]{1,12}`)),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_UpdateReplacesCategories(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	seo := createCategory(t, categoryRepo, "SEO")
	email := createCategory(t, categoryRepo, "Email")
	video := createCategory(t, categoryRepo, "Video")

	product := newProduct("acme.com", 7, seo, email)
	require.NoError(t, productRepo.Create(ctx, product))
	createdAt := product.CreatedAt

	product.Categories = []domain.CategoryRef{video, seo}
	product.Rating = 9.5
	product.Keywords = []string{"crm", "crm"}
	require.NoError(t, productRepo.Update(ctx, product))

	retrieved, err := productRepo.FindByID(ctx, product.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.CategoryRef{video, seo}, retrieved.Categories)
	assert.Equal(t, 9.5, retrieved.Rating)
	assert.Equal(t, []string{"crm", "crm"}, retrieved.Keywords)
	assert.WithinDuration(t, createdAt, retrieved.CreatedAt, time.Second)
	assert.False(t, retrieved.UpdatedAt.IsZero())
}

func TestProductRepository_UpdateMissingProduct(t *testing.T) {
	resetTables(t)

	err := NewProductRepository(testDB).Update(context.Background(), newProduct("ghost.io", 5))
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProductRepository_DeleteCascadesLinks(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	seo := createCategory(t, categoryRepo, "SEO")
	product := newProduct("acme.com", 7, seo)
	require.NoError(t, productRepo.Create(ctx, product))

	require.NoError(t, productRepo.Delete(ctx, product.ID))

	var links int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM product_categories WHERE product_id = $1`, product.ID).Scan(&links))
	assert.Zero(t, links)

	_, err := productRepo.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	assert.ErrorIs(t, productRepo.Delete(ctx, product.ID), ErrProductNotFound)
}

func TestProductRepository_List(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	seo := createCategory(t, categoryRepo, "SEO")
	email := createCategory(t, categoryRepo, "Email")

	alpha := newProduct("alpha.com", 8, seo)
	alpha.Keywords = []string{"backlinks", "audit"}
	alpha.FreeTrialAvailable = true

	beta := newProduct("Beta.io", 4, email)
	beta.Description = "Send 100% of your newsletters on time"

	gamma := newProduct("gamma.dev", 6, seo, email)
	gamma.CreatedAt = alpha.CreatedAt.Add(time.Minute)

	beta.CreatedAt = alpha.CreatedAt.Add(2 * time.Minute)

	for _, p := range []*domain.Product{alpha, beta, gamma} {
		require.NoError(t, productRepo.Create(ctx, p))
	}

	ids := func(products []*domain.Product) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(products))
		for _, p := range products {
			out = append(out, p.ID)
		}
		return out
	}

	minRating := 5.0
	freeTrial := true

	tests := []struct {
		name  string
		query ProductQuery
		want  []uuid.UUID
	}{
		{"no filters newest first", ProductQuery{}, []uuid.UUID{beta.ID, gamma.ID, alpha.ID}},
		{"category", ProductQuery{CategoryID: &seo.ID}, []uuid.UUID{gamma.ID, alpha.ID}},
		{"match none", ProductQuery{MatchNone: true}, []uuid.UUID{}},
		{"letter is case-insensitive", ProductQuery{LetterPrefix: "b"}, []uuid.UUID{beta.ID}},
		{"search keywords", ProductQuery{Search: "BACKLINK"}, []uuid.UUID{alpha.ID}},
		{"search domain", ProductQuery{Search: "gamma"}, []uuid.UUID{gamma.ID}},
		{"search escapes percent", ProductQuery{Search: "100%"}, []uuid.UUID{beta.ID}},
		{"percent is not a wildcard", ProductQuery{Search: "%"}, []uuid.UUID{beta.ID}},
		{"min rating", ProductQuery{MinRating: &minRating}, []uuid.UUID{gamma.ID, alpha.ID}},
		{"free trial", ProductQuery{FreeTrialAvailable: &freeTrial}, []uuid.UUID{alpha.ID}},
		{"filters are ANDed", ProductQuery{CategoryID: &email.ID, MinRating: &minRating}, []uuid.UUID{gamma.ID}},
		{"rating descending", ProductQuery{Sort: "-rating"}, []uuid.UUID{alpha.ID, gamma.ID, beta.ID}},
		{"domain ascending", ProductQuery{Sort: "domainName"}, []uuid.UUID{alpha.ID, beta.ID, gamma.ID}},
		{"unknown sort falls back", ProductQuery{Sort: "price; DROP TABLE products"}, []uuid.UUID{beta.ID, gamma.ID, alpha.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := productRepo.List(ctx, tt.query)
			require.NoError(t, err)
			require.NotNil(t, products)
			assert.Equal(t, tt.want, ids(products))
		})
	}
}

func TestProductRepository_RatingConstraint(t *testing.T) {
	resetTables(t)

	err := NewProductRepository(testDB).Create(context.Background(), newProduct("bad.io", 10.5))
	assert.Error(t, err)
}
