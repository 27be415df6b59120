package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/middleware"
	"toolcatalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RenameCategoryRequest represents the category rename payload
type RenameCategoryRequest struct {
	Name string `json:"name"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// ProductHandler handles HTTP requests for products and categories
type ProductHandler struct {
	products   service.ProductService
	categories service.CategoryService
	logger     *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, categories service.CategoryService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// RegisterRoutes registers the catalog routes. protected wraps every mutating route.
func (h *ProductHandler) RegisterRoutes(r chi.Router, protected ...func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Get("/categories", h.ListCategories)
		r.Get("/{id}", h.Get)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(protected...)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Put("/categories/{id}", h.RenameCategory)
		})
	})
}

// List handles GET /products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	sel, secondary, err := parseListQuery(r.URL.Query())
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	products, err := h.products.List(r.Context(), sel, secondary)
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Get handles GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListCategories handles GET /products/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.categories.ListWithCounts(r.Context())
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}
	if counts == nil {
		counts = []domain.CategoryCount{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, counts)
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, image, cleanup, err := decodeProductRequest(w, r)
	if err != nil {
		h.respondDecodeError(w, err)
		return
	}
	defer cleanup()

	product, err := h.products.Create(r.Context(), payload.toInput(), image)
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles PUT /products/{id}; absent fields are left unchanged
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	payload, image, cleanup, err := decodeProductRequest(w, r)
	if err != nil {
		h.respondDecodeError(w, err)
		return
	}
	defer cleanup()

	product, err := h.products.Update(r.Context(), id, payload.toPatch(), image)
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "product deleted"})
}

// RenameCategory handles PUT /products/categories/{id}
func (h *ProductHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		return
	}

	var req RenameCategoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize)).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, errInvalidBody.Error())
		return
	}

	category, err := h.categories.Rename(r.Context(), id, req.Name)
	if err != nil {
		middleware.RespondWithServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *ProductHandler) respondDecodeError(w http.ResponseWriter, err error) {
	h.logger.Debug("Product request decoding failed", zap.Error(err))
	if errors.Is(err, errInvalidBody) {
		middleware.RespondWithError(w, http.StatusBadRequest, errInvalidBody.Error())
		return
	}
	middleware.RespondWithServiceError(w, err, h.logger)
}
