// Package catalogclient is a Go client for the catalog HTTP API plus a
// Session that keeps the browsing filter state and refetches on change.
package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the server's error body
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     []domain.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return (&domain.ValidationError{Fields: e.Fields}).Error()
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Is maps status codes onto the domain sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions narrows a product listing
type ListOptions struct {
	Selection          filter.Selection
	MinRating          *float64
	FreeTrialAvailable *bool
	Sort               string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if name, ok := o.Selection.CategoryName(); ok {
		q.Set("category", name)
	}
	if letter, ok := o.Selection.Letter(); ok {
		q.Set("letter", letter)
	}
	if term, ok := o.Selection.SearchTerm(); ok {
		q.Set("search", term)
	}
	if o.MinRating != nil {
		q.Set("minRating", strconv.FormatFloat(*o.MinRating, 'f', -1, 64))
	}
	if o.FreeTrialAvailable != nil {
		q.Set("freeTrialAvailable", strconv.FormatBool(*o.FreeTrialAvailable))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	return q
}

func (c *Client) ListProducts(ctx context.Context, opts ListOptions) ([]domain.Product, error) {
	path := "/products"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}

	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+id.String(), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/products/"+id.String(), nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.CategoryCount, error) {
	var counts []domain.CategoryCount
	if err := c.do(ctx, http.MethodGet, "/products/categories", nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (c *Client) RenameCategory(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error) {
	var category domain.Category
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPut, "/products/categories/"+id.String(), body, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Message string              `json:"message"`
		Code    string              `json:"code"`
		Errors  []domain.FieldError `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Message != "" {
			apiErr.Message = body.Message
		}
		apiErr.Code = body.Code
		apiErr.Fields = body.Errors
	}
	return apiErr
}
