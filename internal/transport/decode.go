package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/service"
)

const (
	maxJSONBodySize  = 1 << 20
	maxMultipartSize = 10 << 20
	imageFormField   = "image"
)

var errInvalidBody = errors.New("invalid request body")

// productPayload is a product write body after decoding, whatever its encoding.
// Nil fields were absent from the request.
type productPayload struct {
	ImageURL           *string
	DomainName         *string
	URL                *string
	Description        *string
	Rating             *float64
	FreeTrialAvailable *bool
	Reviewers          []domain.Reviewer
	Keywords           []string
	Categories         []string
}

func (p productPayload) toInput() service.ProductInput {
	return service.ProductInput{
		ImageURL:           deref(p.ImageURL),
		DomainName:         deref(p.DomainName),
		URL:                deref(p.URL),
		Description:        deref(p.Description),
		Rating:             deref(p.Rating),
		FreeTrialAvailable: deref(p.FreeTrialAvailable),
		Reviewers:          p.Reviewers,
		Keywords:           p.Keywords,
		Categories:         p.Categories,
	}
}

func (p productPayload) toPatch() service.ProductPatch {
	return service.ProductPatch{
		ImageURL:           p.ImageURL,
		DomainName:         p.DomainName,
		URL:                p.URL,
		Description:        p.Description,
		Rating:             p.Rating,
		FreeTrialAvailable: p.FreeTrialAvailable,
		Reviewers:          p.Reviewers,
		Keywords:           p.Keywords,
		Categories:         p.Categories,
	}
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// decodeProductRequest reads a JSON or multipart product body. The returned cleanup
// must be called once the image has been consumed.
func decodeProductRequest(w http.ResponseWriter, r *http.Request) (productPayload, *domain.ImageUpload, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartSize)
		if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
			return productPayload{}, nil, noop, errInvalidBody
		}
		cleanup := func() { _ = r.MultipartForm.RemoveAll() }

		payload, err := decodeForm(r.MultipartForm.Value)
		if err != nil {
			cleanup()
			return productPayload{}, nil, noop, err
		}

		image, closeImage, err := formImage(r)
		if err != nil {
			cleanup()
			return productPayload{}, nil, noop, err
		}

		return payload, image, func() { closeImage(); cleanup() }, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return productPayload{}, nil, noop, errInvalidBody
		}
		payload, err := decodeForm(r.PostForm)
		return payload, nil, noop, err

	default:
		payload, err := decodeJSON(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
		return payload, nil, noop, err
	}
}

type jsonProductBody struct {
	ImageURL           *string           `json:"imageURL"`
	DomainName         *string           `json:"domainName"`
	URL                *string           `json:"url"`
	Description        *string           `json:"description"`
	Rating             *flexFloat        `json:"rating"`
	FreeTrialAvailable *flexBool         `json:"freeTrialAvailable"`
	FreeTrial          *flexBool         `json:"freeTrial"`
	Reviewers          []domain.Reviewer `json:"reviewers"`
	Keywords           []string          `json:"keywords"`
	Categories         categoryNames     `json:"categories"`
}

func decodeJSON(body io.Reader) (productPayload, error) {
	var in jsonProductBody
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		var fieldErr *fieldDecodeError
		if errors.As(err, &fieldErr) {
			return productPayload{}, fieldErr.validationError()
		}
		return productPayload{}, errInvalidBody
	}

	payload := productPayload{
		ImageURL:    in.ImageURL,
		DomainName:  in.DomainName,
		URL:         in.URL,
		Description: in.Description,
		Reviewers:   in.Reviewers,
		Keywords:    in.Keywords,
		Categories:  in.Categories,
	}
	if in.Rating != nil {
		v := float64(*in.Rating)
		payload.Rating = &v
	}

	trial := in.FreeTrialAvailable
	if trial == nil {
		trial = in.FreeTrial
	}
	if trial != nil {
		v := bool(*trial)
		payload.FreeTrialAvailable = &v
	}

	return payload, nil
}

// decodeForm reads form fields; list fields are JSON-encoded arrays or repeated values
func decodeForm(values map[string][]string) (productPayload, error) {
	var (
		payload productPayload
		errs    []domain.FieldError
	)

	str := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		s := v[0]
		return &s
	}

	payload.ImageURL = str("imageURL")
	payload.DomainName = str("domainName")
	payload.URL = str("url")
	payload.Description = str("description")

	if raw := str("rating"); raw != nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "rating", Message: "Must be a number"})
		} else {
			payload.Rating = &v
		}
	}

	for _, key := range []string{"freeTrialAvailable", "freeTrial"} {
		raw := str(key)
		if raw == nil {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(*raw))
		if err != nil {
			errs = append(errs, domain.FieldError{Field: key, Message: "Must be true or false"})
		} else {
			payload.FreeTrialAvailable = &v
		}
		break
	}

	if raw, ok := values["reviewers"]; ok {
		if err := json.Unmarshal([]byte(strings.Join(raw, "")), &payload.Reviewers); err != nil {
			errs = append(errs, domain.FieldError{Field: "reviewers", Message: "Must be a JSON array of {name, url}"})
		} else if payload.Reviewers == nil {
			payload.Reviewers = []domain.Reviewer{}
		}
	}

	if raw, ok := values["keywords"]; ok {
		keywords, err := formList[[]string](raw)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "keywords", Message: "Must be a JSON array of strings"})
		} else {
			payload.Keywords = keywords
		}
	}

	if raw, ok := values["categories"]; ok {
		categories, err := formList[categoryNames](raw)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "categories", Message: "Must be a JSON array of names"})
		} else {
			payload.Categories = categories
		}
	}

	if len(errs) > 0 {
		return productPayload{}, &domain.ValidationError{Fields: errs}
	}
	return payload, nil
}

// formList decodes a single JSON array value, or takes repeated plain values as the list
func formList[T ~[]string](raw []string) (T, error) {
	if len(raw) == 1 && strings.HasPrefix(strings.TrimSpace(raw[0]), "[") {
		var out T
		if err := json.Unmarshal([]byte(raw[0]), &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = T{}
		}
		return out, nil
	}

	out := make(T, 0, len(raw))
	for _, v := range raw {
		if v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func formImage(r *http.Request) (*domain.ImageUpload, func(), error) {
	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, errInvalidBody
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffContentType(file)
	}

	if !strings.HasPrefix(contentType, "image/") {
		file.Close()
		return nil, func() {}, domain.NewValidationError(imageFormField, "Must be an image")
	}

	return &domain.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      file,
	}, func() { file.Close() }, nil
}

func sniffContentType(file multipart.File) string {
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	_, _ = file.Seek(0, io.SeekStart)
	return http.DetectContentType(bytes.TrimRight(head[:n], "\x00"))
}

// categoryNames accepts ["name", {"name": "other"}]
type categoryNames []string

func (c *categoryNames) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &fieldDecodeError{field: "categories", message: "Must be an array of names"}
	}

	names := make(categoryNames, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}

		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return &fieldDecodeError{field: fmt.Sprintf("categories[%d]", i), message: "Must be a name or an object with a name"}
		}
		names = append(names, obj.Name)
	}

	*c = names
	return nil
}

// flexFloat accepts a JSON number or a numeric string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return &fieldDecodeError{field: "rating", message: "Must be a number"}
	}
	*f = flexFloat(v)
	return nil
}

// flexBool accepts a JSON boolean or "true"/"false"
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseBool(strings.Trim(string(data), `"`))
	if err != nil {
		return &fieldDecodeError{field: "freeTrialAvailable", message: "Must be true or false"}
	}
	*b = flexBool(v)
	return nil
}

type fieldDecodeError struct {
	field   string
	message string
}

func (e *fieldDecodeError) Error() string { return e.field + ": " + e.message }

func (e *fieldDecodeError) validationError() error {
	return domain.NewValidationError(e.field, e.message)
}
