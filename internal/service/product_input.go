package service

import (
	"net/url"
	"strings"

	"toolcatalog/internal/domain"
)

// ProductInput is a full product write. ImageURL may be empty when an image file accompanies it.
type ProductInput struct {
	ImageURL           string            `json:"imageURL" validate:"omitempty,weburl"`
	DomainName         string            `json:"domainName" validate:"max=255"`
	URL                string            `json:"url" validate:"required,weburl"`
	Description        string            `json:"description" validate:"required,min=10"`
	Rating             float64           `json:"rating" validate:"gte=1,lte=10"`
	FreeTrialAvailable bool              `json:"freeTrialAvailable"`
	Reviewers          []domain.Reviewer `json:"reviewers" validate:"dive"`
	Keywords           []string          `json:"keywords" validate:"dive,required"`
	Categories         []string          `json:"categories" validate:"dive,required,max=100"`
}

func (in *ProductInput) normalize() {
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.DomainName = strings.TrimSpace(in.DomainName)
	in.URL = strings.TrimSpace(in.URL)
	in.Description = strings.TrimSpace(in.Description)
	in.Keywords = trimAll(in.Keywords)
	in.Categories = trimAll(in.Categories)
}

func (in ProductInput) validate(hasImage bool) error {
	var missingImage error
	if in.ImageURL == "" && !hasImage {
		missingImage = domain.NewValidationError("imageURL", "This field is required")
	}
	if err := mergeValidationErrors(missingImage, validateStruct(in)); err != nil {
		return err
	}
	if in.domainName() == "" {
		return domain.NewValidationError("domainName", msgNoDomainName)
	}
	return nil
}

const msgNoDomainName = "Cannot be derived from url"

// domainName is the explicit domain name, or the one derived from URL
func (in ProductInput) domainName() string {
	if in.DomainName != "" {
		return in.DomainName
	}
	return deriveDomainName(in.URL)
}

// ProductPatch is a partial product write. Nil fields are left unchanged;
// a non-nil empty slice clears the list.
type ProductPatch struct {
	ImageURL           *string           `json:"imageURL" validate:"omitnil,weburl"`
	DomainName         *string           `json:"domainName" validate:"omitnil,max=255"`
	URL                *string           `json:"url" validate:"omitnil,weburl"`
	Description        *string           `json:"description" validate:"omitnil,min=10"`
	Rating             *float64          `json:"rating" validate:"omitnil,gte=1,lte=10"`
	FreeTrialAvailable *bool             `json:"freeTrialAvailable"`
	Reviewers          []domain.Reviewer `json:"reviewers" validate:"dive"`
	Keywords           []string          `json:"keywords" validate:"dive,required"`
	Categories         []string          `json:"categories" validate:"dive,required,max=100"`
}

func (p *ProductPatch) normalize() {
	trimPtr(p.ImageURL)
	trimPtr(p.DomainName)
	trimPtr(p.URL)
	trimPtr(p.Description)
	if p.Keywords != nil {
		p.Keywords = trimAll(p.Keywords)
	}
	if p.Categories != nil {
		p.Categories = trimAll(p.Categories)
	}
}

func (p ProductPatch) validate() error {
	return validateStruct(p)
}

// apply copies the present fields onto product, leaving categories to the caller
func (p ProductPatch) apply(product *domain.Product) {
	if p.ImageURL != nil {
		product.ImageURL = *p.ImageURL
	}
	if p.URL != nil {
		product.URL = *p.URL
		if p.DomainName == nil {
			product.DomainName = deriveDomainName(product.URL)
		}
	}
	if p.DomainName != nil {
		product.DomainName = *p.DomainName
		if product.DomainName == "" {
			product.DomainName = deriveDomainName(product.URL)
		}
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Rating != nil {
		product.Rating = *p.Rating
	}
	if p.FreeTrialAvailable != nil {
		product.FreeTrialAvailable = *p.FreeTrialAvailable
	}
	if p.Reviewers != nil {
		product.Reviewers = p.Reviewers
	}
	if p.Keywords != nil {
		product.Keywords = p.Keywords
	}
}

// deriveDomainName returns the url's host without port and leading "www."
func deriveDomainName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if len(host) > 4 && strings.EqualFold(host[:4], "www.") {
		host = host[4:]
	}
	return host
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
