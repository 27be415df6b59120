package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Product represents a cataloged affiliate tool
type Product struct {
	ID                 uuid.UUID     `json:"id"`
	ImageURL           string        `json:"imageURL"`
	DomainName         string        `json:"domainName"`
	URL                string        `json:"url"`
	Description        string        `json:"description"`
	Rating             float64       `json:"rating"`
	FreeTrialAvailable bool          `json:"freeTrialAvailable"`
	Reviewers          []Reviewer    `json:"reviewers"`
	Keywords           []string      `json:"keywords"`
	Categories         []CategoryRef `json:"-"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

type productJSON Product

// MarshalJSON renders categories as their names
func (p Product) MarshalJSON() ([]byte, error) {
	out := struct {
		productJSON
		Categories []string `json:"categories"`
	}{productJSON(p), p.CategoryNames()}

	if out.Reviewers == nil {
		out.Reviewers = []Reviewer{}
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts categories rendered as names
func (p *Product) UnmarshalJSON(data []byte) error {
	var in struct {
		productJSON
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*p = Product(in.productJSON)
	p.Categories = make([]CategoryRef, 0, len(in.Categories))
	for _, name := range in.Categories {
		p.Categories = append(p.Categories, CategoryRef{Name: name})
	}
	return nil
}

// Reviewer is an external review of a product
type Reviewer struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,weburl"`
}

// CategoryRef is a product's reference to a category, carrying the display name
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CategoryNames returns the names of the referenced categories in order
func (p *Product) CategoryNames() []string {
	names := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		names = append(names, c.Name)
	}
	return names
}

// CategoryIDs returns the ids of the referenced categories in order
func (p *Product) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Category represents a named grouping of products
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryCount is a category together with the number of products referencing it
type CategoryCount struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"category"`
	Count int       `json:"count"`
}
