package service

import (
	"context"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"
	"toolcatalog/internal/repository"
)

// SecondaryFilters narrow a listing independently of the active selection
type SecondaryFilters struct {
	MinRating          *float64
	FreeTrialAvailable *bool
	Sort               string
}

// QueryBuilder turns a filter selection into a storage predicate
type QueryBuilder struct {
	categories *CategoryResolver
}

func NewQueryBuilder(categories *CategoryResolver) *QueryBuilder {
	return &QueryBuilder{categories: categories}
}

// Build composes the predicate. An unknown category matches nothing.
func (b *QueryBuilder) Build(ctx context.Context, sel filter.Selection, secondary SecondaryFilters) (repository.ProductQuery, error) {
	q := repository.ProductQuery{
		MinRating:          secondary.MinRating,
		FreeTrialAvailable: secondary.FreeTrialAvailable,
		Sort:               secondary.Sort,
	}

	if name, ok := sel.CategoryName(); ok {
		category, found, err := b.categories.Lookup(ctx, name)
		if err != nil {
			return repository.ProductQuery{}, &domain.StorageError{Op: "lookup category", Err: err}
		}
		if !found {
			q.MatchNone = true
		} else {
			q.CategoryID = &category.ID
		}
	}

	if letter, ok := sel.Letter(); ok {
		q.LetterPrefix = letter
	}

	if term, ok := sel.SearchTerm(); ok {
		q.Search = term
	}

	return q, nil
}
