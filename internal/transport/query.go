package transport

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"
	"toolcatalog/internal/service"
)

// parseListQuery reduces the listing query string to one selection plus secondary filters
func parseListQuery(values url.Values) (filter.Selection, service.SecondaryFilters, error) {
	var (
		secondary service.SecondaryFilters
		errs      []domain.FieldError
	)

	sel, err := filter.Reduce(values.Get("category"), values.Get("letter"), values.Get("search"))
	if errors.Is(err, filter.ErrInvalidLetter) {
		errs = append(errs, domain.FieldError{Field: "letter", Message: "Must be a single letter A-Z"})
	} else if err != nil {
		return filter.None(), secondary, err
	}

	if raw := strings.TrimSpace(values.Get("minRating")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "minRating", Message: "Must be a number"})
		} else {
			secondary.MinRating = &v
		}
	}

	if raw := strings.TrimSpace(values.Get("freeTrialAvailable")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "freeTrialAvailable", Message: "Must be true or false"})
		} else {
			secondary.FreeTrialAvailable = &v
		}
	}

	secondary.Sort = strings.TrimSpace(values.Get("sort"))

	if len(errs) > 0 {
		return filter.None(), service.SecondaryFilters{}, &domain.ValidationError{Fields: errs}
	}
	return sel, secondary, nil
}
