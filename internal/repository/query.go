package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultSort orders products newest first
const DefaultSort = "-createdAt"

var sortColumns = map[string]string{
	"createdAt":  "p.created_at",
	"updatedAt":  "p.updated_at",
	"rating":     "p.rating",
	"domainName": "LOWER(p.domain_name)",
}

// ProductQuery is the storage predicate for listing products. All set fields are ANDed.
type ProductQuery struct {
	// MatchNone short-circuits to an empty result, e.g. for an unknown category
	MatchNone bool

	CategoryID   *uuid.UUID
	LetterPrefix string
	Search       string

	MinRating          *float64
	FreeTrialAvailable *bool

	// Sort is a field name optionally prefixed with '-' for descending order
	Sort string
}

// Where compiles the predicate to a WHERE clause (possibly empty) and its arguments
func (q ProductQuery) Where() (string, []any) {
	var (
		conditions []string
		args       []any
	)

	next := func(arg any) string {
		args = append(args, arg)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.MatchNone {
		conditions = append(conditions, "FALSE")
	}

	if q.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_categories fpc WHERE fpc.product_id = p.id AND fpc.category_id = %s)",
			next(*q.CategoryID),
		))
	}

	if q.LetterPrefix != "" {
		conditions = append(conditions, fmt.Sprintf(
			`p.domain_name ILIKE %s ESCAPE '\'`, next(escapeLike(q.LetterPrefix)+"%"),
		))
	}

	if q.Search != "" {
		pattern := next("%" + escapeLike(q.Search) + "%")
		conditions = append(conditions, fmt.Sprintf(
			`(EXISTS (SELECT 1 FROM jsonb_array_elements_text(p.keywords) AS k(keyword) WHERE k.keyword ILIKE %[1]s ESCAPE '\')`+
				` OR p.description ILIKE %[1]s ESCAPE '\'`+
				` OR p.domain_name ILIKE %[1]s ESCAPE '\')`,
			pattern,
		))
	}

	if q.MinRating != nil {
		conditions = append(conditions, "p.rating >= "+next(*q.MinRating))
	}

	if q.FreeTrialAvailable != nil {
		conditions = append(conditions, "p.free_trial_available = "+next(*q.FreeTrialAvailable))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// OrderBy compiles Sort to an ORDER BY clause using whitelisted columns only
func (q ProductQuery) OrderBy() string {
	column, direction := parseSort(q.Sort)
	return fmt.Sprintf("ORDER BY %s %s, p.id ASC", column, direction)
}

func parseSort(sort string) (column string, direction SortOrder) {
	sort = strings.TrimSpace(sort)
	direction = SortOrderAsc
	if strings.HasPrefix(sort, "-") {
		direction = SortOrderDesc
		sort = strings.TrimPrefix(sort, "-")
	}

	column, ok := sortColumns[sort]
	if !ok {
		return sortColumns["createdAt"], SortOrderDesc
	}
	return column, direction
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
