package catalogclient

import (
	"sort"

	"toolcatalog/internal/domain"
)

// SortForDisplay returns a copy of products ordered by rating, highest first.
// Ties keep the server's order, which is newest first unless the listing set a sort.
func SortForDisplay(products []domain.Product) []domain.Product {
	sorted := make([]domain.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})
	return sorted
}
