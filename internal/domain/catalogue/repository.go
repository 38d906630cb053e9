package catalogue

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by product lookups for unknown identifiers.
var ErrNotFound = errors.New("product not found")

// Repository defines the product reads hosts need to build basket
// snapshots.
type Repository interface {
	// GetByID returns one product with its categories and price.
	GetByID(ctx context.Context, id int64) (*PricedProduct, error)
}
