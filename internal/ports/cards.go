package ports

import (
	"context"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
)

// CardStore provides the immutable 78-card reference catalog.
type CardStore interface {
	Catalog(ctx context.Context) (domain.Catalog, error)
}
