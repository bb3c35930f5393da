package repositories

import (
	"context"

	"github.com/labtrail/backend/internal/domain/entities"
)

// CanonicalItemRepository defines the interface for vocabulary data operations
type CanonicalItemRepository interface {
	// Create creates a new canonical item
	Create(ctx context.Context, item *entities.CanonicalItem) error

	// GetByID retrieves a canonical item by ID
	GetByID(ctx context.Context, id string) (*entities.CanonicalItem, error)

	// GetByIDs retrieves multiple canonical items by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.CanonicalItem, error)

	// GetByName retrieves a canonical item by exact name, case-insensitively
	GetByName(ctx context.Context, name string) (*entities.CanonicalItem, error)

	// List retrieves canonical items with filters
	List(ctx context.Context, filter CanonicalItemFilter) ([]*entities.CanonicalItem, error)

	// Update updates a canonical item
	Update(ctx context.Context, item *entities.CanonicalItem) error

	// Delete removes a canonical item
	Delete(ctx context.Context, id string) error
}

// CanonicalItemFilter defines filters for listing canonical items
type CanonicalItemFilter struct {
	Category string
	IsActive *bool
	Limit    int
	Offset   int
}

// AliasRepository defines the interface for the alias dictionary
type AliasRepository interface {
	// Create creates a new alias entry
	Create(ctx context.Context, entry *entities.AliasEntry) error

	// GetByAlias retrieves an alias entry by exact alias, case-insensitively
	GetByAlias(ctx context.Context, alias string) (*entities.AliasEntry, error)

	// List retrieves the full alias dictionary
	List(ctx context.Context) ([]*entities.AliasEntry, error)

	// DeleteByCanonicalID removes all aliases pointing at a canonical item
	DeleteByCanonicalID(ctx context.Context, canonicalID string) error
}
