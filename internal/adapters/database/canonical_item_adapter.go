package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrail/backend/pkg/errors"
)

// CanonicalItemAdapter implements the CanonicalItemRepository interface
type CanonicalItemAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCanonicalItemAdapter creates a new canonical item adapter
func NewCanonicalItemAdapter(client *postgres.Client) repositories.CanonicalItemRepository {
	return &CanonicalItemAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var canonicalItemColumns = []interface{}{
	"id", "name", "display_name", "unit_default", "category",
	"organ_tags", "is_active", "created_at", "updated_at",
}

// Create creates a new canonical item
func (a *CanonicalItemAdapter) Create(ctx context.Context, item *entities.CanonicalItem) error {
	if item == nil {
		return apperrors.NewValidationError("canonical item is required")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	query, args, err := a.db.Insert("canonical_items").Rows(goqu.Record{
		"id":           item.ID,
		"name":         item.Name,
		"display_name": item.DisplayName,
		"unit_default": item.UnitDefault,
		"category":     item.Category,
		"organ_tags":   pq.Array(item.OrganTags),
		"is_active":    item.IsActive,
		"created_at":   item.CreatedAt,
		"updated_at":   item.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build canonical item insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create canonical item", err)
	}
	return nil
}

// GetByID retrieves a canonical item by ID
func (a *CanonicalItemAdapter) GetByID(ctx context.Context, id string) (*entities.CanonicalItem, error) {
	query, args, err := a.db.Select(canonicalItemColumns...).
		From("canonical_items").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build canonical item query", err)
	}

	item, err := a.scanItem(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("canonical item with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get canonical item", err)
	}
	return item, nil
}

// GetByIDs retrieves multiple canonical items by their IDs
func (a *CanonicalItemAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.CanonicalItem, error) {
	if len(ids) == 0 {
		return []*entities.CanonicalItem{}, nil
	}

	query, args, err := a.db.Select(canonicalItemColumns...).
		From("canonical_items").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build canonical items query", err)
	}

	return a.queryItems(ctx, query, args)
}

// GetByName retrieves a canonical item by exact name, case-insensitively
func (a *CanonicalItemAdapter) GetByName(ctx context.Context, name string) (*entities.CanonicalItem, error) {
	query, args, err := a.db.Select(canonicalItemColumns...).
		From("canonical_items").
		Where(goqu.L("LOWER(name) = LOWER(?)", name)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build canonical item query", err)
	}

	item, err := a.scanItem(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("canonical item with name %s not found", name))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get canonical item", err)
	}
	return item, nil
}

// List retrieves canonical items with filters
func (a *CanonicalItemAdapter) List(ctx context.Context, filter repositories.CanonicalItemFilter) ([]*entities.CanonicalItem, error) {
	ds := a.db.Select(canonicalItemColumns...).
		From("canonical_items").
		Order(goqu.I("name").Asc())

	if filter.Category != "" {
		ds = ds.Where(goqu.Ex{"category": filter.Category})
	}
	if filter.IsActive != nil {
		ds = ds.Where(goqu.Ex{"is_active": *filter.IsActive})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build canonical items query", err)
	}

	return a.queryItems(ctx, query, args)
}

// Update updates a canonical item
func (a *CanonicalItemAdapter) Update(ctx context.Context, item *entities.CanonicalItem) error {
	if item == nil {
		return apperrors.NewValidationError("canonical item is required")
	}
	item.UpdatedAt = time.Now()

	query, args, err := a.db.Update("canonical_items").Set(goqu.Record{
		"name":         item.Name,
		"display_name": item.DisplayName,
		"unit_default": item.UnitDefault,
		"category":     item.Category,
		"organ_tags":   pq.Array(item.OrganTags),
		"is_active":    item.IsActive,
		"updated_at":   item.UpdatedAt,
	}).Where(goqu.Ex{"id": item.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build canonical item update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update canonical item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("canonical item with id %s not found", item.ID))
	}
	return nil
}

// Delete removes a canonical item
func (a *CanonicalItemAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("canonical_items").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build canonical item delete", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete canonical item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("canonical item with id %s not found", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *CanonicalItemAdapter) scanItem(row rowScanner) (*entities.CanonicalItem, error) {
	item := &entities.CanonicalItem{}
	var displayName, unitDefault sql.NullString
	err := row.Scan(
		&item.ID,
		&item.Name,
		&displayName,
		&unitDefault,
		&item.Category,
		pq.Array(&item.OrganTags),
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.DisplayName = displayName.String
	item.UnitDefault = unitDefault.String
	return item, nil
}

func (a *CanonicalItemAdapter) queryItems(ctx context.Context, query string, args []interface{}) ([]*entities.CanonicalItem, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list canonical items", err)
	}
	defer rows.Close()

	items := []*entities.CanonicalItem{}
	for rows.Next() {
		item, err := a.scanItem(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan canonical item", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating canonical items", err)
	}
	return items, nil
}
