package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrail/backend/pkg/errors"
)

// AliasAdapter implements the AliasRepository interface
type AliasAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAliasAdapter creates a new alias adapter
func NewAliasAdapter(client *postgres.Client) repositories.AliasRepository {
	return &AliasAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new alias entry
func (a *AliasAdapter) Create(ctx context.Context, entry *entities.AliasEntry) error {
	if entry == nil {
		return apperrors.NewValidationError("alias entry is required")
	}
	if entry.Alias == "" || entry.CanonicalID == "" {
		return apperrors.NewValidationError("alias and canonical id are required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert("item_aliases").Rows(goqu.Record{
		"id":           entry.ID,
		"alias":        entry.Alias,
		"canonical_id": entry.CanonicalID,
		"source_hint":  entry.SourceHint,
		"created_at":   entry.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alias insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create alias", err)
	}
	return nil
}

// GetByAlias retrieves an alias entry by exact alias, case-insensitively
func (a *AliasAdapter) GetByAlias(ctx context.Context, alias string) (*entities.AliasEntry, error) {
	query, args, err := a.db.Select("id", "alias", "canonical_id", "source_hint", "created_at").
		From("item_aliases").
		Where(goqu.L("LOWER(alias) = LOWER(?)", alias)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alias query", err)
	}

	entry := &entities.AliasEntry{}
	var sourceHint sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&entry.ID,
		&entry.Alias,
		&entry.CanonicalID,
		&sourceHint,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("alias %q not found", alias))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get alias", err)
	}
	entry.SourceHint = sourceHint.String
	return entry, nil
}

// List retrieves the full alias dictionary
func (a *AliasAdapter) List(ctx context.Context) ([]*entities.AliasEntry, error) {
	query, args, err := a.db.Select("id", "alias", "canonical_id", "source_hint", "created_at").
		From("item_aliases").
		Order(goqu.I("alias").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alias list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list aliases", err)
	}
	defer rows.Close()

	entries := []*entities.AliasEntry{}
	for rows.Next() {
		entry := &entities.AliasEntry{}
		var sourceHint sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Alias, &entry.CanonicalID, &sourceHint, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan alias", err)
		}
		entry.SourceHint = sourceHint.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating aliases", err)
	}
	return entries, nil
}

// DeleteByCanonicalID removes all aliases pointing at a canonical item
func (a *AliasAdapter) DeleteByCanonicalID(ctx context.Context, canonicalID string) error {
	query, args, err := a.db.Delete("item_aliases").
		Where(goqu.Ex{"canonical_id": canonicalID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alias delete", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete aliases", err)
	}
	return nil
}
