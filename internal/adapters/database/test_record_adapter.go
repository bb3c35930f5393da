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

// TestRecordAdapter implements the TestRecordRepository interface
type TestRecordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTestRecordAdapter creates a new test record adapter
func NewTestRecordAdapter(client *postgres.Client) repositories.TestRecordRepository {
	return &TestRecordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateHeader creates a new record header
func (a *TestRecordAdapter) CreateHeader(ctx context.Context, header *entities.TestRecordHeader) error {
	if header == nil {
		return apperrors.NewValidationError("record header is required")
	}
	if header.ID == "" {
		header.ID = uuid.New().String()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert("test_records").Rows(goqu.Record{
		"id":            header.ID,
		"test_date":     header.TestDate,
		"hospital_name": header.HospitalName,
		"subject_id":    header.SubjectID,
		"created_at":    header.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build record header insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create record header", err)
	}
	return nil
}

// GetHeader retrieves a record header by ID
func (a *TestRecordAdapter) GetHeader(ctx context.Context, id string) (*entities.TestRecordHeader, error) {
	query, args, err := a.db.Select("id", "test_date", "hospital_name", "subject_id", "created_at").
		From("test_records").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build record header query", err)
	}

	header := &entities.TestRecordHeader{}
	var hospitalName sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&header.ID,
		&header.TestDate,
		&hospitalName,
		&header.SubjectID,
		&header.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("record with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get record header", err)
	}
	header.HospitalName = hospitalName.String
	return header, nil
}

// UpdateHeader updates a record header
func (a *TestRecordAdapter) UpdateHeader(ctx context.Context, header *entities.TestRecordHeader) error {
	if header == nil {
		return apperrors.NewValidationError("record header is required")
	}

	query, args, err := a.db.Update("test_records").Set(goqu.Record{
		"test_date":     header.TestDate,
		"hospital_name": header.HospitalName,
		"subject_id":    header.SubjectID,
	}).Where(goqu.Ex{"id": header.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build record header update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update record header", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("record with id %s not found", header.ID))
	}
	return nil
}

// DeleteHeader removes a record header. The lines FK carries ON DELETE
// CASCADE, so its result lines go with it.
func (a *TestRecordAdapter) DeleteHeader(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("test_records").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build record header delete", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete record header", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("record with id %s not found", id))
	}
	return nil
}

// ListHeaders retrieves record headers with filters
func (a *TestRecordAdapter) ListHeaders(ctx context.Context, filter repositories.TestRecordFilter) ([]*entities.TestRecordHeader, error) {
	ds := a.db.Select("id", "test_date", "hospital_name", "subject_id", "created_at").
		From("test_records").
		Order(goqu.I("test_date").Desc())

	if filter.SubjectID != "" {
		ds = ds.Where(goqu.Ex{"subject_id": filter.SubjectID})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build record headers query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list record headers", err)
	}
	defer rows.Close()

	headers := []*entities.TestRecordHeader{}
	for rows.Next() {
		header := &entities.TestRecordHeader{}
		var hospitalName sql.NullString
		if err := rows.Scan(&header.ID, &header.TestDate, &hospitalName, &header.SubjectID, &header.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan record header", err)
		}
		header.HospitalName = hospitalName.String
		headers = append(headers, header)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating record headers", err)
	}
	return headers, nil
}

// TestResultLineAdapter implements the TestResultLineRepository interface
type TestResultLineAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTestResultLineAdapter creates a new result line adapter
func NewTestResultLineAdapter(client *postgres.Client) repositories.TestResultLineRepository {
	return &TestResultLineAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// BulkInsert inserts lines, upserting on (record_id, canonical_id) so a
// re-ingested document refreshes its lines instead of failing.
func (a *TestResultLineAdapter) BulkInsert(ctx context.Context, lines []*entities.TestResultLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO test_result_lines
			(id, record_id, canonical_id, value, raw_value, unit, ref_min, ref_max, status, raw_name, review_flagged, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (record_id, canonical_id)
		DO UPDATE SET
			value = EXCLUDED.value,
			raw_value = EXCLUDED.raw_value,
			unit = EXCLUDED.unit,
			ref_min = EXCLUDED.ref_min,
			ref_max = EXCLUDED.ref_max,
			status = EXCLUDED.status,
			raw_name = EXCLUDED.raw_name,
			review_flagged = EXCLUDED.review_flagged
	`

	for _, line := range lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = time.Now()
		}

		_, err := a.client.DB().ExecContext(
			ctx,
			query,
			line.ID,
			line.RecordID,
			line.CanonicalID,
			line.Value,
			line.RawValue,
			line.Unit,
			line.RefMin,
			line.RefMax,
			line.Status,
			line.RawName,
			line.ReviewFlagged,
			line.CreatedAt,
		)
		if err != nil {
			return apperrors.NewInternalError("failed to insert result line", err)
		}
	}
	return nil
}

// ListByRecordID retrieves all lines of one record
func (a *TestResultLineAdapter) ListByRecordID(ctx context.Context, recordID string) ([]*entities.TestResultLine, error) {
	query, args, err := a.db.Select(
		"id", "record_id", "canonical_id", "value", "raw_value", "unit",
		"ref_min", "ref_max", "status", "raw_name", "review_flagged", "created_at",
	).
		From("test_result_lines").
		Where(goqu.Ex{"record_id": recordID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build result lines query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list result lines", err)
	}
	defer rows.Close()

	lines := []*entities.TestResultLine{}
	for rows.Next() {
		line := &entities.TestResultLine{}
		var rawValue, unit, rawName sql.NullString
		err := rows.Scan(
			&line.ID,
			&line.RecordID,
			&line.CanonicalID,
			&line.Value,
			&rawValue,
			&unit,
			&line.RefMin,
			&line.RefMax,
			&line.Status,
			&rawName,
			&line.ReviewFlagged,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan result line", err)
		}
		line.RawValue = rawValue.String
		line.Unit = unit.String
		line.RawName = rawName.String
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating result lines", err)
	}
	return lines, nil
}

// DeleteByRecordAndCanonical removes one line by its natural key
func (a *TestResultLineAdapter) DeleteByRecordAndCanonical(ctx context.Context, recordID, canonicalID string) error {
	query, args, err := a.db.Delete("test_result_lines").
		Where(goqu.Ex{"record_id": recordID, "canonical_id": canonicalID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build result line delete", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete result line", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("result line for record %s and item %s not found", recordID, canonicalID))
	}
	return nil
}

// ReassignToRecord moves a line to another record header
func (a *TestResultLineAdapter) ReassignToRecord(ctx context.Context, lineID, targetRecordID string) error {
	query, args, err := a.db.Update("test_result_lines").
		Set(goqu.Record{"record_id": targetRecordID}).
		Where(goqu.Ex{"id": lineID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build result line reassign", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to reassign result line", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("result line with id %s not found", lineID))
	}
	return nil
}

// CountByCanonicalID counts the lines depending on a canonical item
func (a *TestResultLineAdapter) CountByCanonicalID(ctx context.Context, canonicalID string) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("test_result_lines").
		Where(goqu.Ex{"canonical_id": canonicalID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build result line count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count result lines", err)
	}
	return count, nil
}
