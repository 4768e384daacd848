package entitystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/internal/database"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/models"
)

const recordColumns = "id, tenant_id, entity_type, data, created_at, updated_at, deleted_at"

// Repository is the Postgres-backed Collection implementation. All
// collections share one records table keyed by entity_type, with the
// business fields in a jsonb document.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new record repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all live records of one entity type, oldest first.
func (r *Repository) List(ctx context.Context, tenantID string, entityType models.EntityType) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "entitystore.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns)
	sb.From("records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", string(entityType)),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to list %s records", entityType))
	}

	return records, nil
}

// Get retrieves a record by ID.
func (r *Repository) Get(ctx context.Context, tenantID string, entityType models.EntityType, id string) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "entitystore.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns)
	sb.From("records")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", string(entityType)),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", entityType, id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get record")
	}

	return &record, nil
}

// Create inserts a new record with a store-assigned id and timestamps.
func (r *Repository) Create(ctx context.Context, tenantID string, entityType models.EntityType, data map[string]any) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "entitystore.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Create",
		"tenant_id":   tenantID,
		"entity_type": entityType,
	})

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "record data is not serializable")
	}

	record := &models.Record{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		EntityType: entityType,
		Data:       doc,
		CreatedAt:  time.Now().UTC(),
	}
	record.UpdatedAt = record.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("records")
	sb.Cols("id", "tenant_id", "entity_type", "data", "created_at", "updated_at")
	sb.Values(record.ID, record.TenantID, string(record.EntityType), record.Data, record.CreatedAt, record.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create record")
	}

	log.WithFields(map[string]any{"id": record.ID}).Info("Created record")
	return record, nil
}

// UpdateFields merges the given fields into the record's jsonb document.
// Only the named fields change; concurrent edits to other fields survive.
func (r *Repository) UpdateFields(ctx context.Context, tenantID string, entityType models.EntityType, id string, fields map[string]any) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "entitystore.Repository.UpdateFields")
	defer span.End()

	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "field patch is not serializable")
	}

	query := `
		UPDATE records
		SET data = data || $1::jsonb, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND entity_type = $5 AND deleted_at IS NULL
		RETURNING ` + recordColumns

	var record models.Record
	err = r.db.GetContext(ctx, &record, query, patch, time.Now().UTC(), id, tenantID, string(entityType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", entityType, id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to update record fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update record")
	}

	return &record, nil
}

// FilterByField lists live records whose data field equals the given value.
// The field name comes from the core's fixed projection, never from callers.
func (r *Repository) FilterByField(ctx context.Context, tenantID string, entityType models.EntityType, field, value string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "entitystore.Repository.FilterByField")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns)
	sb.From("records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", string(entityType)),
		sb.Equal(fmt.Sprintf("data->>'%s'", field), value),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to filter records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to filter records")
	}

	return records, nil
}
