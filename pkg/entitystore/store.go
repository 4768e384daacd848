// Package entitystore provides read/write/list access to the managed
// record collections. The reconciliation core only talks to collections
// through the Collection port, so tests and alternate backends can swap
// the Postgres implementation out.
package entitystore

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Collection is the port over one named record type. List order is
// stable: created_at ascending, id ascending on ties.
type Collection interface {
	List(ctx context.Context, tenantID string, entityType models.EntityType) ([]models.Record, error)
	Get(ctx context.Context, tenantID string, entityType models.EntityType, id string) (*models.Record, error)
	Create(ctx context.Context, tenantID string, entityType models.EntityType, data map[string]any) (*models.Record, error)
	// UpdateFields merges the given fields into the record's data document,
	// leaving every other field untouched.
	UpdateFields(ctx context.Context, tenantID string, entityType models.EntityType, id string, fields map[string]any) (*models.Record, error)
	// FilterByField lists records whose data field equals the given value.
	FilterByField(ctx context.Context, tenantID string, entityType models.EntityType, field, value string) ([]models.Record, error)
}
