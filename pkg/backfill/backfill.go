// Package backfill assigns reference identifiers to records that are
// missing one.
package backfill

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/refid"
)

// Config is the pacing policy for backfill writes. The batching exists
// only to stay under the record store's write-rate ceiling; shrinking the
// batch or removing the delay changes run time, never the result.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// DefaultConfig returns the production pacing policy.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		BatchDelay: 2000 * time.Millisecond,
	}
}

// Assigner fills in missing identifiers for one entity type, oldest
// record first.
type Assigner struct {
	store   entitystore.Collection
	logger  ectologger.Logger
	emitter *events.Emitter
	config  Config
}

// NewAssigner creates a new backfill assigner. The emitter may be nil.
func NewAssigner(store entitystore.Collection, logger ectologger.Logger, emitter *events.Emitter, config Config) *Assigner {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Assigner{
		store:   store,
		logger:  logger,
		emitter: emitter,
		config:  config,
	}
}

// Run assigns identifiers to every record of the entity type that lacks
// one. Records are numbered in creation order starting at max(existing)+1.
// A failed write is recorded and its number is not reused; the run keeps
// going, so a re-run after fixing the cause is safe and idempotent.
func (a *Assigner) Run(ctx context.Context, tenantID string, entityType models.EntityType) (*models.BackfillResult, error) {
	ctx, span := tracing.StartSpan(ctx, "backfill.Assigner.Run")
	defer span.End()

	if _, ok := refid.PrefixFor(entityType); !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", entityType)
	}

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
	})

	records, err := a.store.List(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	var assigned, missing []models.Record
	for _, rec := range records {
		if rec.StringField(models.FieldIdentifier) != "" {
			assigned = append(assigned, rec)
		} else {
			missing = append(missing, rec)
		}
	}

	// Oldest first; id breaks creation-time ties so numbering is
	// reproducible across runs.
	sort.Slice(missing, func(i, j int) bool {
		if !missing[i].CreatedAt.Equal(missing[j].CreatedAt) {
			return missing[i].CreatedAt.Before(missing[j].CreatedAt)
		}
		return missing[i].ID < missing[j].ID
	})

	result := &models.BackfillResult{
		EntityType: entityType,
		Skipped:    len(assigned),
		Errors:     []models.RecordError{},
		Details:    []models.BackfillDetail{},
	}

	next := refid.MaxAssigned(entityType, assigned) + 1

	for i, rec := range missing {
		if i > 0 && i%a.config.BatchSize == 0 && a.config.BatchDelay > 0 {
			log.WithFields(map[string]any{"completed": i, "remaining": len(missing) - i}).Debug("Pausing between backfill batches")
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(a.config.BatchDelay):
			}
		}

		identifier := refid.Format(entityType, next)
		next++

		if _, err := a.store.UpdateFields(ctx, tenantID, entityType, rec.ID, map[string]any{
			models.FieldIdentifier: identifier,
		}); err != nil {
			log.WithError(err).WithFields(map[string]any{"record_id": rec.ID}).Warn("Failed to assign identifier")
			result.Errors = append(result.Errors, models.RecordError{
				RecordID: rec.ID,
				Reason:   err.Error(),
			})
			continue
		}

		result.Updated++
		result.Details = append(result.Details, models.BackfillDetail{
			RecordID:   rec.ID,
			Identifier: identifier,
		})
	}

	log.WithFields(map[string]any{
		"updated": result.Updated,
		"skipped": result.Skipped,
		"failed":  len(result.Errors),
	}).Info("Backfill run completed")

	a.emitter.EmitBackfillCompleted(ctx, tenantID, result)

	return result, nil
}
