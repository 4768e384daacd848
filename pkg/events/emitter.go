// Package events publishes audit events for maintenance operations.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Emitter publishes operation outcomes for audit consumers. A nil Emitter
// is safe to call; emission failures are logged and never fail the run.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) emit(ctx context.Context, eventType, tenantID, entityType string, summary any) {
	if e == nil || e.producer == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to serialize operation event summary")
		return
	}

	event := &kafka.OperationEvent{
		EventType:  eventType,
		TenantID:   tenantID,
		EntityType: entityType,
		Summary:    data,
	}

	if err := e.producer.PublishOperationEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Warn("Failed to emit operation event")
	}
}

// EmitBackfillCompleted emits the outcome of a backfill run.
func (e *Emitter) EmitBackfillCompleted(ctx context.Context, tenantID string, result *models.BackfillResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBackfillCompleted")
	defer span.End()

	e.emit(ctx, "identifiers.backfilled", tenantID, string(result.EntityType), result)
}

// EmitLinksReconciled emits the outcome of a resolve-and-repair pass.
func (e *Emitter) EmitLinksReconciled(ctx context.Context, tenantID string, result *models.ReconcileResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLinksReconciled")
	defer span.End()

	e.emit(ctx, "links.reconciled", tenantID, "", result.Summary)
}

// EmitAgentPropagated emits the outcome of an agent propagation.
func (e *Emitter) EmitAgentPropagated(ctx context.Context, tenantID string, entityType models.EntityType, result *models.PropagateResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAgentPropagated")
	defer span.End()

	e.emit(ctx, "agent.propagated", tenantID, string(entityType), result)
}
