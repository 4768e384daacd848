package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() Config {
	return Config{BatchSize: 10, BatchDelay: 0}
}

func TestRunAssignsMissingIdentifiersInCreationOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeOpportunity, "o-old", base, map[string]any{"identifier": "OPO-00002"})
	store.Seed("t1", models.EntityTypeOpportunity, "o-c", base.Add(3*time.Second), map[string]any{})
	store.Seed("t1", models.EntityTypeOpportunity, "o-a", base.Add(time.Second), map[string]any{})
	store.Seed("t1", models.EntityTypeOpportunity, "o-b", base.Add(2*time.Second), map[string]any{})

	assigner := NewAssigner(store, testLogger(), nil, testConfig())

	result, err := assigner.Run(ctx, "t1", models.EntityTypeOpportunity)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	// Oldest missing record gets the lowest number, continuing after the
	// highest already assigned.
	require.Len(t, result.Details, 3)
	assert.Equal(t, models.BackfillDetail{RecordID: "o-a", Identifier: "OPO-00003"}, result.Details[0])
	assert.Equal(t, models.BackfillDetail{RecordID: "o-b", Identifier: "OPO-00004"}, result.Details[1])
	assert.Equal(t, models.BackfillDetail{RecordID: "o-c", Identifier: "OPO-00005"}, result.Details[2])

	rec, err := store.Get(ctx, "t1", models.EntityTypeOpportunity, "o-a")
	require.NoError(t, err)
	assert.Equal(t, "OPO-00003", rec.StringField(models.FieldIdentifier))
}

func TestRunBreaksCreationTimeTiesByID(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeClientContact, "c-z", base, map[string]any{})
	store.Seed("t1", models.EntityTypeClientContact, "c-a", base, map[string]any{})

	assigner := NewAssigner(store, testLogger(), nil, testConfig())

	result, err := assigner.Run(ctx, "t1", models.EntityTypeClientContact)
	require.NoError(t, err)

	require.Len(t, result.Details, 2)
	assert.Equal(t, "c-a", result.Details[0].RecordID)
	assert.Equal(t, "CLI-00001", result.Details[0].Identifier)
	assert.Equal(t, "c-z", result.Details[1].RecordID)
	assert.Equal(t, "CLI-00002", result.Details[1].Identifier)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeProperty, "p1", base, map[string]any{})
	store.Seed("t1", models.EntityTypeProperty, "p2", base.Add(time.Second), map[string]any{})

	assigner := NewAssigner(store, testLogger(), nil, testConfig())

	first, err := assigner.Run(ctx, "t1", models.EntityTypeProperty)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Updated)

	second, err := assigner.Run(ctx, "t1", models.EntityTypeProperty)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Skipped)
}

func TestRunAssignedIdentifiersAreUnique(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	for i := 0; i < 25; i++ {
		data := map[string]any{}
		if i%5 == 0 {
			data["identifier"] = "not-a-real-identifier"
		}
		store.Seed("t1", models.EntityTypeOpportunity, uuidLike(i), base.Add(time.Duration(i)*time.Second), data)
	}

	assigner := NewAssigner(store, testLogger(), nil, testConfig())

	result, err := assigner.Run(ctx, "t1", models.EntityTypeOpportunity)
	require.NoError(t, err)

	// Malformed identifiers are already set, so those records are skipped;
	// everything assigned in this run must be distinct.
	seen := map[string]bool{}
	for _, detail := range result.Details {
		assert.False(t, seen[detail.Identifier], "identifier %s assigned twice", detail.Identifier)
		seen[detail.Identifier] = true
	}
	assert.Equal(t, 20, result.Updated)
	assert.Equal(t, 5, result.Skipped)
}

func TestRunRecordsFailureAndKeepsGoing(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeOpportunity, "o1", base, map[string]any{})
	store.Seed("t1", models.EntityTypeOpportunity, "o2", base.Add(time.Second), map[string]any{})
	store.Seed("t1", models.EntityTypeOpportunity, "o3", base.Add(2*time.Second), map[string]any{})

	store.UpdateHook = func(_ models.EntityType, id string) error {
		if id == "o2" {
			return errors.New("write rejected")
		}
		return nil
	}

	assigner := NewAssigner(store, testLogger(), nil, testConfig())

	result, err := assigner.Run(ctx, "t1", models.EntityTypeOpportunity)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "o2", result.Errors[0].RecordID)

	// The failed record's number is consumed, not reused.
	require.Len(t, result.Details, 2)
	assert.Equal(t, "OPO-00001", result.Details[0].Identifier)
	assert.Equal(t, "OPO-00003", result.Details[1].Identifier)
}

func TestRunUnknownEntityType(t *testing.T) {
	assigner := NewAssigner(entitystore.NewMemoryStore(), testLogger(), nil, testConfig())

	_, err := assigner.Run(context.Background(), "t1", models.EntityType("lead"))
	require.Error(t, err)
	assert.Equal(t, 400, httperror.GetStatusCode(err))
}

func TestRunHonorsContextCancellationBetweenBatches(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	for i := 0; i < 4; i++ {
		store.Seed("t1", models.EntityTypeProperty, uuidLike(i), base.Add(time.Duration(i)*time.Second), map[string]any{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assigner := NewAssigner(store, testLogger(), nil, Config{BatchSize: 2, BatchDelay: time.Minute})

	result, err := assigner.Run(ctx, "t1", models.EntityTypeProperty)
	require.ErrorIs(t, err, context.Canceled)
	// The first batch completed before the pause noticed the cancellation.
	assert.Equal(t, 2, result.Updated)
}

func uuidLike(i int) string {
	return string(rune('a'+i%26)) + "-record"
}
