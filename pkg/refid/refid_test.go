package refid

import (
	"context"
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

func TestFormat(t *testing.T) {
	tests := []struct {
		name       string
		entityType models.EntityType
		number     int
		expected   string
	}{
		{
			name:       "property prefix",
			entityType: models.EntityTypeProperty,
			number:     1,
			expected:   "ZU-00001",
		},
		{
			name:       "contact prefix",
			entityType: models.EntityTypeClientContact,
			number:     42,
			expected:   "CLI-00042",
		},
		{
			name:       "opportunity prefix",
			entityType: models.EntityTypeOpportunity,
			number:     7,
			expected:   "OPO-00007",
		},
		{
			name:       "padding stops at five digits",
			entityType: models.EntityTypeOpportunity,
			number:     123456,
			expected:   "OPO-123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.entityType, tt.number))
		})
	}
}

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		name       string
		entityType models.EntityType
		identifier string
		expected   int
		ok         bool
	}{
		{
			name:       "well formed",
			entityType: models.EntityTypeOpportunity,
			identifier: "OPO-00042",
			expected:   42,
			ok:         true,
		},
		{
			name:       "unpadded suffix still parses",
			entityType: models.EntityTypeProperty,
			identifier: "ZU-7",
			expected:   7,
			ok:         true,
		},
		{
			name:       "wrong prefix",
			entityType: models.EntityTypeOpportunity,
			identifier: "CLI-00042",
			ok:         false,
		},
		{
			name:       "empty identifier",
			entityType: models.EntityTypeClientContact,
			identifier: "",
			ok:         false,
		},
		{
			name:       "garbage suffix",
			entityType: models.EntityTypeClientContact,
			identifier: "CLI-abc",
			ok:         false,
		},
		{
			name:       "trailing junk",
			entityType: models.EntityTypeProperty,
			identifier: "ZU-00001x",
			ok:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, ok := ParseSuffix(tt.entityType, tt.identifier)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, number)
			}
		})
	}
}

func TestMaxAssigned(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeOpportunity, "o1", base, map[string]any{"identifier": "OPO-00003"})
	store.Seed("t1", models.EntityTypeOpportunity, "o2", base.Add(time.Second), map[string]any{"identifier": "OPO-00010"})
	store.Seed("t1", models.EntityTypeOpportunity, "o3", base.Add(2*time.Second), map[string]any{"identifier": "bogus"})
	store.Seed("t1", models.EntityTypeOpportunity, "o4", base.Add(3*time.Second), map[string]any{})

	records, err := store.List(context.Background(), "t1", models.EntityTypeOpportunity)
	require.NoError(t, err)

	assert.Equal(t, 10, MaxAssigned(models.EntityTypeOpportunity, records))
	assert.Equal(t, 0, MaxAssigned(models.EntityTypeOpportunity, nil))
}

func TestNextIdentifiers(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := entitystore.NewMemoryStore()
	store.Seed("t1", models.EntityTypeClientContact, "c1", base, map[string]any{"identifier": "CLI-00004"})
	store.Seed("t1", models.EntityTypeClientContact, "c2", base.Add(time.Second), map[string]any{})

	allocator := NewAllocator(store, testLogger())

	t.Run("continues after highest assigned", func(t *testing.T) {
		ids, err := allocator.NextIdentifiers(ctx, "t1", models.EntityTypeClientContact, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"CLI-00005", "CLI-00006", "CLI-00007"}, ids)
	})

	t.Run("starts at one for an empty collection", func(t *testing.T) {
		ids, err := allocator.NextIdentifiers(ctx, "t1", models.EntityTypeProperty, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"ZU-00001"}, ids)
	})

	t.Run("clamps count below one", func(t *testing.T) {
		ids, err := allocator.NextIdentifiers(ctx, "t1", models.EntityTypeClientContact, 0)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})

	t.Run("clamps count above the cap", func(t *testing.T) {
		ids, err := allocator.NextIdentifiers(ctx, "t1", models.EntityTypeClientContact, MaxPerCall+50)
		require.NoError(t, err)
		assert.Len(t, ids, MaxPerCall)
	})

	t.Run("unknown entity type is a validation error", func(t *testing.T) {
		_, err := allocator.NextIdentifiers(ctx, "t1", models.EntityType("lead"), 1)
		require.Error(t, err)
		assert.Equal(t, 400, httperror.GetStatusCode(err))
	})

	t.Run("tenants do not share sequences", func(t *testing.T) {
		ids, err := allocator.NextIdentifiers(ctx, "t2", models.EntityTypeClientContact, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"CLI-00001"}, ids)
	})
}
