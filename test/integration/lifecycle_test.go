package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/backfill"
	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/propagate"
	"github.com/Ramsey-B/clover/pkg/refid"
)

// testContext holds shared test context
type testContext struct {
	ctx        context.Context
	store      *entitystore.MemoryStore
	allocator  *refid.Allocator
	assigner   *backfill.Assigner
	propagator *propagate.Propagator
	tenantID   string
	base       time.Time
}

func setupTestContext(t *testing.T) *testContext {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	store := entitystore.NewMemoryStore()

	return &testContext{
		ctx:        context.Background(),
		store:      store,
		allocator:  refid.NewAllocator(store, logger),
		assigner:   backfill.NewAssigner(store, logger, nil, backfill.Config{BatchSize: 10}),
		propagator: propagate.NewPropagator(store, logger, nil, nil),
		tenantID:   "test-tenant",
		base:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TestMigratedTenantLifecycle walks a freshly migrated tenant through the
// full maintenance sequence: identifier backfill for every collection,
// link reconciliation, then an agent reassignment.
func TestMigratedTenantLifecycle(t *testing.T) {
	tc := setupTestContext(t)

	// A migrated tenant: some records carry identifiers, most do not,
	// and opportunity-contact links exist in every partial combination.
	tc.store.Seed(tc.tenantID, models.EntityTypeProperty, "p1", tc.base, map[string]any{
		"identifier": "ZU-00008", "display_name": "123 Main St",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeProperty, "p2", tc.base.Add(time.Second), map[string]any{
		"display_name": "9 Oak Ave",
	})

	tc.store.Seed(tc.tenantID, models.EntityTypeClientContact, "c1", tc.base, map[string]any{
		"email": "dana@example.com", "full_name": "Dana Buyer",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeClientContact, "c2", tc.base.Add(time.Second), map[string]any{
		"email":                  "sam@example.com",
		"full_name":              "Sam Seller",
		"linked_opportunity_ids": []string{"o3"},
	})

	// o1: linked both ways already. o2: email only. o3: claimed by c2 but
	// missing its own contact_id. o4: legacy profile_id alias.
	tc.store.Seed(tc.tenantID, models.EntityTypeOpportunity, "o1", tc.base, map[string]any{
		"identifier": "OPO-00001", "contact_id": "c1",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeOpportunity, "o2", tc.base.Add(time.Second), map[string]any{
		"buyer_email": "Dana@Example.com",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeOpportunity, "o3", tc.base.Add(2*time.Second), map[string]any{})
	tc.store.Seed(tc.tenantID, models.EntityTypeOpportunity, "o4", tc.base.Add(3*time.Second), map[string]any{
		"profile_id": "c2",
	})

	// Allocation continues after the highest existing identifier.
	ids, err := tc.allocator.NextIdentifiers(tc.ctx, tc.tenantID, models.EntityTypeProperty, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZU-00009", "ZU-00010"}, ids)

	// Backfill every collection.
	for _, entityType := range models.AllEntityTypes {
		_, err := tc.assigner.Run(tc.ctx, tc.tenantID, entityType)
		require.NoError(t, err)
	}

	p2, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeProperty, "p2")
	require.NoError(t, err)
	assert.Equal(t, "ZU-00009", p2.StringField(models.FieldIdentifier))

	o2, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeOpportunity, "o2")
	require.NoError(t, err)
	assert.Equal(t, "OPO-00002", o2.StringField(models.FieldIdentifier))

	// Reconcile links.
	result, err := tc.propagator.ReconcileLinks(tc.ctx, tc.tenantID)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, result.Summary.UpdatedOpportunities) // o2, o3, o4
	assert.Equal(t, 2, result.Summary.UpdatedContacts)

	expectOwner := map[string]string{"o1": "c1", "o2": "c1", "o3": "c2", "o4": "c2"}
	for oppID, contactID := range expectOwner {
		rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeOpportunity, oppID)
		require.NoError(t, err)
		assert.Equal(t, contactID, rec.StringField(models.FieldContactID), oppID)
	}

	c1Rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeClientContact, "c1")
	require.NoError(t, err)
	c1, err := models.ContactFromRecord(*c1Rec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"o1", "o2"}, c1.LinkedOpportunityIDs)

	c2Rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeClientContact, "c2")
	require.NoError(t, err)
	c2, err := models.ContactFromRecord(*c2Rec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"o3", "o4"}, c2.LinkedOpportunityIDs)

	// A second pass finds nothing to repair.
	tc.store.UpdateCalls = 0
	again, err := tc.propagator.ReconcileLinks(tc.ctx, tc.tenantID)
	require.NoError(t, err)
	assert.Equal(t, 0, tc.store.UpdateCalls)
	assert.Empty(t, again.Results)

	// Reassigning c1's agent fans out to both of its opportunities.
	agent := "agent-9"
	propagated, err := tc.propagator.PropagateAgent(tc.ctx, tc.tenantID, models.EntityTypeClientContact, "c1", &agent)
	require.NoError(t, err)
	assert.Equal(t, 2, propagated.Updated)

	for _, oppID := range []string{"o1", "o2"} {
		rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeOpportunity, oppID)
		require.NoError(t, err)
		assert.Equal(t, "agent-9", rec.StringField(models.FieldAssignedTo), oppID)
	}

	o3Rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeOpportunity, "o3")
	require.NoError(t, err)
	assert.Equal(t, "", o3Rec.StringField(models.FieldAssignedTo))
}

// TestSharedEmailHousehold checks that a shared household email resolves
// every opportunity to the oldest contact, on every pass.
func TestSharedEmailHousehold(t *testing.T) {
	tc := setupTestContext(t)

	tc.store.Seed(tc.tenantID, models.EntityTypeClientContact, "c-older", tc.base, map[string]any{
		"email": "household@example.com",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeClientContact, "c-newer", tc.base.Add(time.Minute), map[string]any{
		"email": "household@example.com",
	})
	tc.store.Seed(tc.tenantID, models.EntityTypeOpportunity, "o1", tc.base, map[string]any{
		"buyer_email": "household@example.com",
	})

	for pass := 0; pass < 2; pass++ {
		_, err := tc.propagator.ReconcileLinks(tc.ctx, tc.tenantID)
		require.NoError(t, err)

		rec, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeOpportunity, "o1")
		require.NoError(t, err)
		assert.Equal(t, "c-older", rec.StringField(models.FieldContactID))
	}

	newer, err := tc.store.Get(tc.ctx, tc.tenantID, models.EntityTypeClientContact, "c-newer")
	require.NoError(t, err)
	newerContact, err := models.ContactFromRecord(*newer)
	require.NoError(t, err)
	assert.Empty(t, newerContact.LinkedOpportunityIDs)
}
