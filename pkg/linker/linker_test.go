package linker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func contactAt(id string, offset int) models.Contact {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Contact{ID: id, CreatedAt: base.Add(time.Duration(offset) * time.Second)}
}

func TestResolvePrecedence(t *testing.T) {
	owner := contactAt("c-owner", 0)
	owner.Email = "owner@example.com"
	owner.LinkedOpportunityIDs = []string{"o-claimed"}

	decoy := contactAt("c-decoy", 1)
	decoy.Email = "decoy@example.com"

	contacts := []models.Contact{owner, decoy}

	tests := []struct {
		name     string
		opp      models.Opportunity
		expected Resolution
	}{
		{
			name: "contact_id wins over everything",
			opp: models.Opportunity{
				ID:         "o1",
				ContactID:  "c-owner",
				ProfileID:  "c-decoy",
				BuyerEmail: "decoy@example.com",
			},
			expected: Resolution{OpportunityID: "o1", ContactID: "c-owner", Tier: TierContactID},
		},
		{
			name: "profile_id beats back-reference and email",
			opp: models.Opportunity{
				ID:         "o-claimed",
				ProfileID:  "c-decoy",
				BuyerEmail: "owner@example.com",
			},
			expected: Resolution{OpportunityID: "o-claimed", ContactID: "c-decoy", Tier: TierProfileID},
		},
		{
			name: "back-reference beats email",
			opp: models.Opportunity{
				ID:         "o-claimed",
				BuyerEmail: "decoy@example.com",
			},
			expected: Resolution{OpportunityID: "o-claimed", ContactID: "c-owner", Tier: TierBackReference},
		},
		{
			name: "email is the last resort",
			opp: models.Opportunity{
				ID:         "o2",
				BuyerEmail: "decoy@example.com",
			},
			expected: Resolution{OpportunityID: "o2", ContactID: "c-decoy", Tier: TierEmail},
		},
		{
			name:     "no signal leaves the opportunity unlinked",
			opp:      models.Opportunity{ID: "o3"},
			expected: Resolution{OpportunityID: "o3", Tier: TierNone},
		},
		{
			name: "dangling contact_id falls through to the next tier",
			opp: models.Opportunity{
				ID:         "o4",
				ContactID:  "c-gone",
				BuyerEmail: "owner@example.com",
			},
			expected: Resolution{OpportunityID: "o4", ContactID: "c-owner", Tier: TierEmail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveOpportunity(tt.opp, contacts)
			assert.Equal(t, tt.expected, res)
			assert.Equal(t, tt.expected.ContactID != "", res.Linked())
		})
	}
}

func TestResolveEmailIsCaseInsensitive(t *testing.T) {
	contact := contactAt("c1", 0)
	contact.Email = "  Buyer@Example.COM "

	res := ResolveOpportunity(models.Opportunity{ID: "o1", BuyerEmail: "buyer@example.com"}, []models.Contact{contact})
	assert.Equal(t, Resolution{OpportunityID: "o1", ContactID: "c1", Tier: TierEmail}, res)
}

func TestResolveDuplicateEmailPicksOldestContact(t *testing.T) {
	older := contactAt("c-older", 0)
	older.Email = "shared@example.com"
	newer := contactAt("c-newer", 5)
	newer.Email = "shared@example.com"

	opp := models.Opportunity{ID: "o1", BuyerEmail: "shared@example.com"}

	// Input order must not matter.
	resA := ResolveOpportunity(opp, []models.Contact{older, newer})
	resB := ResolveOpportunity(opp, []models.Contact{newer, older})

	assert.Equal(t, "c-older", resA.ContactID)
	assert.Equal(t, resA, resB)
}

func TestResolveDuplicateClaimPicksOldestContact(t *testing.T) {
	first := contactAt("c-first", 0)
	first.LinkedOpportunityIDs = []string{"o1"}
	second := contactAt("c-second", 1)
	second.LinkedOpportunityIDs = []string{"o1"}

	res := ResolveOpportunity(models.Opportunity{ID: "o1"}, []models.Contact{second, first})
	assert.Equal(t, "c-first", res.ContactID)
	assert.Equal(t, TierBackReference, res.Tier)
}

func TestResolveAllIsDeterministic(t *testing.T) {
	a := contactAt("c-a", 0)
	a.Email = "a@example.com"
	b := contactAt("c-b", 0) // same creation time, id breaks the tie
	b.Email = "a@example.com"

	snap := Snapshot{
		Contacts: []models.Contact{b, a},
		Opportunities: []models.Opportunity{
			{ID: "o1", BuyerEmail: "a@example.com"},
			{ID: "o2"},
		},
	}

	first := ResolveAll(snap)
	second := ResolveAll(snap)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, "c-a", first[0].ContactID)
	assert.False(t, first[1].Linked())
}

func TestOpportunitiesFor(t *testing.T) {
	resolutions := []Resolution{
		{OpportunityID: "o1", ContactID: "c1", Tier: TierContactID},
		{OpportunityID: "o2", ContactID: "c2", Tier: TierEmail},
		{OpportunityID: "o3", ContactID: "c1", Tier: TierBackReference},
		{OpportunityID: "o4", Tier: TierNone},
	}

	assert.Equal(t, []string{"o1", "o3"}, OpportunitiesFor("c1", resolutions))
	assert.Equal(t, []string{"o2"}, OpportunitiesFor("c2", resolutions))
	assert.Nil(t, OpportunitiesFor("c3", resolutions))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "contact_id", TierContactID.String())
	assert.Equal(t, "profile_id", TierProfileID.String())
	assert.Equal(t, "back_reference", TierBackReference.String())
	assert.Equal(t, "email", TierEmail.String())
	assert.Equal(t, "none", TierNone.String())
}
