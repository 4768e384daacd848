// Package linker determines which Contact owns which Opportunity.
//
// Resolution is a pure function of a two-collection snapshot: given the
// same Contacts and Opportunities it always produces the same mapping,
// and it never writes anything. The propagator applies the mapping.
package linker

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Tier names the signal that produced a resolution, in precedence order.
// Explicit identifiers are authoritative, structural back-references come
// next, and email equality is a last-resort heuristic (shared household
// emails make it prone to false positives).
type Tier int

const (
	TierNone Tier = iota
	TierContactID
	TierProfileID
	TierBackReference
	TierEmail
)

func (t Tier) String() string {
	switch t {
	case TierContactID:
		return "contact_id"
	case TierProfileID:
		return "profile_id"
	case TierBackReference:
		return "back_reference"
	case TierEmail:
		return "email"
	}
	return "none"
}

// Resolution is the determined owner of one Opportunity for this pass.
// ContactID is empty when the Opportunity stays unlinked.
type Resolution struct {
	OpportunityID string
	ContactID     string
	Tier          Tier
}

// Linked reports whether the resolution found an owning Contact.
func (r Resolution) Linked() bool {
	return r.ContactID != ""
}

// Snapshot is the immutable input to one resolution pass.
type Snapshot struct {
	Contacts      []models.Contact
	Opportunities []models.Opportunity
}

// index holds the lookup tables derived from the Contact collection.
type index struct {
	byID      map[string]*models.Contact
	byEmail   map[string]*models.Contact
	claimedBy map[string]*models.Contact // opportunity id -> claiming contact
}

// buildIndex derives the lookup tables. Contacts are walked in
// (created_at, id) order so that duplicate emails and duplicate claims
// resolve to the same contact on every pass.
func buildIndex(contacts []models.Contact) *index {
	ordered := make([]*models.Contact, len(contacts))
	for i := range contacts {
		ordered[i] = &contacts[i]
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	idx := &index{
		byID:      make(map[string]*models.Contact, len(ordered)),
		byEmail:   make(map[string]*models.Contact),
		claimedBy: make(map[string]*models.Contact),
	}

	for _, c := range ordered {
		idx.byID[c.ID] = c

		if email := normalizers.NormalizeEmail(c.Email); email != "" {
			if _, taken := idx.byEmail[email]; !taken {
				idx.byEmail[email] = c
			}
		}

		for _, oppID := range c.LinkedOpportunityIDs {
			if _, taken := idx.claimedBy[oppID]; !taken {
				idx.claimedBy[oppID] = c
			}
		}
	}

	return idx
}

// resolve walks the precedence tiers for one Opportunity. First match
// wins; there is no scoring.
func (idx *index) resolve(opp models.Opportunity) Resolution {
	if opp.ContactID != "" {
		if c, ok := idx.byID[opp.ContactID]; ok {
			return Resolution{OpportunityID: opp.ID, ContactID: c.ID, Tier: TierContactID}
		}
	}

	if opp.ProfileID != "" {
		if c, ok := idx.byID[opp.ProfileID]; ok {
			return Resolution{OpportunityID: opp.ID, ContactID: c.ID, Tier: TierProfileID}
		}
	}

	if c, ok := idx.claimedBy[opp.ID]; ok {
		return Resolution{OpportunityID: opp.ID, ContactID: c.ID, Tier: TierBackReference}
	}

	if email := normalizers.NormalizeEmail(opp.BuyerEmail); email != "" {
		if c, ok := idx.byEmail[email]; ok {
			return Resolution{OpportunityID: opp.ID, ContactID: c.ID, Tier: TierEmail}
		}
	}

	return Resolution{OpportunityID: opp.ID, Tier: TierNone}
}

// ResolveOpportunity determines the owning Contact for one Opportunity
// against a Contact snapshot.
func ResolveOpportunity(opp models.Opportunity, contacts []models.Contact) Resolution {
	return buildIndex(contacts).resolve(opp)
}

// ResolveAll resolves every Opportunity in the snapshot, in snapshot
// order. Unlinked Opportunities are included with TierNone.
func ResolveAll(snap Snapshot) []Resolution {
	idx := buildIndex(snap.Contacts)

	resolutions := make([]Resolution, len(snap.Opportunities))
	for i, opp := range snap.Opportunities {
		resolutions[i] = idx.resolve(opp)
	}
	return resolutions
}

// OpportunitiesFor inverts a resolution set: the ids of every Opportunity
// resolved to the given Contact, in resolution order.
func OpportunitiesFor(contactID string, resolutions []Resolution) []string {
	var out []string
	for _, res := range resolutions {
		if res.ContactID == contactID {
			out = append(out, res.OpportunityID)
		}
	}
	return out
}
