package models

import (
	"encoding/json"
	"time"
)

// Opportunity is the projection of an opportunity record the link resolver
// and propagator operate on. ProfileID is a legacy alias for ContactID that
// older records still carry.
type Opportunity struct {
	ID                string `json:"id"`
	Identifier        string `json:"identifier,omitempty"`
	ContactID         string `json:"contact_id,omitempty"`
	ProfileID         string `json:"profile_id,omitempty"`
	BuyerEmail        string `json:"buyer_email,omitempty"`
	AssignedTo        string `json:"assigned_to,omitempty"`
	AssignedAgentName string `json:"assigned_agent_name,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`

	CreatedAt time.Time `json:"-"`
}

// OpportunityFromRecord projects a raw record into an Opportunity.
func OpportunityFromRecord(rec Record) (Opportunity, error) {
	var o Opportunity
	if err := json.Unmarshal(rec.Data, &o); err != nil {
		return Opportunity{}, err
	}
	o.ID = rec.ID
	o.CreatedAt = rec.CreatedAt
	return o, nil
}
