package models

import (
	"encoding/json"
	"time"
)

// Contact is the projection of a client_contact record the link resolver
// and propagator operate on.
type Contact struct {
	ID                   string   `json:"id"`
	Identifier           string   `json:"identifier,omitempty"`
	Email                string   `json:"email,omitempty"`
	FullName             string   `json:"full_name,omitempty"`
	AssignedAgent        string   `json:"assigned_agent,omitempty"`
	LinkedOpportunityIDs []string `json:"linked_opportunity_ids,omitempty"`

	CreatedAt time.Time `json:"-"`
}

// ContactFromRecord projects a raw record into a Contact.
func ContactFromRecord(rec Record) (Contact, error) {
	var c Contact
	if err := json.Unmarshal(rec.Data, &c); err != nil {
		return Contact{}, err
	}
	c.ID = rec.ID
	c.CreatedAt = rec.CreatedAt
	return c, nil
}

// HasLinkedOpportunity reports whether the contact already claims the
// given opportunity in its linked id list.
func (c *Contact) HasLinkedOpportunity(opportunityID string) bool {
	for _, id := range c.LinkedOpportunityIDs {
		if id == opportunityID {
			return true
		}
	}
	return false
}
