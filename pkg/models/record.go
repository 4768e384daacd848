package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies one of the managed record collections.
type EntityType string

const (
	EntityTypeProperty      EntityType = "property"
	EntityTypeClientContact EntityType = "client_contact"
	EntityTypeOpportunity   EntityType = "opportunity"
)

// AllEntityTypes lists every managed collection, in prefix-table order.
var AllEntityTypes = []EntityType{
	EntityTypeProperty,
	EntityTypeClientContact,
	EntityTypeOpportunity,
}

// ParseEntityType validates a caller-supplied entity type selector.
func ParseEntityType(s string) (EntityType, bool) {
	switch EntityType(s) {
	case EntityTypeProperty, EntityTypeClientContact, EntityTypeOpportunity:
		return EntityType(s), true
	}
	return "", false
}

// Record is one row of a managed collection. The store assigns id and
// created_at; everything the business cares about lives in the opaque
// data document, of which the reconciliation core reads a small projection.
type Record struct {
	ID         string          `json:"id" db:"id"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	EntityType EntityType      `json:"entity_type" db:"entity_type"`
	Data       json.RawMessage `json:"data" db:"data"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Data field keys the core reads and writes. Everything else in the
// document is pass-through CRM state this core never touches.
const (
	FieldIdentifier        = "identifier"
	FieldEmail             = "email"
	FieldFullName          = "full_name"
	FieldAssignedAgent     = "assigned_agent"
	FieldLinkedOppIDs      = "linked_opportunity_ids"
	FieldContactID         = "contact_id"
	FieldProfileID         = "profile_id"
	FieldBuyerEmail        = "buyer_email"
	FieldAssignedTo        = "assigned_to"
	FieldAssignedAgentName = "assigned_agent_name"
	FieldDisplayName       = "display_name"
)

// StringField pulls a string field out of the record's data document.
// Missing or non-string values come back empty.
func (r *Record) StringField(key string) string {
	var data map[string]any
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// RecordError captures one record-level failure inside a batch operation.
type RecordError struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}
