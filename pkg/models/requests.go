package models

// AllocateIdentifiersRequest is the body for the identifier allocation endpoint.
type AllocateIdentifiersRequest struct {
	EntityType string `json:"entity_type" validate:"required"`
	Count      int    `json:"count"`
}

// AllocateIdentifiersResponse returns the allocated identifiers in order.
type AllocateIdentifiersResponse struct {
	EntityType  string   `json:"entity_type"`
	Identifiers []string `json:"identifiers"`
}

// BackfillRequest is the body for the identifier backfill endpoint.
type BackfillRequest struct {
	EntityType string `json:"entity_type" validate:"required"`
}

// PropagateAgentRequest is the body for the agent propagation endpoint.
// A null agent clears the assignment on every touched record.
type PropagateAgentRequest struct {
	EntityType string  `json:"entity_type" validate:"required,oneof=client_contact opportunity"`
	EntityID   string  `json:"entity_id" validate:"required"`
	Agent      *string `json:"agent"`
}
