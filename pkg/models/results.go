package models

// BackfillDetail records one identifier assignment made during a backfill run.
type BackfillDetail struct {
	RecordID   string `json:"record_id"`
	Identifier string `json:"identifier"`
}

// BackfillResult is the outcome of one backfill run. A failed write still
// consumes its sequence number, so re-running the job never renumbers
// records that already succeeded.
type BackfillResult struct {
	EntityType EntityType       `json:"entity_type"`
	Updated    int              `json:"updated"`
	Skipped    int              `json:"skipped"`
	Errors     []RecordError    `json:"errors"`
	Details    []BackfillDetail `json:"details"`
}

// ReconcileSummary holds the counts for one resolve-and-repair pass.
type ReconcileSummary struct {
	TotalOpportunities   int `json:"total_opportunities"`
	TotalContacts        int `json:"total_contacts"`
	UpdatedOpportunities int `json:"updated_opportunities"`
	UpdatedContacts      int `json:"updated_contacts"`
}

// LinkChange describes one write the propagator made, for operator review.
type LinkChange struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	DisplayName string     `json:"display_name,omitempty"`
	LinkedTo    string     `json:"linked_to"`
}

// ReconcileResult is the outcome of one resolve-and-repair pass.
type ReconcileResult struct {
	Summary ReconcileSummary `json:"summary"`
	Results []LinkChange     `json:"results"`
	Errors  []RecordError    `json:"errors"`
}

// PropagateResult is the outcome of one agent propagation request.
type PropagateResult struct {
	Updated int    `json:"updated"`
	Message string `json:"message"`
}
