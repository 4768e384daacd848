package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/internal/tracing"
)

// LinkService mirrors resolved ownership links as
// (:Contact)-[:OWNS]->(:Opportunity) edges. A nil LinkService is safe to
// call, so the mirror can stay disabled in environments without a graph
// database.
type LinkService struct {
	client *Client
	logger ectologger.Logger
}

// NewLinkService creates a new link mirror service
func NewLinkService(client *Client, logger ectologger.Logger) *LinkService {
	return &LinkService{
		client: client,
		logger: logger,
	}
}

// SyncLink upserts the contact and opportunity nodes and the OWNS edge
// between them. Failures are logged, never propagated; the mirror must
// not fail a reconciliation pass.
func (s *LinkService) SyncLink(ctx context.Context, tenantID, contactID, contactName, opportunityID, opportunityName string) {
	if s == nil || s.client == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "graph.LinkService.SyncLink")
	defer span.End()

	cypher := `
		MERGE (c:Contact {id: $contact_id, tenant_id: $tenant_id})
		SET c.display_name = $contact_name
		MERGE (o:Opportunity {id: $opportunity_id, tenant_id: $tenant_id})
		SET o.display_name = $opportunity_name
		MERGE (c)-[:OWNS]->(o)
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id":        tenantID,
			"contact_id":       contactID,
			"contact_name":     contactName,
			"opportunity_id":   opportunityID,
			"opportunity_name": opportunityName,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"contact_id":     contactID,
			"opportunity_id": opportunityID,
		}).Warn("Failed to mirror link to graph")
	}
}
