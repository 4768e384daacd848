// Package propagate applies link resolutions back to the record store so
// that both directions of the ownership invariant hold, and fans out
// agent assignments across linked records.
package propagate

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/linker"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Propagator writes resolved relationships to both sides with the
// minimum necessary updates. Every pass is idempotent: when the
// collections are already consistent it performs zero writes.
type Propagator struct {
	store   entitystore.Collection
	logger  ectologger.Logger
	emitter *events.Emitter
	mirror  *graph.LinkService
}

// NewPropagator creates a new propagator. The emitter and mirror may be nil.
func NewPropagator(store entitystore.Collection, logger ectologger.Logger, emitter *events.Emitter, mirror *graph.LinkService) *Propagator {
	return &Propagator{
		store:   store,
		logger:  logger,
		emitter: emitter,
		mirror:  mirror,
	}
}

// fetchSnapshot reads both collections. The two reads are independent,
// so they are issued concurrently.
func (p *Propagator) fetchSnapshot(ctx context.Context, tenantID string) ([]models.Record, []models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "propagate.Propagator.fetchSnapshot")
	defer span.End()

	var (
		wg                  sync.WaitGroup
		contacts, opps      []models.Record
		contactErr, oppsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		contacts, contactErr = p.store.List(ctx, tenantID, models.EntityTypeClientContact)
	}()
	go func() {
		defer wg.Done()
		opps, oppsErr = p.store.List(ctx, tenantID, models.EntityTypeOpportunity)
	}()
	wg.Wait()

	if contactErr != nil {
		return nil, nil, contactErr
	}
	if oppsErr != nil {
		return nil, nil, oppsErr
	}
	return contacts, opps, nil
}

// ReconcileLinks resolves every Opportunity against the Contact
// collection and repairs both invariant directions. One record's write
// failure is recorded and the pass continues; nothing is rolled back.
func (p *Propagator) ReconcileLinks(ctx context.Context, tenantID string) (*models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "propagate.Propagator.ReconcileLinks")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID})

	contactRecords, oppRecords, err := p.fetchSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{
		Results: []models.LinkChange{},
		Errors:  []models.RecordError{},
	}

	snap := linker.Snapshot{}
	for _, rec := range contactRecords {
		contact, err := models.ContactFromRecord(rec)
		if err != nil {
			result.Errors = append(result.Errors, models.RecordError{RecordID: rec.ID, Reason: "unreadable contact record: " + err.Error()})
			continue
		}
		snap.Contacts = append(snap.Contacts, contact)
	}
	for _, rec := range oppRecords {
		opp, err := models.OpportunityFromRecord(rec)
		if err != nil {
			result.Errors = append(result.Errors, models.RecordError{RecordID: rec.ID, Reason: "unreadable opportunity record: " + err.Error()})
			continue
		}
		snap.Opportunities = append(snap.Opportunities, opp)
	}

	result.Summary.TotalContacts = len(snap.Contacts)
	result.Summary.TotalOpportunities = len(snap.Opportunities)

	contactsByID := make(map[string]*models.Contact, len(snap.Contacts))
	for i := range snap.Contacts {
		contactsByID[snap.Contacts[i].ID] = &snap.Contacts[i]
	}

	resolutions := linker.ResolveAll(snap)

	// Opportunity ids each contact must additionally claim, gathered so
	// every contact is written at most once per pass.
	pendingClaims := make(map[string][]string)

	for i, res := range resolutions {
		if !res.Linked() {
			continue
		}

		opp := snap.Opportunities[i]
		contact := contactsByID[res.ContactID]

		if opp.ContactID != res.ContactID {
			if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeOpportunity, opp.ID, map[string]any{
				models.FieldContactID: res.ContactID,
			}); err != nil {
				log.WithError(err).WithFields(map[string]any{"opportunity_id": opp.ID}).Warn("Failed to link opportunity to contact")
				result.Errors = append(result.Errors, models.RecordError{RecordID: opp.ID, Reason: err.Error()})
			} else {
				result.Summary.UpdatedOpportunities++
				result.Results = append(result.Results, models.LinkChange{
					EntityType:  models.EntityTypeOpportunity,
					EntityID:    opp.ID,
					DisplayName: opp.DisplayName,
					LinkedTo:    res.ContactID,
				})
			}
		}

		if !contact.HasLinkedOpportunity(opp.ID) {
			pendingClaims[contact.ID] = append(pendingClaims[contact.ID], opp.ID)
		}

		p.mirror.SyncLink(ctx, tenantID, contact.ID, contact.FullName, opp.ID, opp.DisplayName)
	}

	for contactID, oppIDs := range pendingClaims {
		contact := contactsByID[contactID]
		linked := append(append([]string{}, contact.LinkedOpportunityIDs...), oppIDs...)

		if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeClientContact, contactID, map[string]any{
			models.FieldLinkedOppIDs: linked,
		}); err != nil {
			log.WithError(err).WithFields(map[string]any{"contact_id": contactID}).Warn("Failed to update contact linked opportunities")
			result.Errors = append(result.Errors, models.RecordError{RecordID: contactID, Reason: err.Error()})
			continue
		}

		result.Summary.UpdatedContacts++
		result.Results = append(result.Results, models.LinkChange{
			EntityType:  models.EntityTypeClientContact,
			EntityID:    contactID,
			DisplayName: contact.FullName,
			LinkedTo:    fmt.Sprintf("%d opportunities", len(linked)),
		})
	}

	log.WithFields(map[string]any{
		"total_opportunities":   result.Summary.TotalOpportunities,
		"total_contacts":        result.Summary.TotalContacts,
		"updated_opportunities": result.Summary.UpdatedOpportunities,
		"updated_contacts":      result.Summary.UpdatedContacts,
		"failed":                len(result.Errors),
	}).Info("Link reconciliation pass completed")

	p.emitter.EmitLinksReconciled(ctx, tenantID, result)

	return result, nil
}

// PropagateAgent pushes an agent assignment from one entity to everything
// linked to it in the opposite direction. Setting a Contact's agent
// updates every Opportunity it claims plus any Opportunity still pointing
// at it through the legacy profile_id alias; setting an Opportunity's
// agent updates only its single owning Contact. A nil agent clears the
// assignment.
func (p *Propagator) PropagateAgent(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, agent *string) (*models.PropagateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "propagate.Propagator.PropagateAgent")
	defer span.End()

	value := ""
	if agent != nil {
		value = *agent
	}

	var result *models.PropagateResult
	var err error

	switch entityType {
	case models.EntityTypeClientContact:
		result, err = p.propagateFromContact(ctx, tenantID, entityID, value)
	case models.EntityTypeOpportunity:
		result, err = p.propagateFromOpportunity(ctx, tenantID, entityID, value)
	default:
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "entity type %q does not carry an agent assignment", entityType)
	}
	if err != nil {
		return nil, err
	}

	p.emitter.EmitAgentPropagated(ctx, tenantID, entityType, result)
	return result, nil
}

func (p *Propagator) propagateFromContact(ctx context.Context, tenantID, contactID, agent string) (*models.PropagateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "propagate.Propagator.propagateFromContact")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"contact_id": contactID,
	})

	rec, err := p.store.Get(ctx, tenantID, models.EntityTypeClientContact, contactID)
	if err != nil {
		return nil, err
	}
	contact, err := models.ContactFromRecord(*rec)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "contact %s is unreadable", contactID)
	}

	if contact.AssignedAgent != agent {
		if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeClientContact, contactID, map[string]any{
			models.FieldAssignedAgent: agent,
		}); err != nil {
			return nil, err
		}
	}

	// Fan-out targets: every claimed opportunity plus any opportunity
	// still referencing the contact through the legacy alias.
	targets := make(map[string]bool)
	for _, oppID := range contact.LinkedOpportunityIDs {
		targets[oppID] = true
	}
	aliased, err := p.store.FilterByField(ctx, tenantID, models.EntityTypeOpportunity, models.FieldProfileID, contactID)
	if err != nil {
		return nil, err
	}
	for _, rec := range aliased {
		targets[rec.ID] = true
	}

	updated := 0
	failed := 0
	for oppID := range targets {
		oppRec, err := p.store.Get(ctx, tenantID, models.EntityTypeOpportunity, oppID)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"opportunity_id": oppID}).Warn("Skipping missing opportunity during agent fan-out")
			failed++
			continue
		}
		if oppRec.StringField(models.FieldAssignedTo) == agent {
			continue
		}
		if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeOpportunity, oppID, map[string]any{
			models.FieldAssignedTo:        agent,
			models.FieldAssignedAgentName: agent,
		}); err != nil {
			log.WithError(err).WithFields(map[string]any{"opportunity_id": oppID}).Warn("Failed to propagate agent to opportunity")
			failed++
			continue
		}
		updated++
	}

	message := fmt.Sprintf("agent propagated to %d opportunities", updated)
	if failed > 0 {
		message = fmt.Sprintf("%s (%d failed)", message, failed)
	}

	log.WithFields(map[string]any{"updated": updated, "failed": failed}).Info("Propagated agent from contact")

	return &models.PropagateResult{Updated: updated, Message: message}, nil
}

func (p *Propagator) propagateFromOpportunity(ctx context.Context, tenantID, opportunityID, agent string) (*models.PropagateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "propagate.Propagator.propagateFromOpportunity")
	defer span.End()

	rec, err := p.store.Get(ctx, tenantID, models.EntityTypeOpportunity, opportunityID)
	if err != nil {
		return nil, err
	}
	opp, err := models.OpportunityFromRecord(*rec)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "opportunity %s is unreadable", opportunityID)
	}

	if opp.AssignedTo != agent {
		if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeOpportunity, opportunityID, map[string]any{
			models.FieldAssignedTo:        agent,
			models.FieldAssignedAgentName: agent,
		}); err != nil {
			return nil, err
		}
	}

	contactRecords, err := p.store.List(ctx, tenantID, models.EntityTypeClientContact)
	if err != nil {
		return nil, err
	}
	contacts := make([]models.Contact, 0, len(contactRecords))
	for _, cr := range contactRecords {
		contact, err := models.ContactFromRecord(cr)
		if err != nil {
			continue
		}
		contacts = append(contacts, contact)
	}

	res := linker.ResolveOpportunity(opp, contacts)
	if !res.Linked() {
		return &models.PropagateResult{Updated: 0, Message: "opportunity has no linked contact"}, nil
	}

	for _, contact := range contacts {
		if contact.ID == res.ContactID && contact.AssignedAgent == agent {
			return &models.PropagateResult{Updated: 0, Message: "linked contact already assigned"}, nil
		}
	}

	if _, err := p.store.UpdateFields(ctx, tenantID, models.EntityTypeClientContact, res.ContactID, map[string]any{
		models.FieldAssignedAgent: agent,
	}); err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":      tenantID,
		"opportunity_id": opportunityID,
		"contact_id":     res.ContactID,
	}).Info("Propagated agent from opportunity")

	return &models.PropagateResult{Updated: 1, Message: "agent propagated to linked contact"}, nil
}
