// Package refid computes human-readable reference identifiers of the form
// PREFIX-NNNNN for business records.
package refid

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/models"
)

// MaxPerCall caps how many identifiers one allocation call may return.
// Requests outside [1, MaxPerCall] are clamped, not rejected.
const MaxPerCall = 100

// prefixes is the static entity-type-to-prefix table.
var prefixes = map[models.EntityType]string{
	models.EntityTypeProperty:      "ZU",
	models.EntityTypeClientContact: "CLI",
	models.EntityTypeOpportunity:   "OPO",
}

var patterns = map[models.EntityType]*regexp.Regexp{}

func init() {
	for entityType, prefix := range prefixes {
		patterns[entityType] = regexp.MustCompile("^" + prefix + `-(\d+)$`)
	}
}

// PrefixFor returns the identifier prefix for an entity type.
func PrefixFor(entityType models.EntityType) (string, bool) {
	prefix, ok := prefixes[entityType]
	return prefix, ok
}

// Format renders an identifier for the given sequence number,
// e.g. Format(EntityTypeOpportunity, 42) == "OPO-00042".
func Format(entityType models.EntityType, number int) string {
	return fmt.Sprintf("%s-%05d", prefixes[entityType], number)
}

// ParseSuffix extracts the numeric suffix from an identifier. Identifiers
// that do not match the entity type's pattern are reported as absent.
func ParseSuffix(entityType models.EntityType, identifier string) (int, bool) {
	pattern, ok := patterns[entityType]
	if !ok || identifier == "" {
		return 0, false
	}
	match := pattern.FindStringSubmatch(identifier)
	if match == nil {
		return 0, false
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return number, true
}

// MaxAssigned scans a collection snapshot and returns the highest numeric
// suffix currently in use, or 0 when none are assigned. Records with a
// missing or malformed identifier are skipped.
func MaxAssigned(entityType models.EntityType, records []models.Record) int {
	max := 0
	for i := range records {
		identifier := records[i].StringField(models.FieldIdentifier)
		if number, ok := ParseSuffix(entityType, identifier); ok && number > max {
			max = number
		}
	}
	return max
}

// Allocator computes the next unassigned identifiers for an entity type.
//
// Allocation is read-then-compute: it takes no lock on the collection, so
// two concurrent calls over the same snapshot can return overlapping
// ranges. Callers that need hard uniqueness must serialize their calls;
// the maintenance jobs in this service do.
type Allocator struct {
	store  entitystore.Collection
	logger ectologger.Logger
}

// NewAllocator creates a new identifier allocator.
func NewAllocator(store entitystore.Collection, logger ectologger.Logger) *Allocator {
	return &Allocator{
		store:  store,
		logger: logger,
	}
}

// NextIdentifiers returns the next count identifiers for the entity type,
// starting at max(existing)+1. An unknown entity type is a validation
// error; a count outside [1, MaxPerCall] is clamped.
func (a *Allocator) NextIdentifiers(ctx context.Context, tenantID string, entityType models.EntityType, count int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "refid.Allocator.NextIdentifiers")
	defer span.End()

	if _, ok := prefixes[entityType]; !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type %q", entityType)
	}

	if count < 1 {
		count = 1
	}
	if count > MaxPerCall {
		count = MaxPerCall
	}

	records, err := a.store.List(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	start := MaxAssigned(entityType, records) + 1
	identifiers := make([]string, count)
	for i := 0; i < count; i++ {
		identifiers[i] = Format(entityType, start+i)
	}

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"count":       count,
		"first":       identifiers[0],
	}).Debug("Allocated identifiers")

	return identifiers, nil
}
