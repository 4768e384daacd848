package entitystore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// MemoryStore is an in-memory Collection used by tests. UpdateHook, when
// set, runs before each UpdateFields call and can force a failure for a
// specific record.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.Record // key: tenant|type|id
	clock   time.Time

	UpdateHook  func(entityType models.EntityType, id string) error
	UpdateCalls int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.Record),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func key(tenantID string, entityType models.EntityType, id string) string {
	return tenantID + "|" + string(entityType) + "|" + id
}

// tick advances the fake clock so successive creates get distinct,
// strictly increasing timestamps.
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Seed inserts a record with a fixed id and creation time, bypassing the
// store-assigned values. Intended for test setup.
func (s *MemoryStore) Seed(tenantID string, entityType models.EntityType, id string, createdAt time.Time, data map[string]any) *models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := json.Marshal(data)
	rec := &models.Record{
		ID:         id,
		TenantID:   tenantID,
		EntityType: entityType,
		Data:       doc,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	s.records[key(tenantID, entityType, id)] = rec
	// Keep the clock ahead of seeded timestamps so later updates
	// never produce an UpdatedAt before CreatedAt.
	if createdAt.After(s.clock) {
		s.clock = createdAt
	}
	return rec
}

func (s *MemoryStore) List(ctx context.Context, tenantID string, entityType models.EntityType) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Record
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.EntityType == entityType && rec.DeletedAt == nil {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string, entityType models.EntityType, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key(tenantID, entityType, id)]
	if !ok || rec.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", entityType, id)
	}
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) Create(ctx context.Context, tenantID string, entityType models.EntityType, data map[string]any) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "record data is not serializable")
	}

	now := s.tick()
	rec := &models.Record{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		EntityType: entityType,
		Data:       doc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.records[key(tenantID, entityType, rec.ID)] = rec
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, tenantID string, entityType models.EntityType, id string, fields map[string]any) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdateCalls++
	if s.UpdateHook != nil {
		if err := s.UpdateHook(entityType, id); err != nil {
			return nil, err
		}
	}

	rec, ok := s.records[key(tenantID, entityType, id)]
	if !ok || rec.DeletedAt != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", entityType, id)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt record data for %s: %w", id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	rec.Data = merged
	rec.UpdatedAt = s.tick()
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) FilterByField(ctx context.Context, tenantID string, entityType models.EntityType, field, value string) ([]models.Record, error) {
	all, err := s.List(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	var out []models.Record
	for _, rec := range all {
		if rec.StringField(field) == value {
			out = append(out, rec)
		}
	}
	return out, nil
}
