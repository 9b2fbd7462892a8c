package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-record-catalog/catalog"
	"github.com/goliatone/go-record-catalog/query"
)

// MemoryRecordStore keeps records in a map and evaluates query conditions in
// memory. It counts Find calls so tests can tell cache hits from misses.
type MemoryRecordStore struct {
	mu        sync.RWMutex
	records   map[string]catalog.Record
	seq       int
	findCalls int
	findErr   error
	now       func() time.Time
}

// NewMemoryRecordStore returns a store seeded with records.
func NewMemoryRecordStore(records ...catalog.Record) *MemoryRecordStore {
	s := &MemoryRecordStore{
		records: make(map[string]catalog.Record, len(records)),
		now:     time.Now,
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	s.seq = len(records)
	return s
}

// FailFind makes every following Find return err. A nil err clears it.
func (s *MemoryRecordStore) FailFind(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr = err
}

// FindCalls reports how many times Find ran.
func (s *MemoryRecordStore) FindCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCalls
}

// Len reports the number of stored records.
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryRecordStore) Find(ctx context.Context, cond query.Condition, sortBy query.Sort, limit int) ([]catalog.Record, error) {
	s.mu.Lock()
	s.findCalls++
	findErr := s.findErr
	s.mu.Unlock()

	if findErr != nil {
		return nil, findErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !sortable(sortBy.Field) {
		return nil, fmt.Errorf("%w: cannot sort by %q", query.ErrInvalidSortKey, sortBy.Field)
	}

	matched := s.match(cond, sortBy)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryRecordStore) FindByID(ctx context.Context, id string) (catalog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return catalog.Record{}, fmt.Errorf("record %s: %w", id, catalog.ErrNotFound)
	}
	return r, nil
}

func (s *MemoryRecordStore) FindOne(ctx context.Context, cond query.Condition) (catalog.Record, error) {
	matched := s.match(cond, query.Sort{Field: catalog.FieldID})
	if len(matched) == 0 {
		return catalog.Record{}, catalog.ErrNotFound
	}
	return matched[0], nil
}

func (s *MemoryRecordStore) Insert(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		s.seq++
		record.ID = fmt.Sprintf("%08d", s.seq)
	}
	if _, exists := s.records[record.ID]; exists {
		return catalog.Record{}, fmt.Errorf("record %s: %w", record.ID, catalog.ErrConflict)
	}

	now := s.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	s.records[record.ID] = record
	return record, nil
}

func (s *MemoryRecordStore) Replace(ctx context.Context, record catalog.Record) (catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.ID]
	if !ok {
		return catalog.Record{}, fmt.Errorf("record %s: %w", record.ID, catalog.ErrNotFound)
	}

	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.now().UTC()
	s.records[record.ID] = record
	return record, nil
}

func (s *MemoryRecordStore) match(cond query.Condition, sortBy query.Sort) []catalog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]catalog.Record, 0, len(s.records))
	for _, r := range s.records {
		if query.Evaluate(cond, r.Field) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Field(sortBy.Field) < matched[j].Field(sortBy.Field)
	})
	return matched
}

func sortable(field string) bool {
	switch field {
	case catalog.FieldID, catalog.FieldArtist, catalog.FieldAlbum, catalog.FieldFormat, catalog.FieldCategory:
		return true
	default:
		return false
	}
}

// MemoryOrderStore keeps orders in insertion order.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders []catalog.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{}
}

func (s *MemoryOrderStore) Insert(ctx context.Context, order catalog.Order) (catalog.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = fmt.Sprintf("%08d", len(s.orders)+1)
	}
	order.CreatedAt = time.Now().UTC()
	s.orders = append(s.orders, order)
	return order, nil
}

// Orders returns a copy of the stored orders.
func (s *MemoryOrderStore) Orders() []catalog.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Order(nil), s.orders...)
}
