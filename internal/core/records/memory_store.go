package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

// MemoryStore is an in-process record store for the CLI and tests
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]formula.Row
	fields map[string][]formula.FieldMeta
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]formula.Row),
		fields: make(map[string][]formula.FieldMeta),
	}
}

// SetFields declares the field metadata of a table
func (s *MemoryStore) SetFields(tableID string, fields []formula.FieldMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[tableID] = append([]formula.FieldMeta(nil), fields...)
}

func copyRow(row formula.Row) formula.Row {
	out := make(formula.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Get(_ context.Context, tableID, recordID string) (formula.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tables[tableID][recordID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	return copyRow(row), nil
}

func (s *MemoryStore) Insert(_ context.Context, tableID string, row formula.Row) (formula.Row, error) {
	out := withID(row)
	id := fmt.Sprint(out[IDField])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[tableID] == nil {
		s.tables[tableID] = make(map[string]formula.Row)
	}
	s.tables[tableID][id] = copyRow(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, tableID, recordID string, fields formula.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[tableID][recordID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	for k, v := range fields {
		if k != IDField {
			row[k] = v
		}
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, tableID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableID][recordID]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	delete(s.tables[tableID], recordID)
	return nil
}

func (s *MemoryStore) ListFields(_ context.Context, tableID string) ([]formula.FieldMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]formula.FieldMeta(nil), s.fields[tableID]...), nil
}
