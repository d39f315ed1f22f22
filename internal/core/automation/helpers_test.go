package automation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/stretchr/testify/require"
)

type memRunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	logs []LogEntry
	seq  int
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: map[string]*Run{}}
}

func (s *memRunStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memRunStore) CompleteRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	if stored.Status != RunRunning {
		return fmt.Errorf("run %s already finalized as %s", run.ID, stored.Status)
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memRunStore) AppendLog(_ context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memRunStore) messages(level LogLevel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.logs {
		if l.Level == level {
			out = append(out, l.Message)
		}
	}
	return out
}

func (s *memRunStore) nextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("run-%d", s.seq)
}

type testEnv struct {
	runs    *memRunStore
	records *records.MemoryStore
	engine  *Engine
}

func newTestEnv(t *testing.T, opts ...ExecutorOption) *testEnv {
	t.Helper()
	runs := newMemRunStore()
	store := records.NewMemoryStore()
	exec := NewExecutor(store, opts...)
	return &testEnv{
		runs:    runs,
		records: store,
		engine:  NewEngine(runs, store, exec, WithIDGenerator(runs.nextID)),
	}
}

func mustPipeline(t *testing.T, src string) Pipeline {
	t.Helper()
	p, err := DecodePipeline([]byte(src))
	require.NoError(t, err)
	return p
}
