package sync

import (
	"context"
	"sync"

	"github.com/jverhagen/fotomemo/internal/model"
)

// StubTransport keeps the document in memory (for development without
// Drive credentials, and for tests).
type StubTransport struct {
	mu     sync.Mutex
	doc    *model.Snapshot
	pushes int

	// PushErr, when set, makes Push fail.
	PushErr error
}

// NewStubTransport creates an empty in-memory transport.
func NewStubTransport() *StubTransport {
	return &StubTransport{}
}

func (s *StubTransport) Push(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PushErr != nil {
		return s.PushErr
	}
	s.doc = &snap
	s.pushes++
	return nil
}

func (s *StubTransport) Pull(_ context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, nil
	}
	doc := *s.doc
	return &doc, nil
}

// Pushes returns how many pushes succeeded.
func (s *StubTransport) Pushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

// Doc returns the last pushed document, nil if none.
func (s *StubTransport) Doc() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	doc := *s.doc
	return &doc
}

// Seed sets the stored document, for tests exercising pull-and-merge.
func (s *StubTransport) Seed(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = &snap
}
