package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ucp-merchant/internal/model"
)

// ErrVersionConflict is returned by CompareAndSwap when the stored session
// changed since it was read.
var ErrVersionConflict = errors.New("checkout: version conflict")

// Store persists checkout sessions with optimistic concurrency. Writes are
// all-or-nothing: the engine builds a complete replacement session and
// swaps it in, so readers never observe partial updates.
//
// Implementations must be safe for concurrent use and must store and
// return defensive copies; callers may mutate what they pass in or get
// back.
type Store interface {
	// Get returns the session and its current version.
	// Returns model.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.Checkout, uint64, error)

	// Put inserts a new session at version 1. Fails if the id exists.
	Put(ctx context.Context, checkout *model.Checkout) error

	// CompareAndSwap replaces the session only if its stored version still
	// equals version. Returns ErrVersionConflict otherwise, and
	// model.ErrNotFound for unknown ids.
	CompareAndSwap(ctx context.Context, checkout *model.Checkout, version uint64) error
}

// MemoryStore is an in-memory Store. Sessions live until process exit;
// expiry is enforced by the engine on read, not by eviction here.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	checkout *model.Checkout
	version  uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Checkout, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, 0, fmt.Errorf("checkout %q: %w", id, model.ErrNotFound)
	}
	return entry.checkout.Clone(), entry.version, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, checkout *model.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[checkout.ID]; ok {
		return fmt.Errorf("checkout %q already exists", checkout.ID)
	}
	s.sessions[checkout.ID] = memoryEntry{checkout: checkout.Clone(), version: 1}
	return nil
}

// CompareAndSwap implements Store.
func (s *MemoryStore) CompareAndSwap(_ context.Context, checkout *model.Checkout, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[checkout.ID]
	if !ok {
		return fmt.Errorf("checkout %q: %w", checkout.ID, model.ErrNotFound)
	}
	if entry.version != version {
		return fmt.Errorf("checkout %q: %w", checkout.ID, ErrVersionConflict)
	}
	s.sessions[checkout.ID] = memoryEntry{checkout: checkout.Clone(), version: version + 1}
	return nil
}

var _ Store = (*MemoryStore)(nil)
