package token

import (
	"context"
	"sync"
)

// memStore keeps refresh records in process memory. Dev and test use; the
// mutex gives the same exactly-one-winner rotation guarantee the postgres
// store gets from its transaction.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*RefreshRecord
}

func NewMemoryStore() RefreshStore {
	return &memStore{recs: map[string]*RefreshRecord{}}
}

func (m *memStore) Insert(ctx context.Context, rec RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := rec
	m.recs[rec.ID] = &r
	return nil
}

func (m *memStore) ConsumeAndReplace(ctx context.Context, id string, successor RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Consumed {
		return ErrRecordConsumed
	}
	rec.Consumed = true
	s := successor
	m.recs[successor.ID] = &s
	return nil
}

func (m *memStore) Consume(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[id]; ok {
		rec.Consumed = true
	}
	return nil
}

func (m *memStore) RevokeFamily(ctx context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.FamilyID == familyID {
			rec.Consumed = true
		}
	}
	return nil
}
