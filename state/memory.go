package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryRecord struct {
	data      []byte
	userID    string
	expiresAt time.Time
}

// MemorySessionStore keeps records in process. Records are stored encoded
// so callers never share a *Record.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	byUser  map[string]map[string]struct{}
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		records: make(map[string]memoryRecord),
		byUser:  make(map[string]map[string]struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Save(_ context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[rec.ID]; ok && old.userID != rec.UserID() {
		s.unindexLocked(old.userID, rec.ID)
	}
	s.records[rec.ID] = memoryRecord{data: data, userID: rec.UserID(), expiresAt: s.now().Add(s.ttl)}
	if rec.UserID() != "" {
		ids, ok := s.byUser[rec.UserID()]
		if !ok {
			ids = make(map[string]struct{})
			s.byUser[rec.UserID()] = ids
		}
		ids[rec.ID] = struct{}{}
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mr, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(mr.expiresAt) {
		s.deleteLocked(id)
		return nil, ErrNotFound
	}
	rec := &Record{}
	if err := json.Unmarshal(mr.data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
	return nil
}

func (s *MemorySessionStore) DeleteUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.byUser[userID] {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	delete(s.byUser, userID)
	return n, nil
}

func (s *MemorySessionStore) deleteLocked(id string) {
	mr, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	s.unindexLocked(mr.userID, id)
}

func (s *MemorySessionStore) unindexLocked(userID, id string) {
	if ids, ok := s.byUser[userID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, userID)
		}
	}
}

type memoryPage struct {
	data      []byte
	expiresAt time.Time
}

type MemoryPageStore struct {
	mu    sync.Mutex
	pages map[string]memoryPage
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryPageStore(ttl time.Duration) *MemoryPageStore {
	return &MemoryPageStore{pages: make(map[string]memoryPage), ttl: ttl, now: time.Now}
}

func (s *MemoryPageStore) Load(_ context.Context, pageID string, v any) (bool, error) {
	s.mu.Lock()
	p, ok := s.pages[pageID]
	if ok && !s.now().Before(p.expiresAt) {
		delete(s.pages, pageID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(p.data, v)
}

func (s *MemoryPageStore) Store(_ context.Context, pageID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, p := range s.pages {
		if !now.Before(p.expiresAt) {
			delete(s.pages, id)
		}
	}
	s.pages[pageID] = memoryPage{data: data, expiresAt: now.Add(s.ttl)}
	return nil
}
