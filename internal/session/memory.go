package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory session store for dev and
// tests. Critical sections are constant-time map operations, so scans for
// unrelated courses do not contend meaningfully.
type MemoryStore struct {
	mu       sync.Mutex
	byCourse map[string]*memEntry
	byToken  map[string]*memEntry

	now      func() time.Time
	newToken func() (string, error)
}

type memEntry struct {
	sess    Session
	scans   []Scan
	scanned map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCourse: make(map[string]*memEntry),
		byToken:  make(map[string]*memEntry),
		now:      time.Now,
		newToken: NewToken,
	}
}

// refresh applies lazy expiry. Caller holds s.mu.
func (s *MemoryStore) refresh(e *memEntry) {
	if e.sess.Status == StatusActive && s.now().After(e.sess.ExpiresAt) {
		e.sess.Status = StatusExpired
	}
}

// Open returns the existing active session for the course or creates a
// fresh one. Idempotent by design: a second open while a session runs is
// how a reloaded faculty panel restores its state.
func (s *MemoryStore) Open(ctx context.Context, courseID string, ttl time.Duration) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byCourse[courseID]; ok {
		s.refresh(e)
		if e.sess.Status == StatusActive {
			return e.sess, true, nil
		}
	}

	token, err := s.newToken()
	if err != nil {
		return Session{}, false, err
	}
	now := s.now()
	e := &memEntry{
		sess: Session{
			CourseID:  courseID,
			Token:     token,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
			Status:    StatusActive,
		},
		scanned: make(map[string]struct{}),
	}
	s.byCourse[courseID] = e
	s.byToken[token] = e
	return e.sess, false, nil
}

// Active returns the course's active session, nil when none.
func (s *MemoryStore) Active(ctx context.Context, courseID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byCourse[courseID]
	if !ok {
		return nil, nil
	}
	s.refresh(e)
	if e.sess.Status != StatusActive {
		return nil, nil
	}
	sess := e.sess
	return &sess, nil
}

// ByToken returns the token's session in its current (lazily refreshed)
// state, nil for an unknown token.
func (s *MemoryStore) ByToken(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	s.refresh(e)
	sess := e.sess
	return &sess, nil
}

// Close marks the session closed. No-op for unknown or already ended
// sessions.
func (s *MemoryStore) Close(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byToken[token]
	if !ok {
		return nil
	}
	s.refresh(e)
	if e.sess.Status == StatusActive {
		e.sess.Status = StatusClosed
	}
	return nil
}

// RecordScan admits a student into the scan set, at most once per token.
// The dedupe check and the insert happen under one lock so two concurrent
// scans for the same student cannot both see already=false.
func (s *MemoryStore) RecordScan(ctx context.Context, token, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byToken[token]
	if !ok {
		return false, ErrNotActive
	}
	s.refresh(e)
	if e.sess.Status != StatusActive {
		return false, ErrNotActive
	}
	if _, dup := e.scanned[studentID]; dup {
		return true, nil
	}
	e.scanned[studentID] = struct{}{}
	e.scans = append(e.scans, Scan{StudentID: studentID, ScannedAt: s.now()})
	return false, nil
}

// ScanCount returns the number of accepted scans for the token.
func (s *MemoryStore) ScanCount(ctx context.Context, token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byToken[token]
	if !ok {
		return 0, nil
	}
	return len(e.scans), nil
}

// Scans returns accepted scans in admission order.
func (s *MemoryStore) Scans(ctx context.Context, token string) ([]Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	out := make([]Scan, len(e.scans))
	copy(out, e.scans)
	return out, nil
}
