package attendance

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in a map under one mutex. Every critical
// section is a constant-time map operation, so contention is not a
// concern here; the Postgres store is where per-row write conditions
// matter.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func recordKey(courseID string, date time.Time, studentID string) string {
	return courseID + "|" + date.Format("2006-01-02") + "|" + studentID
}

// MarkQR unconditionally overwrites the key with Present/QR.
func (s *MemoryStore) MarkQR(ctx context.Context, courseID string, date time.Time, studentID string, at time.Time) error {
	date = DateOf(date)
	key := recordKey(courseID, date, studentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = Record{
		CourseID:   courseID,
		StudentID:  studentID,
		Date:       date,
		Status:     Present,
		MarkedVia:  QR,
		RecordedAt: at,
	}
	return nil
}

// SaveManual writes each mark, skipping QR-held keys. The check and the
// write happen under the same lock so a concurrent scan cannot be
// overwritten between them.
func (s *MemoryStore) SaveManual(ctx context.Context, courseID string, date time.Time, marks []Mark, at time.Time) (int, error) {
	date = DateOf(date)
	skipped := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range marks {
		key := recordKey(courseID, date, m.StudentID)
		if existing, ok := s.records[key]; ok && existing.MarkedVia == QR {
			skipped++
			continue
		}
		s.records[key] = Record{
			CourseID:   courseID,
			StudentID:  m.StudentID,
			Date:       date,
			Status:     m.Status,
			MarkedVia:  Manual,
			RecordedAt: at,
		}
	}
	return skipped, nil
}

// Day snapshots the records for one course day.
func (s *MemoryStore) Day(ctx context.Context, courseID string, date time.Time) (map[string]Record, error) {
	date = DateOf(date)
	prefix := courseID + "|" + date.Format("2006-01-02") + "|"

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record)
	for key, rec := range s.records {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out[rec.StudentID] = rec
		}
	}
	return out, nil
}
