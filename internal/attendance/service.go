package attendance

import (
	"context"
	"errors"
	"time"

	"campusattend/internal/roster"
)

// ErrUnknownCourse is returned when the roster has no such course.
var ErrUnknownCourse = errors.New("course not found")

// Service composes the record store with the roster so reads always cover
// the full class list.
type Service struct {
	store  Store
	roster roster.Directory
	now    func() time.Time
}

// NewService creates a service backed by a record store and a roster.
func NewService(store Store, dir roster.Directory) *Service {
	return &Service{store: store, roster: dir, now: time.Now}
}

// MarkQR records a scan-derived presence. QR always wins over a prior
// manual value for the same key.
func (s *Service) MarkQR(ctx context.Context, courseID string, date time.Time, studentID string) error {
	return s.store.MarkQR(ctx, courseID, date, studentID, s.now())
}

// SaveManual persists a faculty batch. Students already holding a QR
// record are skipped; the skip count is reported back so the client can
// surface it.
func (s *Service) SaveManual(ctx context.Context, courseID string, date time.Time, marks []Mark) (int, error) {
	return s.store.SaveManual(ctx, courseID, date, marks, s.now())
}

// Snapshot returns the day's record for every student on the roster,
// materializing a default Absent entry for anyone without a stored row.
// Defaults carry a zero RecordedAt so clients can tell them from real
// writes.
func (s *Service) Snapshot(ctx context.Context, courseID string, date time.Time) (map[string]Record, error) {
	course, err := s.roster.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrUnknownCourse
	}

	stored, err := s.store.Day(ctx, courseID, date)
	if err != nil {
		return nil, err
	}

	day := DateOf(date)
	out := make(map[string]Record, len(course.Students))
	for _, studentID := range course.Students {
		if rec, ok := stored[studentID]; ok {
			out[studentID] = rec
			continue
		}
		out[studentID] = Record{
			CourseID:  courseID,
			StudentID: studentID,
			Date:      day,
			Status:    Absent,
			MarkedVia: Manual,
		}
	}
	return out, nil
}
