package attendance

import (
	"context"
	"time"
)

// Status of one student for one course meeting.
type Status string

const (
	Present Status = "Present"
	Absent  Status = "Absent"
)

// Source records who produced the current status. QR means the student
// physically scanned the session code; Manual means the faculty set it.
type Source string

const (
	Manual Source = "Manual"
	QR     Source = "QR"
)

// Record is the single write target for both scans and manual edits,
// keyed by (course, date, student). Never deleted, only overwritten.
type Record struct {
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	Date       time.Time `json:"date"`
	Status     Status    `json:"status"`
	MarkedVia  Source    `json:"marked_via"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Mark is one entry of a faculty batch save.
type Mark struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
}

// Store persists attendance records with per-key write atomicity.
type Store interface {
	// MarkQR upserts (courseID, date, studentID) to Present/QR,
	// overwriting any prior manual value. QR presence is ground truth.
	MarkQR(ctx context.Context, courseID string, date time.Time, studentID string, at time.Time) error

	// SaveManual upserts the given marks as Manual writes, skipping any
	// student whose existing record is QR-sourced; a background batch
	// must never displace a confirmed scan. Returns how many marks were
	// skipped for that reason.
	SaveManual(ctx context.Context, courseID string, date time.Time, marks []Mark, at time.Time) (skipped int, err error)

	// Day returns the records for (courseID, date) keyed by student id.
	Day(ctx context.Context, courseID string, date time.Time) (map[string]Record, error)
}

// DateOf truncates t to its UTC calendar day, the granularity attendance
// is keyed on.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
