// Package scan decides whether a submitted QR token becomes an attendance
// record.
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/notify"
	"campusattend/internal/queue"
	"campusattend/internal/roster"
	"campusattend/internal/session"
)

// Rejection kinds. Each maps to a distinct client message: "invalid code",
// "session ended", "already marked", "not your course".
var (
	ErrInvalidToken  = errors.New("qr token not recognized")
	ErrSessionClosed = errors.New("qr session closed or expired")
	ErrAlreadyMarked = errors.New("attendance already marked for this session")
	ErrNotEnrolled   = errors.New("student not enrolled in this course")
)

// Result is returned to the scanning student on acceptance.
type Result struct {
	CourseID   string    `json:"course_id"`
	CourseName string    `json:"course_name"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Admitter validates scans against the session store and writes accepted
// ones through to the attendance store.
type Admitter struct {
	sessions session.Store
	records  *attendance.Service
	roster   roster.Directory
	events   queue.Queue // optional
	now      func() time.Time
}

// NewAdmitter wires the admission path. events may be nil when no worker
// is deployed.
func NewAdmitter(sessions session.Store, records *attendance.Service, dir roster.Directory, events queue.Queue) *Admitter {
	return &Admitter{
		sessions: sessions,
		records:  records,
		roster:   dir,
		events:   events,
		now:      time.Now,
	}
}

// Submit runs the admission state machine for one (token, student) pair.
//
// The dedupe check and the scan insert are a single atomic step inside the
// session store, so concurrent duplicates yield exactly one acceptance.
// The attendance upsert that follows is idempotent (Present/QR either
// way), which keeps a crash between the two writes harmless.
func (a *Admitter) Submit(ctx context.Context, token, studentID string) (Result, error) {
	sess, err := a.sessions.ByToken(ctx, token)
	if err != nil {
		return Result{}, err
	}
	if sess == nil {
		scansRejected.WithLabelValues("invalid_token").Inc()
		return Result{}, ErrInvalidToken
	}
	if sess.Status != session.StatusActive {
		scansRejected.WithLabelValues("session_closed").Inc()
		return Result{}, ErrSessionClosed
	}

	course, err := a.roster.Course(ctx, sess.CourseID)
	if err != nil {
		return Result{}, err
	}
	if course == nil {
		// session outlived its course; enrollment cannot be verified
		scansRejected.WithLabelValues("not_enrolled").Inc()
		return Result{}, ErrNotEnrolled
	}
	enrolled, err := a.roster.Enrolled(ctx, sess.CourseID, studentID)
	if err != nil {
		return Result{}, err
	}
	if !enrolled {
		scansRejected.WithLabelValues("not_enrolled").Inc()
		return Result{}, ErrNotEnrolled
	}

	already, err := a.sessions.RecordScan(ctx, token, studentID)
	if errors.Is(err, session.ErrNotActive) {
		// session ended between the status read and the admission
		scansRejected.WithLabelValues("session_closed").Inc()
		return Result{}, ErrSessionClosed
	}
	if err != nil {
		return Result{}, err
	}
	if already {
		scansRejected.WithLabelValues("already_marked").Inc()
		return Result{}, ErrAlreadyMarked
	}

	scannedAt := a.now()
	if err := a.records.MarkQR(ctx, sess.CourseID, sess.IssuedAt, studentID); err != nil {
		return Result{}, err
	}
	scansAccepted.Inc()

	a.publish(ctx, notify.ScanEvent{
		CourseID:   sess.CourseID,
		CourseName: course.Name,
		StudentID:  studentID,
		ScannedAt:  scannedAt,
	})

	return Result{CourseID: sess.CourseID, CourseName: course.Name, ScannedAt: scannedAt}, nil
}

func (a *Admitter) publish(ctx context.Context, evt notify.ScanEvent) {
	if a.events == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := a.events.Publish(ctx, queue.Message{Type: "scan", Body: body}); err != nil {
		log.Printf("scan event publish failed: %v", err)
	}
}
