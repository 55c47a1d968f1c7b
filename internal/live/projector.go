// Package live assembles the read-only session view that faculty panels
// poll while a QR session runs.
package live

import (
	"context"
	"time"

	"campusattend/internal/roster"
	"campusattend/internal/session"
)

// Projection is the poller's view of a course's QR session. When Active
// is false the other fields are zero.
type Projection struct {
	Active       bool       `json:"active"`
	Token        string     `json:"token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ScannedCount int        `json:"scanned_count"`
	CourseID     string     `json:"course_id"`
	CourseName   string     `json:"course_name,omitempty"`
}

// Projector composes session state with the running scan count. Reads
// only; expiry is observed lazily through the session store.
type Projector struct {
	sessions session.Store
	roster   roster.Directory
}

// NewProjector wires the read path.
func NewProjector(sessions session.Store, dir roster.Directory) *Projector {
	return &Projector{sessions: sessions, roster: dir}
}

// Get returns the course's live session view. A closed or expired session
// projects as Active=false, which is how pollers learn the window ended.
func (p *Projector) Get(ctx context.Context, courseID string) (Projection, error) {
	sess, err := p.sessions.Active(ctx, courseID)
	if err != nil {
		return Projection{}, err
	}
	if sess == nil {
		return Projection{Active: false, CourseID: courseID}, nil
	}

	count, err := p.sessions.ScanCount(ctx, sess.Token)
	if err != nil {
		return Projection{}, err
	}

	name := ""
	if course, err := p.roster.Course(ctx, courseID); err == nil && course != nil {
		name = course.Name
	}

	return Projection{
		Active:       true,
		Token:        sess.Token,
		ExpiresAt:    &sess.ExpiresAt,
		ScannedCount: count,
		CourseID:     courseID,
		CourseName:   name,
	}, nil
}
