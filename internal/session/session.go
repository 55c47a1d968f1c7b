package session

import (
	"context"
	"errors"
	"time"
)

// Status of a QR session. A session is active until it is closed by the
// faculty or its expiry passes; both end states are terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// Session is a time-boxed QR attendance window for one course meeting.
type Session struct {
	CourseID  string    `json:"course_id"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    Status    `json:"status"`
}

// Scan is one student's accepted submission of a session token.
type Scan struct {
	StudentID string    `json:"student_id"`
	ScannedAt time.Time `json:"scanned_at"`
}

// ErrNotActive is returned by RecordScan when the token's session is
// closed or expired (or was never known).
var ErrNotActive = errors.New("session not active")

// Store owns session lifecycle and the per-session scan set.
//
// Expiry is lazy: any read that observes now past ExpiresAt reports the
// session as expired. At most one active session exists per course.
type Store interface {
	// Open returns the course's active session, creating one with the
	// given TTL when none exists. reused reports whether an existing
	// session was returned instead of a fresh one.
	Open(ctx context.Context, courseID string, ttl time.Duration) (sess Session, reused bool, err error)

	// Active returns the course's active session, or nil when there is
	// none (including when the last one closed or expired).
	Active(ctx context.Context, courseID string) (*Session, error)

	// ByToken looks a session up by token regardless of status. Returns
	// nil when the token was never issued.
	ByToken(ctx context.Context, token string) (*Session, error)

	// Close marks the session closed. Idempotent: closing a closed or
	// expired session is a no-op success, as is an unknown token.
	Close(ctx context.Context, token string) error

	// RecordScan admits studentID into the session's scan set. It is
	// atomic per (token, student): of two concurrent calls exactly one
	// observes already=false. Returns ErrNotActive when the session is
	// not accepting scans.
	RecordScan(ctx context.Context, token, studentID string) (already bool, err error)

	// ScanCount returns the number of accepted scans for the token.
	ScanCount(ctx context.Context, token string) (int, error)

	// Scans returns the accepted scans for the token in admission order.
	Scans(ctx context.Context, token string) ([]Scan, error)
}
