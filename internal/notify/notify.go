// Package notify hands accepted scans to whatever delivers faculty
// notifications. Actual push delivery lives outside this service; the
// console dispatcher is the in-repo implementation.
package notify

import (
	"context"
	"log"
	"time"
)

// ScanEvent describes one accepted scan.
type ScanEvent struct {
	CourseID   string    `json:"course_id"`
	CourseName string    `json:"course_name"`
	StudentID  string    `json:"student_id"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Notifier delivers scan notifications.
type Notifier interface {
	ScanAccepted(ctx context.Context, evt ScanEvent) error
}

// Console logs notifications instead of delivering them.
type Console struct{}

// ScanAccepted prints the event.
func (Console) ScanAccepted(ctx context.Context, evt ScanEvent) error {
	log.Printf("scan accepted: student %s in %s (%s) at %s",
		evt.StudentID, evt.CourseName, evt.CourseID, evt.ScannedAt.Format(time.RFC3339))
	return nil
}
