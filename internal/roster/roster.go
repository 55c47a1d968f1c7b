// Package roster is the boundary to course and enrollment data, which is
// owned elsewhere in the campus system. Attendance only ever reads it.
package roster

import (
	"context"
	"sync"
)

// Course is the slice of course data attendance capture needs.
type Course struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	InstructorID string   `json:"instructor_id"`
	Students     []string `json:"students"`
}

// Directory resolves courses, enrollment and instructorship.
type Directory interface {
	// Course returns the course, or nil when unknown.
	Course(ctx context.Context, courseID string) (*Course, error)

	// Enrolled reports whether the student is on the course roster.
	Enrolled(ctx context.Context, courseID, studentID string) (bool, error)

	// Teaches reports whether the faculty member instructs the course.
	Teaches(ctx context.Context, courseID, facultyID string) (bool, error)
}

// Memory is a fixed in-memory directory for dev and tests.
type Memory struct {
	mu      sync.RWMutex
	courses map[string]Course
}

// NewMemory builds a directory from the given courses.
func NewMemory(courses ...Course) *Memory {
	m := &Memory{courses: make(map[string]Course)}
	for _, c := range courses {
		m.courses[c.ID] = c
	}
	return m
}

// Add inserts or replaces a course.
func (m *Memory) Add(c Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
}

// Course returns the course or nil.
func (m *Memory) Course(ctx context.Context, courseID string) (*Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil, nil
	}
	out := c
	out.Students = append([]string(nil), c.Students...)
	return &out, nil
}

// Enrolled checks roster membership.
func (m *Memory) Enrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	c, err := m.Course(ctx, courseID)
	if err != nil || c == nil {
		return false, err
	}
	for _, id := range c.Students {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

// Teaches checks instructorship.
func (m *Memory) Teaches(ctx context.Context, courseID, facultyID string) (bool, error) {
	c, err := m.Course(ctx, courseID)
	if err != nil || c == nil {
		return false, err
	}
	return c.InstructorID == facultyID, nil
}
