// Package reconcile keeps a faculty roster view correct while three
// writers race for it: QR scans landing server-side, the faculty's own
// unsaved toggles, and the periodic authoritative refresh.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"campusattend/internal/attendance"
)

var (
	// ErrSaveFailed wraps a failed batch save. Local edits and the dirty
	// set are preserved so the save can be retried.
	ErrSaveFailed = errors.New("attendance save failed")
	// ErrPollFailed wraps a failed refresh. The view stays stale for one
	// interval, which is acceptable; the next tick retries.
	ErrPollFailed = errors.New("attendance poll failed")
)

// Entry is one student's row in the view.
type Entry struct {
	Status     attendance.Status
	MarkedVia  attendance.Source
	RecordedAt time.Time
}

// Snapshot is the server's authoritative per-student state.
type Snapshot map[string]Entry

// Fetcher pulls the authoritative snapshot. The engine works the same
// whether this is an HTTP poll or a push feed handing over its latest
// payload.
type Fetcher interface {
	Snapshot(ctx context.Context, courseID string, date time.Time) (Snapshot, error)
}

// Saver persists the full local state as one batch.
type Saver interface {
	Save(ctx context.Context, courseID string, date time.Time, marks []attendance.Mark) error
}

// Engine merges authoritative snapshots with locally pending edits.
//
// The rule, per student: an unsaved manual edit shadows an incoming
// Manual value, but an incoming QR value always lands and settles the
// pending edit. Safe for concurrent use; the poll loop and the UI share
// it.
type Engine struct {
	fetcher Fetcher
	saver   Saver

	courseID string
	date     time.Time

	mu    sync.Mutex
	local map[string]Entry
	dirty map[string]struct{}
	now   func() time.Time
}

// NewEngine creates a view for one (course, date).
func NewEngine(fetcher Fetcher, saver Saver, courseID string, date time.Time) *Engine {
	return &Engine{
		fetcher:  fetcher,
		saver:    saver,
		courseID: courseID,
		date:     attendance.DateOf(date),
		local:    make(map[string]Entry),
		dirty:    make(map[string]struct{}),
		now:      time.Now,
	}
}

// Merge folds one authoritative snapshot into the local view.
func (e *Engine) Merge(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for studentID, server := range snap {
		if _, pending := e.dirty[studentID]; pending && server.MarkedVia == attendance.Manual {
			// don't clobber an unsaved manual edit
			continue
		}
		e.local[studentID] = server
		if _, pending := e.dirty[studentID]; pending && server.MarkedVia == attendance.QR {
			// a confirmed scan settles the pending edit
			delete(e.dirty, studentID)
		}
	}

	// students dropped from the roster disappear unless edits are pending
	for studentID := range e.local {
		if _, ok := snap[studentID]; ok {
			continue
		}
		if _, pending := e.dirty[studentID]; !pending {
			delete(e.local, studentID)
		}
	}
}

// Toggle applies a faculty edit optimistically and marks it pending.
func (e *Engine) Toggle(studentID string, status attendance.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local[studentID] = Entry{Status: status, MarkedVia: attendance.Manual, RecordedAt: e.now()}
	e.dirty[studentID] = struct{}{}
}

// MarkAll applies a bulk toggle to every student except those whose
// current value came from a scan; a blanket action must not silently
// overwrite confirmed physical presence.
func (e *Engine) MarkAll(status attendance.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for studentID, entry := range e.local {
		if entry.MarkedVia == attendance.QR {
			continue
		}
		e.local[studentID] = Entry{Status: status, MarkedVia: attendance.Manual, RecordedAt: e.now()}
		e.dirty[studentID] = struct{}{}
	}
}

// Save persists the full local state and resynchronizes. On failure the
// dirty set and local values are untouched so nothing is lost.
//
// The mutex is released for the network call, so toggles keep landing
// while a save is in flight. Success therefore settles only the edits
// that actually went into the batch: a student whose entry changed (or
// turned dirty) mid-save stays pending for the next save.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	marks := make([]attendance.Mark, 0, len(e.local))
	sent := make(map[string]Entry, len(e.local))
	for studentID, entry := range e.local {
		marks = append(marks, attendance.Mark{StudentID: studentID, Status: entry.Status})
		sent[studentID] = entry
	}
	e.mu.Unlock()
	sort.Slice(marks, func(i, j int) bool { return marks[i].StudentID < marks[j].StudentID })

	if err := e.saver.Save(ctx, e.courseID, e.date, marks); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	e.mu.Lock()
	for studentID := range e.dirty {
		if entry, ok := e.local[studentID]; ok && entry == sent[studentID] {
			delete(e.dirty, studentID)
		}
	}
	e.mu.Unlock()

	// resync is best effort; the edits are durable either way
	if err := e.Poll(ctx); err != nil {
		log.Printf("post-save resync: %v", err)
	}
	return nil
}

// Poll fetches and merges one snapshot.
func (e *Engine) Poll(ctx context.Context) error {
	snap, err := e.fetcher.Snapshot(ctx, e.courseID, e.date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	e.Merge(snap)
	return nil
}

// View returns a copy of the current per-student state.
func (e *Engine) View() map[string]Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Entry, len(e.local))
	for id, entry := range e.local {
		out[id] = entry
	}
	return out
}

// Dirty returns the ids with pending unsaved edits, sorted.
func (e *Engine) Dirty() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.dirty))
	for id := range e.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
