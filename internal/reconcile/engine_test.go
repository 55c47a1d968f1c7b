package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campusattend/internal/attendance"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu        sync.Mutex
	snap      Snapshot
	snapErr   error
	saveErr   error
	saved     [][]attendance.Mark
	fetches   int
	saveCalls int
	onSave    func() // fires once, mid-save, before the result is reported
}

func (f *fakeBackend) Snapshot(ctx context.Context, courseID string, date time.Time) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	out := make(Snapshot, len(f.snap))
	for id, e := range f.snap {
		out[id] = e
	}
	return out, nil
}

func (f *fakeBackend) Save(ctx context.Context, courseID string, date time.Time, marks []attendance.Mark) error {
	f.mu.Lock()
	f.saveCalls++
	err := f.saveErr
	hook := f.onSave
	f.onSave = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = append(f.saved, marks)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) set(id string, e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		f.snap = make(Snapshot)
	}
	f.snap[id] = e
}

func manual(st attendance.Status) Entry {
	return Entry{Status: st, MarkedVia: attendance.Manual, RecordedAt: day.Add(9 * time.Hour)}
}

func qr() Entry {
	return Entry{Status: attendance.Present, MarkedVia: attendance.QR, RecordedAt: day.Add(9 * time.Hour)}
}

func TestMergeTakesServerValuesForCleanStudents(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)

	require.NoError(t, eng.Poll(context.Background()))
	view := eng.View()
	require.Equal(t, attendance.Absent, view["stuA"].Status)
	require.Empty(t, eng.Dirty())
}

func TestMergeDoesNotClobberPendingManualEdit(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.Toggle("stuA", attendance.Present)

	// any number of polls with a Manual server value must not revert it
	for i := 0; i < 5; i++ {
		require.NoError(t, eng.Poll(ctx))
	}
	view := eng.View()
	require.Equal(t, attendance.Present, view["stuA"].Status)
	require.Equal(t, []string{"stuA"}, eng.Dirty())
}

func TestMergeQRPreemptsPendingEdit(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.Toggle("stuA", attendance.Absent)

	// the student scans while the edit is still unsaved
	backend.set("stuA", qr())
	require.NoError(t, eng.Poll(ctx))

	view := eng.View()
	require.Equal(t, attendance.Present, view["stuA"].Status)
	require.Equal(t, attendance.QR, view["stuA"].MarkedVia)
	require.Empty(t, eng.Dirty(), "QR authority settles the pending edit")
}

func TestMarkAllSkipsQRStudents(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", qr())
	backend.set("stuB", manual(attendance.Present))
	backend.set("stuC", manual(attendance.Present))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.MarkAll(attendance.Absent)

	view := eng.View()
	require.Equal(t, attendance.Present, view["stuA"].Status, "bulk action must not overwrite a confirmed scan")
	require.Equal(t, attendance.QR, view["stuA"].MarkedVia)
	require.Equal(t, attendance.Absent, view["stuB"].Status)
	require.Equal(t, attendance.Absent, view["stuC"].Status)
	require.Equal(t, []string{"stuB", "stuC"}, eng.Dirty())
}

func TestSaveClearsDirtyAndResyncs(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.Toggle("stuA", attendance.Present)
	fetchesBefore := backend.fetches

	require.NoError(t, eng.Save(ctx))

	require.Empty(t, eng.Dirty())
	require.Len(t, backend.saved, 1)
	require.Equal(t, []attendance.Mark{{StudentID: "stuA", Status: attendance.Present}}, backend.saved[0])
	require.Greater(t, backend.fetches, fetchesBefore, "save must re-poll to resynchronize")
}

func TestToggleDuringSaveStaysPending(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))

	// the edit lands while the batch is on the wire
	backend.onSave = func() { eng.Toggle("stuA", attendance.Present) }
	require.NoError(t, eng.Save(ctx))

	require.Equal(t, []string{"stuA"}, eng.Dirty(), "an edit made mid-save is not settled by that save")
	require.Equal(t, attendance.Present, eng.View()["stuA"].Status, "the resync must not revert the in-flight edit")

	// the next save flushes it
	require.NoError(t, eng.Save(ctx))
	require.Empty(t, eng.Dirty())
	last := backend.saved[len(backend.saved)-1]
	require.Equal(t, []attendance.Mark{{StudentID: "stuA", Status: attendance.Present}}, last)
}

func TestSaveFailureKeepsDirtySet(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.Toggle("stuA", attendance.Present)
	backend.saveErr = errors.New("db down")

	err := eng.Save(ctx)
	require.ErrorIs(t, err, ErrSaveFailed)
	require.Equal(t, []string{"stuA"}, eng.Dirty(), "failed save must not lose edits")
	require.Equal(t, attendance.Present, eng.View()["stuA"].Status)

	// retry after the backend recovers
	backend.saveErr = nil
	require.NoError(t, eng.Save(ctx))
	require.Empty(t, eng.Dirty())
}

func TestPollFailureIsReportedNotApplied(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	backend.snapErr = errors.New("timeout")

	err := eng.Poll(ctx)
	require.ErrorIs(t, err, ErrPollFailed)
	require.Equal(t, attendance.Absent, eng.View()["stuA"].Status, "stale view survives a failed poll")
}

func TestMergeDropsUnrosteredStudentsUnlessDirty(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	backend.set("stuB", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)
	ctx := context.Background()

	require.NoError(t, eng.Poll(ctx))
	eng.Toggle("stuB", attendance.Present)

	backend.mu.Lock()
	delete(backend.snap, "stuA")
	delete(backend.snap, "stuB")
	backend.mu.Unlock()

	require.NoError(t, eng.Poll(ctx))
	view := eng.View()
	require.NotContains(t, view, "stuA")
	require.Contains(t, view, "stuB", "pending edit shields the row until saved")
}

func TestRunContinuesAfterPollFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	backend.snapErr = errors.New("timeout")
	eng := NewEngine(backend, backend, "c1", day)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.fetches >= 2
	}, time.Second, time.Millisecond, "ticks keep coming while the backend is down")

	backend.mu.Lock()
	backend.snapErr = nil
	backend.mu.Unlock()

	require.Eventually(t, func() bool {
		return eng.View()["stuA"].Status == attendance.Absent
	}, time.Second, time.Millisecond, "a recovered poll repopulates the view")
}

func TestRunStopsOnCancel(t *testing.T) {
	backend := &fakeBackend{}
	backend.set("stuA", manual(attendance.Absent))
	eng := NewEngine(backend, backend, "c1", day)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.fetches >= 3
	}, time.Second, time.Millisecond, "poll loop should tick")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll loop did not stop on cancellation")
	}

	backend.mu.Lock()
	after := backend.fetches
	backend.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	backend.mu.Lock()
	require.Equal(t, after, backend.fetches, "no polls after cancellation")
	backend.mu.Unlock()
}
