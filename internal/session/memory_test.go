package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenReusesActiveSession(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, reused, err := s.Open(ctx, "c1", 10*time.Minute)
	require.NoError(t, err)
	require.False(t, reused)
	require.Equal(t, StatusActive, first.Status)
	require.NotEmpty(t, first.Token)

	second, reused, err := s.Open(ctx, "c1", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, first.Token, second.Token)
	require.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestOpenIsScopedPerCourse(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)
	b, reused, err := s.Open(ctx, "c2", time.Minute)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, a.Token, b.Token)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx, sess.Token))
	require.NoError(t, s.Close(ctx, sess.Token))
	require.NoError(t, s.Close(ctx, "never-issued"))

	got, err := s.ByToken(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, got.Status)

	active, err := s.Active(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestOpenAfterCloseIssuesNewToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, first.Token))

	second, reused, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, first.Token, second.Token)
}

func TestLazyExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	sess, _, err := s.Open(ctx, "c1", 5*time.Minute)
	require.NoError(t, err)

	// still inside the window
	active, err := s.Active(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, active)

	s.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }

	active, err = s.Active(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, active, "expired session must not be reported active")

	got, err := s.ByToken(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	_, err = s.RecordScan(ctx, sess.Token, "stu1")
	require.ErrorIs(t, err, ErrNotActive)
}

func TestRecordScanDeduplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)

	already, err := s.RecordScan(ctx, sess.Token, "stu1")
	require.NoError(t, err)
	require.False(t, already)

	already, err = s.RecordScan(ctx, sess.Token, "stu1")
	require.NoError(t, err)
	require.True(t, already)

	n, err := s.ScanCount(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRecordScanConcurrentAtMostOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)

	const attempts = 64
	var wg sync.WaitGroup
	accepted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			already, err := s.RecordScan(ctx, sess.Token, "stu1")
			if err == nil && !already {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var wins int
	for range accepted {
		wins++
	}
	require.Equal(t, 1, wins, "exactly one concurrent duplicate scan may be admitted")

	n, err := s.ScanCount(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestScansPreserveAdmissionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sess, _, err := s.Open(ctx, "c1", time.Minute)
	require.NoError(t, err)

	for _, id := range []string{"s3", "s1", "s2"} {
		_, err := s.RecordScan(ctx, sess.Token, id)
		require.NoError(t, err)
	}

	scans, err := s.Scans(ctx, sess.Token)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	require.Equal(t, "s3", scans[0].StudentID)
	require.Equal(t, "s1", scans[1].StudentID)
	require.Equal(t, "s2", scans[2].StudentID)
}
