package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestQROverwritesManual(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.SaveManual(ctx, "c1", day, []Mark{{StudentID: "stu1", Status: Absent}}, day.Add(9*time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.MarkQR(ctx, "c1", day, "stu1", day.Add(10*time.Hour)))

	recs, err := s.Day(ctx, "c1", day)
	require.NoError(t, err)
	require.Equal(t, Present, recs["stu1"].Status)
	require.Equal(t, QR, recs["stu1"].MarkedVia)
}

func TestManualSaveSkipsQRRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MarkQR(ctx, "c1", day, "stu1", day.Add(9*time.Hour)))

	skipped, err := s.SaveManual(ctx, "c1", day, []Mark{
		{StudentID: "stu1", Status: Absent},
		{StudentID: "stu2", Status: Absent},
	}, day.Add(10*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, skipped)

	recs, err := s.Day(ctx, "c1", day)
	require.NoError(t, err)
	require.Equal(t, Present, recs["stu1"].Status, "QR record must survive a manual batch")
	require.Equal(t, QR, recs["stu1"].MarkedVia)
	require.Equal(t, Absent, recs["stu2"].Status)
	require.Equal(t, Manual, recs["stu2"].MarkedVia)
}

func TestManualSaveOverwritesManual(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.SaveManual(ctx, "c1", day, []Mark{{StudentID: "stu1", Status: Absent}}, day.Add(9*time.Hour))
	require.NoError(t, err)
	skipped, err := s.SaveManual(ctx, "c1", day, []Mark{{StudentID: "stu1", Status: Present}}, day.Add(10*time.Hour))
	require.NoError(t, err)
	require.Zero(t, skipped)

	recs, err := s.Day(ctx, "c1", day)
	require.NoError(t, err)
	require.Equal(t, Present, recs["stu1"].Status)
}

func TestDayIsScopedByCourseAndDate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MarkQR(ctx, "c1", day, "stu1", day))
	require.NoError(t, s.MarkQR(ctx, "c2", day, "stu2", day))
	require.NoError(t, s.MarkQR(ctx, "c1", day.AddDate(0, 0, 1), "stu3", day))

	recs, err := s.Day(ctx, "c1", day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Contains(t, recs, "stu1")
}

func TestConcurrentQRWritesDistinctStudents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "stu" + string(rune('A'+i%26)) + string(rune('0'+i/26))
			_ = s.MarkQR(ctx, "c1", day, id, day)
		}(i)
	}
	wg.Wait()

	recs, err := s.Day(ctx, "c1", day)
	require.NoError(t, err)
	for _, rec := range recs {
		require.Equal(t, Present, rec.Status)
		require.Equal(t, QR, rec.MarkedVia)
	}
}
