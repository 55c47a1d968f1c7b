package attendance

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists attendance records in Postgres.
//
// Per-key atomicity comes from row-level ON CONFLICT upserts, so scans for
// different students never contend on anything wider than their own row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// MarkQR upserts to Present/QR. The update arm is unconditional: a QR
// write displaces any prior manual value.
func (s *PostgresStore) MarkQR(ctx context.Context, courseID string, date time.Time, studentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, course_id, student_id, date, status, marked_via, recorded_at)
		VALUES ($1, $2, $3, $4, 'Present', 'QR', $5)
		ON CONFLICT (course_id, student_id, date) DO UPDATE SET
			status = 'Present',
			marked_via = 'QR',
			recorded_at = EXCLUDED.recorded_at
	`, uuid.NewString(), courseID, studentID, DateOf(date), at)
	return err
}

// SaveManual upserts each mark as a Manual write. The conflict arm's WHERE
// clause leaves QR-sourced rows untouched, which is also what makes the
// skip check and the write one atomic unit per row.
func (s *PostgresStore) SaveManual(ctx context.Context, courseID string, date time.Time, marks []Mark, at time.Time) (int, error) {
	day := DateOf(date)
	skipped := 0
	for _, m := range marks {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO attendance_records (id, course_id, student_id, date, status, marked_via, recorded_at)
			VALUES ($1, $2, $3, $4, $5, 'Manual', $6)
			ON CONFLICT (course_id, student_id, date) DO UPDATE SET
				status = EXCLUDED.status,
				marked_via = 'Manual',
				recorded_at = EXCLUDED.recorded_at
			WHERE attendance_records.marked_via <> 'QR'
		`, uuid.NewString(), courseID, m.StudentID, day, m.Status, at)
		if err != nil {
			return skipped, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return skipped, err
		}
		if n == 0 {
			skipped++
		}
	}
	return skipped, nil
}

// Day returns the day's records keyed by student id.
func (s *PostgresStore) Day(ctx context.Context, courseID string, date time.Time) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT course_id, student_id, date, status, marked_via, recorded_at
		FROM attendance_records
		WHERE course_id = $1 AND date = $2
	`, courseID, DateOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.CourseID, &rec.StudentID, &rec.Date, &rec.Status, &rec.MarkedVia, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out[rec.StudentID] = rec
	}
	return out, rows.Err()
}
