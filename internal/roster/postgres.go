package roster

import (
	"context"
	"database/sql"
	"errors"
)

// Postgres reads course and enrollment rows maintained by the wider
// campus application.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a directory over an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Course loads a course and its roster.
func (p *Postgres) Course(ctx context.Context, courseID string) (*Course, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, instructor_id FROM courses WHERE id = $1
	`, courseID)
	var c Course
	if err := row.Scan(&c.ID, &c.Name, &c.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT student_id FROM course_students WHERE course_id = $1 ORDER BY student_id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		c.Students = append(c.Students, id)
	}
	return &c, rows.Err()
}

// Enrolled checks roster membership with a single indexed lookup.
func (p *Postgres) Enrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_students WHERE course_id = $1 AND student_id = $2
		)
	`, courseID, studentID)
	var ok bool
	err := row.Scan(&ok)
	return ok, err
}

// Teaches checks instructorship.
func (p *Postgres) Teaches(ctx context.Context, courseID, facultyID string) (bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM courses WHERE id = $1 AND instructor_id = $2
		)
	`, courseID, facultyID)
	var ok bool
	err := row.Scan(&ok)
	return ok, err
}
