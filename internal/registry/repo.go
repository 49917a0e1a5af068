package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists classes and students in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a repo.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const classColumns = `id, name, start_date, end_date, COALESCE(schedule, ''), COALESCE(status, ''),
	price, trainers, certificates_issued, created_at`

const studentColumns = `id, name, dob, COALESCE(organization, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(class_id::text, ''), COALESCE(class_name, ''), COALESCE(id_type, ''),
	COALESCE(id_file_path, ''), COALESCE(id_file_name, ''), enrollment_date`

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(row scanner) (Class, error) {
	var c Class
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Schedule, &c.Status,
		&c.Price, &c.Trainers, &c.CertificatesIssued, &c.CreatedAt)
	return c, err
}

func scanStudent(row scanner) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.DOB, &s.Organization, &s.Email, &s.Phone,
		&s.ClassID, &s.ClassName, &s.IDType, &s.IDFilePath, &s.IDFileName, &s.EnrollmentDate)
	return s, err
}

// CreateClass inserts a new class row.
func (r *Repository) CreateClass(ctx context.Context, c Class) (Class, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Trainers == nil {
		c.Trainers = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO classes (id, name, start_date, end_date, schedule, status, price, trainers, certificates_issued)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, c.ID, c.Name, c.StartDate, c.EndDate, c.Schedule, c.Status, c.Price, c.Trainers, c.CertificatesIssued)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return Class{}, mapPgError(err)
	}
	return c, nil
}

// ListClasses returns all classes, most recently starting first.
func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.Query(ctx, `SELECT `+classColumns+` FROM classes ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// GetClass returns a single class by id.
func (r *Repository) GetClass(ctx context.Context, id string) (Class, error) {
	row := r.db.QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id)
	c, err := scanClass(row)
	if err != nil {
		return Class{}, mapPgError(err)
	}
	return c, nil
}

// DeleteClass removes a class row. Enrolled students keep their denormalized
// class name; their class_id clears via the FK's ON DELETE SET NULL.
func (r *Repository) DeleteClass(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	return mapPgError(err)
}

// UpdateClassTrainers replaces the trainer list of a class.
func (r *Repository) UpdateClassTrainers(ctx context.Context, id string, trainers []string) (Class, error) {
	if trainers == nil {
		trainers = []string{}
	}
	row := r.db.QueryRow(ctx, `
		UPDATE classes SET trainers = $2 WHERE id = $1
		RETURNING `+classColumns, id, trainers)
	c, err := scanClass(row)
	if err != nil {
		return Class{}, mapPgError(err)
	}
	return c, nil
}

// ToggleCertificates flips the certificates-issued flag of a class.
func (r *Repository) ToggleCertificates(ctx context.Context, id string) (Class, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE classes SET certificates_issued = NOT certificates_issued WHERE id = $1
		RETURNING `+classColumns, id)
	c, err := scanClass(row)
	if err != nil {
		return Class{}, mapPgError(err)
	}
	return c, nil
}

// CreateStudent inserts a new student row including the class link.
func (r *Repository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.EnrollmentDate.IsZero() {
		s.EnrollmentDate = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO students (id, name, dob, organization, email, phone, class_id, class_name,
			id_type, id_file_path, id_file_name, enrollment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12)
	`, s.ID, s.Name, s.DOB, s.Organization, s.Email, s.Phone, s.ClassID, s.ClassName,
		s.IDType, s.IDFilePath, s.IDFileName, s.EnrollmentDate)
	if err != nil {
		return Student{}, mapPgError(err)
	}
	return s, nil
}

// ListStudents returns all students, most recently enrolled first.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY enrollment_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListStudentsByClass returns the students enrolled in one class.
func (r *Repository) ListStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY enrollment_date DESC
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if err != nil {
		return Student{}, mapPgError(err)
	}
	return s, nil
}

// UpdateStudent rewrites the mutable fields of a student. File columns are
// only touched when replaceFile is set.
func (r *Repository) UpdateStudent(ctx context.Context, s Student, replaceFile bool) (Student, error) {
	query := `
		UPDATE students
		SET name = $2, dob = $3, organization = $4, email = $5, phone = $6,
			class_id = NULLIF($7, '')::uuid, class_name = $8, id_type = $9`
	args := []any{s.ID, s.Name, s.DOB, s.Organization, s.Email, s.Phone, s.ClassID, s.ClassName, s.IDType}
	if replaceFile {
		query += `, id_file_path = $10, id_file_name = $11`
		args = append(args, s.IDFilePath, s.IDFileName)
	}
	query += fmt.Sprintf(` WHERE id = $1 RETURNING %s`, studentColumns)

	row := r.db.QueryRow(ctx, query, args...)
	updated, err := scanStudent(row)
	if err != nil {
		return Student{}, mapPgError(err)
	}
	return updated, nil
}

// DeleteStudent removes a student row.
func (r *Repository) DeleteStudent(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	return mapPgError(err)
}

// mapPgError converts driver errors into the registry taxonomy.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicateID
		case "23503":
			return ErrClassRef
		}
	}
	return err
}
