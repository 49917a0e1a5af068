package registry

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the service drives. The Postgres
// Repository satisfies it; tests use an in-memory fake.
type Store interface {
	CreateClass(ctx context.Context, c Class) (Class, error)
	ListClasses(ctx context.Context) ([]Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	DeleteClass(ctx context.Context, id string) error
	UpdateClassTrainers(ctx context.Context, id string, trainers []string) (Class, error)
	ToggleCertificates(ctx context.Context, id string) (Class, error)
	CreateStudent(ctx context.Context, s Student) (Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	ListStudentsByClass(ctx context.Context, classID string) ([]Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	UpdateStudent(ctx context.Context, s Student, replaceFile bool) (Student, error)
	DeleteStudent(ctx context.Context, id string) error
}

// BlobStore persists identity documents referenced from student rows.
type BlobStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Delete(storedName string) error
}

// Stats are the dashboard aggregates.
type Stats struct {
	TotalClasses  int `json:"total_classes"`
	FutureClasses int `json:"future_classes"`
	EndedClasses  int `json:"ended_classes"`
	ActiveClasses int `json:"active_classes"`
	TotalStudents int `json:"total_students"`
}

// ClassInput carries the fields a caller provides to schedule a class.
type ClassInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Schedule  string
	Price     *float64
	Trainers  string // comma-separated
}

// StudentInput carries a registration or update submission. File is nil when
// no document accompanies the request.
type StudentInput struct {
	Name         string
	DOB          string // DD/MM/YYYY
	Organization string
	Email        string
	Phone        string
	ClassName    string
	IDType       string
	FileName     string
	File         io.Reader
}

// Service enforces the enrollment and class-lifecycle rules.
type Service struct {
	store Store
	blobs BlobStore
	now   func() time.Time
}

// NewService creates a service backed by a store and a blob store.
func NewService(store Store, blobs BlobStore) *Service {
	return &Service{store: store, blobs: blobs, now: time.Now}
}

// AddClass validates and inserts a new class with a generated id and the
// fixed default status.
func (s *Service) AddClass(ctx context.Context, in ClassInput) (Class, error) {
	if err := required("name", in.Name); err != nil {
		return Class{}, err
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return Class{}, &ValidationError{Field: "start_date", Reason: "start and end dates are required"}
	}
	if dateOnly(in.EndDate).Before(dateOnly(in.StartDate)) {
		return Class{}, &ValidationError{Field: "end_date", Reason: "must not be before start date"}
	}

	c := Class{
		ID:        uuid.NewString(),
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Schedule:  in.Schedule,
		Status:    DefaultStatus,
		Price:     in.Price,
		Trainers:  SplitTrainers(in.Trainers),
	}
	return s.store.CreateClass(ctx, c)
}

// ListClasses returns every class, most recently starting first.
func (s *Service) ListClasses(ctx context.Context) ([]Class, error) {
	return s.store.ListClasses(ctx)
}

// DeleteClass removes a class. Enrollments are not cascaded; their
// denormalized class name stays readable.
func (s *Service) DeleteClass(ctx context.Context, id string) error {
	return s.store.DeleteClass(ctx, id)
}

// UpdateTrainers replaces a class's trainer list from comma-separated input
// and persists it.
func (s *Service) UpdateTrainers(ctx context.Context, id, raw string) (Class, error) {
	return s.store.UpdateClassTrainers(ctx, id, SplitTrainers(raw))
}

// ToggleCertificates flips and persists the certificates-issued flag.
func (s *Service) ToggleCertificates(ctx context.Context, id string) (Class, error) {
	return s.store.ToggleCertificates(ctx, id)
}

// ListStudents returns every student, most recently enrolled first.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// EnrollStudent registers a new student. The class is resolved by name
// against the classes currently open for enrollment; the document is stored
// before the row is inserted and removed again if the insert fails.
func (s *Service) EnrollStudent(ctx context.Context, in StudentInput) (Student, error) {
	dob, err := s.validateStudent(in, true)
	if err != nil {
		return Student{}, err
	}

	target, err := s.resolveEligible(ctx, in.ClassName)
	if err != nil {
		return Student{}, err
	}

	stored, err := s.blobs.Save(in.FileName, in.File)
	if err != nil {
		return Student{}, err
	}

	st := Student{
		ID:             uuid.NewString(),
		Name:           in.Name,
		DOB:            dob,
		Organization:   in.Organization,
		Email:          in.Email,
		Phone:          in.Phone,
		ClassID:        target.ID,
		ClassName:      target.Name,
		IDType:         in.IDType,
		IDFilePath:     stored,
		IDFileName:     in.FileName,
		EnrollmentDate: s.now().UTC(),
	}

	created, err := s.store.CreateStudent(ctx, st)
	if err != nil {
		if derr := s.blobs.Delete(stored); derr != nil {
			log.Printf("orphaned upload %s after failed enrollment: %v", stored, derr)
		}
		return Student{}, err
	}
	return created, nil
}

// UpdateStudent rewrites a student record. A changed class name must resolve
// to a class open for enrollment; an unchanged name keeps the existing link
// untouched. A new document replaces the old blob, which is deleted
// best-effort once the row update commits.
func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentInput) (Student, error) {
	cur, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}

	dob, err := s.validateStudent(in, false)
	if err != nil {
		return Student{}, err
	}

	upd := cur
	upd.Name = in.Name
	upd.DOB = dob
	upd.Organization = in.Organization
	upd.Email = in.Email
	upd.Phone = in.Phone
	upd.IDType = in.IDType

	if in.ClassName != cur.ClassName {
		target, err := s.resolveEligible(ctx, in.ClassName)
		if err != nil {
			return Student{}, err
		}
		upd.ClassID = target.ID
		upd.ClassName = target.Name
	}

	replace := false
	oldPath := ""
	if in.File != nil {
		stored, err := s.blobs.Save(in.FileName, in.File)
		if err != nil {
			return Student{}, err
		}
		oldPath = cur.IDFilePath
		upd.IDFilePath = stored
		upd.IDFileName = in.FileName
		replace = true
	}

	res, err := s.store.UpdateStudent(ctx, upd, replace)
	if err != nil {
		if replace {
			if derr := s.blobs.Delete(upd.IDFilePath); derr != nil {
				log.Printf("orphaned upload %s after failed update: %v", upd.IDFilePath, derr)
			}
		}
		return Student{}, err
	}

	if replace && oldPath != "" {
		if derr := s.blobs.Delete(oldPath); derr != nil {
			log.Printf("stale upload %s not removed: %v", oldPath, derr)
		}
	}
	return res, nil
}

// DeleteStudent removes a student and its stored document. The two steps are
// not atomic; a failed blob delete is logged and the row is removed anyway.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if st.IDFilePath != "" {
		if derr := s.blobs.Delete(st.IDFilePath); derr != nil {
			log.Printf("upload %s for student %s not removed: %v", st.IDFilePath, id, derr)
		}
	}
	return s.store.DeleteStudent(ctx, id)
}

// Stats computes the dashboard aggregates. Active is the remainder so the
// three temporal partitions always sum to the total.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	classes, err := s.store.ListClasses(ctx)
	if err != nil {
		return Stats{}, err
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return Stats{}, err
	}

	now := s.now()
	st := Stats{TotalClasses: len(classes), TotalStudents: len(students)}
	for _, c := range classes {
		switch ClassState(c, now) {
		case StateFuture:
			st.FutureClasses++
		case StateEnded:
			st.EndedClasses++
		}
	}
	st.ActiveClasses = st.TotalClasses - st.FutureClasses - st.EndedClasses
	return st, nil
}

// ExportClass builds the roster grid for one class.
func (s *Service) ExportClass(ctx context.Context, classID string) ([][]string, error) {
	c, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	students, err := s.store.ListStudentsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return ExportClassSheet(c, students, s.now()), nil
}

func (s *Service) validateStudent(in StudentInput, fileRequired bool) (time.Time, error) {
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"dob", in.DOB},
		{"organization", in.Organization},
		{"phone", in.Phone},
		{"id_type", in.IDType},
		{"class_name", in.ClassName},
	} {
		if err := required(f.name, f.value); err != nil {
			return time.Time{}, err
		}
	}
	if !validIDType(in.IDType) {
		return time.Time{}, &ValidationError{Field: "id_type", Reason: "must be one of National ID, Work ID, Driving Permit"}
	}
	if fileRequired && (in.File == nil || in.FileName == "") {
		return time.Time{}, &ValidationError{Field: "id_file", Reason: "an identity document upload is required"}
	}
	return ParseDOB(in.DOB)
}

// resolveEligible finds a Future-or-Active class by name against the current
// class set. Names of ended classes do not resolve.
func (s *Service) resolveEligible(ctx context.Context, name string) (Class, error) {
	classes, err := s.store.ListClasses(ctx)
	if err != nil {
		return Class{}, err
	}
	now := s.now()
	for _, c := range classes {
		if c.Name == name && Eligible(c, now) {
			return c, nil
		}
	}
	return Class{}, ErrIneligibleClass
}
