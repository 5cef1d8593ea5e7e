package assignment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("Assignment not found")
	ErrExists   = errors.New("This student is already assigned to this teacher")
)

type Assignment struct {
	ID         string        `json:"id"`
	TeacherID  string        `json:"teacher_id"`
	StudentID  string        `json:"student_id"`
	AssignedBy string        `json:"assigned_by,omitempty"` // empty once the assigning admin is deleted
	AssignedAt time.Time     `json:"assigned_at"`           // UTC
	Teacher    *user.Summary `json:"teacher,omitempty"`
	Student    *user.Summary `json:"student,omitempty"`
}

type NewAssignment struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.TeacherID = core.CleanString(na.TeacherID)
	na.StudentID = core.CleanString(na.StudentID)
	return validate.Struct(na)
}

// QueryFilter applies AND operation on its non-empty fields.
type QueryFilter struct {
	TeacherID string
	StudentID string
}

type (
	Repository interface {
		// CreateAssignment returns ErrExists if the (teacher, student) pair is already stored.
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
	}

	Service struct {
		repo  Repository
		users *user.Service
	}
)

func NewService(repo Repository, users *user.Service) *Service {
	return &Service{repo: repo, users: users}
}

// enrich attaches the teacher & student display fields with a single user lookup.
func (svc *Service) enrich(ctx context.Context, assignments ...Assignment) ([]Assignment, error) {
	ids := make([]string, 0, 2*len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.TeacherID, a.StudentID)
	}
	users, err := svc.users.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolving assignment users")
	}
	for i := range assignments {
		if t, ok := users[assignments[i].TeacherID]; ok {
			s := t.Summary()
			assignments[i].Teacher = &s
		}
		if st, ok := users[assignments[i].StudentID]; ok {
			s := st.Summary()
			assignments[i].Student = &s
		}
	}
	return assignments, nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	if len(assignments) == 0 {
		return []Assignment{}, nil
	}
	return svc.enrich(ctx, assignments...)
}

func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	enriched, err := svc.enrich(ctx, a)
	if err != nil {
		return Assignment{}, err
	}
	return enriched[0], nil
}

// Create pairs a teacher with a student. Both ids must reference users with the matching role.
func (svc *Service) Create(ctx context.Context, teacherID, studentID, assignedBy string) (Assignment, error) {
	users, err := svc.users.GetMany(ctx, []string{teacherID, studentID})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "resolving assignment users")
	}
	var flds []core.FieldError
	if t, ok := users[teacherID]; !ok || !t.IsTeacher() {
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "teacher_id must reference a teacher"})
	}
	if s, ok := users[studentID]; !ok || !s.IsStudent() {
		flds = append(flds, core.FieldError{Field: "student_id", Error: "student_id must reference a student"})
	}
	if flds != nil {
		return Assignment{}, core.NewValidationError(nil, flds...)
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		TeacherID:  teacherID,
		StudentID:  studentID,
		AssignedBy: assignedBy,
		AssignedAt: time.Now().UTC(),
	})
	if err != nil {
		return Assignment{}, err
	}

	teacher, student := users[teacherID].Summary(), users[studentID].Summary()
	a.Teacher, a.Student = &teacher, &student
	return a, nil
}

// Delete removes an assignment and returns it as it was before removal.
func (svc *Service) Delete(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err := svc.repo.DeleteAssignment(ctx, id); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// StudentsOf returns the ids of the students assigned to a teacher.
func (svc *Service) StudentsOf(ctx context.Context, teacherID string) ([]string, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher assignments")
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.StudentID)
	}
	return ids, nil
}

// TeachersOf returns the ids of the teachers assigned to a student.
func (svc *Service) TeachersOf(ctx context.Context, studentID string) ([]string, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.TeacherID)
	}
	return ids, nil
}

func (svc *Service) Exists(ctx context.Context, teacherID, studentID string) (bool, error) {
	if teacherID == "" || studentID == "" {
		return false, nil
	}
	assignments, err := svc.repo.QueryAssignments(ctx, QueryFilter{TeacherID: teacherID, StudentID: studentID})
	if err != nil {
		return false, errors.Wrap(err, "querying assignment")
	}
	return len(assignments) > 0, nil
}
