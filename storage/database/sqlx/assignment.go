package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
)

const assignmentColumns = "id, teacher_id, student_id, assigned_by, assigned_at"

type assignmentRow struct {
	ID         string      `db:"id"`
	TeacherID  string      `db:"teacher_id"`
	StudentID  string      `db:"student_id"`
	AssignedBy null.String `db:"assigned_by"`
	AssignedAt time.Time   `db:"assigned_at"`
}

func (r assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:         r.ID,
		TeacherID:  r.TeacherID,
		StudentID:  r.StudentID,
		AssignedBy: r.AssignedBy.String,
		AssignedAt: r.AssignedAt.UTC(),
	}
}

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	if !validID(a.TeacherID) || !validID(a.StudentID) {
		return assignment.Assignment{}, errors.New("invalid assignment user ID")
	}
	a.ID = uuid.New().String()
	q := `INSERT INTO assignments (` + assignmentColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := repo.exec.ExecContext(ctx, q,
		a.ID, a.TeacherID, a.StudentID, null.NewString(a.AssignedBy, validID(a.AssignedBy)), a.AssignedAt.UTC(),
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return assignment.Assignment{}, assignment.ErrExists
		}
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var row assignmentRow
	if err := repo.exec.GetContext(ctx, &row, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return row.assignment(), nil
}

// QueryAssignments returns the newest assignments first.
func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	b := psql.Select(assignmentColumns).From("assignments").OrderBy("assigned_at DESC")
	if filter.TeacherID != "" {
		if !validID(filter.TeacherID) {
			return []assignment.Assignment{}, nil
		}
		b = b.Where(sq.Eq{"teacher_id": filter.TeacherID})
	}
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return []assignment.Assignment{}, nil
		}
		b = b.Where(sq.Eq{"student_id": filter.StudentID})
	}

	var rows []assignmentRow
	if err := selectBuilt(ctx, repo.exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !validID(id) {
		return assignment.ErrNotFound
	}
	n, err := affected(repo.exec.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}
