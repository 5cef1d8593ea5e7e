package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/paperdesk/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range repo.db.assignments {
		if row.a.TeacherID == a.TeacherID && row.a.StudentID == a.StudentID {
			return assignment.Assignment{}, assignment.ErrExists
		}
	}
	a.ID = uuid.New().String()
	a.Teacher, a.Student = nil, nil
	repo.db.assignments[a.ID] = &assignmentRow{seq: repo.db.nextSeq(), a: a}
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.assignments[id]; ok {
		return row.a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

// QueryAssignments returns the newest assignments first.
func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*assignmentRow, 0)
	for _, row := range repo.db.assignments {
		if filter.TeacherID != "" && row.a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && row.a.StudentID != filter.StudentID {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].a.AssignedAt.Equal(rows[j].a.AssignedAt) {
			return rows[i].a.AssignedAt.After(rows[j].a.AssignedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.a)
	}
	return assignments, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}
