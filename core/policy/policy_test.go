package policy

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

var (
	admin    = Actor{ID: "a1", Role: user.RoleAdmin}
	teacher  = Actor{ID: "t1", Role: user.RoleTeacher}
	student  = Actor{ID: "s1", Role: user.RoleStudent}
	student2 = Actor{ID: "s2", Role: user.RoleStudent}
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		action  Action
		res     Resource
		allowed bool
		msg     string
	}{
		// assignments
		{name: "admin creates assignment", actor: admin, action: AssignmentCreate, allowed: true},
		{name: "teacher creates assignment", actor: teacher, action: AssignmentCreate, msg: "Only admins can create assignments"},
		{name: "student deletes assignment", actor: student, action: AssignmentDelete, msg: "Only admins can delete assignments"},
		{name: "student lists assignments", actor: student, action: AssignmentList, allowed: true},
		{name: "unknown role lists assignments", actor: Actor{ID: "x", Role: "ghost"}, action: AssignmentList, msg: "Not authorized"},

		// document reads
		{name: "student reads own document", actor: student, action: DocumentRead, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "student reads other document", actor: student, action: DocumentRead, res: Resource{OwnerID: "s2"}, msg: "Not authorized to access this document"},
		{name: "teacher reads unassigned document", actor: teacher, action: DocumentRead, res: Resource{OwnerID: "s2"}, allowed: true},
		{name: "admin reads any document", actor: admin, action: DocumentRead, res: Resource{OwnerID: "s2"}, allowed: true},

		// document writes
		{name: "student uploads", actor: student, action: DocumentCreate, allowed: true},
		{name: "teacher uploads", actor: teacher, action: DocumentCreate, msg: "Only students can upload documents"},
		{name: "admin uploads", actor: admin, action: DocumentCreate, msg: "Only students can upload documents"},
		{name: "assigned teacher reviews", actor: teacher, action: DocumentReview, res: Resource{OwnerID: "s1", Assigned: true}, allowed: true},
		{name: "unassigned teacher reviews", actor: teacher, action: DocumentReview, res: Resource{OwnerID: "s1"}, msg: "You are not assigned to this student"},
		{name: "admin reviews", actor: admin, action: DocumentReview, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "student reviews", actor: student, action: DocumentReview, res: Resource{OwnerID: "s1", Assigned: true}, msg: "Only teachers can provide feedback"},
		{name: "owner deletes", actor: student, action: DocumentDelete, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "other student deletes", actor: student2, action: DocumentDelete, res: Resource{OwnerID: "s1"}, msg: "Not authorized to delete this document"},
		{name: "teacher deletes", actor: teacher, action: DocumentDelete, res: Resource{OwnerID: "s1", Assigned: true}, msg: "Not authorized to delete this document"},
		{name: "admin deletes", actor: admin, action: DocumentDelete, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "admin stats", actor: admin, action: DocumentStats, allowed: true},
		{name: "teacher stats", actor: teacher, action: DocumentStats, msg: "Only admins can view document statistics"},

		// notifications
		{name: "owner marks read", actor: student, action: NotificationUpdate, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "admin marks other read", actor: admin, action: NotificationUpdate, res: Resource{OwnerID: "s1"}, msg: "Not authorized to update this notification"},
		{name: "other deletes", actor: teacher, action: NotificationDelete, res: Resource{OwnerID: "s1"}, msg: "Not authorized to delete this notification"},
		{name: "owner deletes notification", actor: teacher, action: NotificationDelete, res: Resource{OwnerID: "t1"}, allowed: true},

		// users
		{name: "admin lists users", actor: admin, action: UserList, allowed: true},
		{name: "teacher lists users", actor: teacher, action: UserList, msg: "Only admins can access users"},
		{name: "self reads", actor: student, action: UserRead, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "other reads", actor: student, action: UserRead, res: Resource{OwnerID: "s2"}, msg: "Not authorized to access this user"},
		{name: "self updates", actor: teacher, action: UserUpdate, res: Resource{OwnerID: "t1"}, allowed: true},
		{name: "self changes role", actor: teacher, action: UserUpdateRole, res: Resource{OwnerID: "t1"}, msg: "Only admins can change roles"},
		{name: "admin deletes user", actor: admin, action: UserDelete, res: Resource{OwnerID: "s1"}, allowed: true},
		{name: "unknown action", actor: admin, action: "lol", msg: "Not authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.actor, tt.action, tt.res)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Reason)
				assert.NoError(t, d.Err())
				return
			}
			assert.Equal(t, ReasonForbidden, d.Reason)
			assert.Equal(t, tt.msg, d.Message)
			assert.Equal(t, core.ErrForbidden, errors.Cause(d.Err()))
		})
	}
}

func TestPolicy_RestrictTeacherReads(t *testing.T) {
	p := New(Options{RestrictTeacherReads: true})

	assert.True(t, p.Authorize(teacher, DocumentRead, Resource{OwnerID: "s1", Assigned: true}).Allowed)
	d := p.Authorize(teacher, DocumentRead, Resource{OwnerID: "s2"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "Not authorized to access this document", d.Message)
	assert.True(t, p.Authorize(admin, DocumentRead, Resource{OwnerID: "s2"}).Allowed)
}

func TestAssignmentScope(t *testing.T) {
	tID, sID := AssignmentScope(admin)
	assert.Empty(t, tID)
	assert.Empty(t, sID)

	tID, sID = AssignmentScope(teacher)
	assert.Equal(t, "t1", tID)
	assert.Empty(t, sID)

	tID, sID = AssignmentScope(student)
	assert.Empty(t, tID)
	assert.Equal(t, "s1", sID)
}

func TestDocumentScope(t *testing.T) {
	tests := []struct {
		name     string
		actor    Actor
		assigned []string
		owner    string
		want     Scope
	}{
		{name: "admin", actor: admin, want: Scope{All: true}},
		{name: "admin narrowed", actor: admin, owner: "s2", want: Scope{OwnerIDs: []string{"s2"}}},
		{name: "teacher", actor: teacher, assigned: []string{"s1", "s2"}, want: Scope{OwnerIDs: []string{"s1", "s2"}}},
		{name: "teacher without students", actor: teacher, want: Scope{OwnerIDs: []string{}}},
		{name: "teacher narrowed to assigned", actor: teacher, assigned: []string{"s1", "s2"}, owner: "s2", want: Scope{OwnerIDs: []string{"s2"}}},
		{name: "teacher narrowed to unassigned", actor: teacher, assigned: []string{"s1"}, owner: "s3", want: Scope{OwnerIDs: []string{}}},
		{name: "student ignores assigned", actor: student, assigned: []string{"s2"}, want: Scope{OwnerIDs: []string{"s1"}}},
		{name: "student narrowed to other", actor: student, owner: "s2", want: Scope{OwnerIDs: []string{}}},
		{name: "student narrowed to self", actor: student, owner: "s1", want: Scope{OwnerIDs: []string{"s1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DocumentScope(tt.actor, tt.assigned).Narrow(tt.owner)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, DocumentScope(teacher, nil).IsEmpty())
	assert.False(t, DocumentScope(admin, nil).IsEmpty())
}
