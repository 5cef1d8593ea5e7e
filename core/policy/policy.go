// Package policy decides who may do what. It has no side effects and never fails:
// every call returns a Decision.
package policy

import (
	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

type Action string

const (
	AssignmentList   Action = "assignment:list"
	AssignmentCreate Action = "assignment:create"
	AssignmentDelete Action = "assignment:delete"

	DocumentList   Action = "document:list"
	DocumentRead   Action = "document:read"
	DocumentCreate Action = "document:create"
	DocumentReview Action = "document:review"
	DocumentDelete Action = "document:delete"
	DocumentStats  Action = "document:stats"

	NotificationList   Action = "notification:list"
	NotificationUpdate Action = "notification:update"
	NotificationDelete Action = "notification:delete"

	UserList       Action = "user:list"
	UserRead       Action = "user:read"
	UserUpdate     Action = "user:update"
	UserUpdateRole Action = "user:update-role"
	UserDelete     Action = "user:delete"
	UserStats      Action = "user:stats"
)

// ReasonForbidden is the only denial reason.
const ReasonForbidden = "forbidden"

// Actor is the authenticated user performing an action.
type Actor struct {
	ID   string
	Role user.Role
}

func ActorOf(usr user.User) Actor {
	return Actor{ID: usr.ID, Role: usr.Role}
}

// Resource carries the ownership facts the rules need.
type Resource struct {
	// OwnerID is the document owner, the notification recipient or the target user.
	OwnerID string
	// Assigned reports whether the actor (a teacher) is assigned to OwnerID.
	Assigned bool
}

type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(msg string) Decision {
	return Decision{Reason: ReasonForbidden, Message: msg}
}

// Err converts a denial into a core.ForbiddenError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return core.NewForbiddenError(d.Message)
}

type Options struct {
	// RestrictTeacherReads limits a teacher's single-document reads to assigned students.
	RestrictTeacherReads bool
}

type Policy struct {
	opts Options
}

func New(opts Options) Policy {
	return Policy{opts: opts}
}

// Authorize applies the default Options.
func Authorize(actor Actor, action Action, res Resource) Decision {
	return Policy{}.Authorize(actor, action, res)
}

func (p Policy) Authorize(actor Actor, action Action, res Resource) Decision {
	isAdmin := actor.Role == user.RoleAdmin
	isOwner := actor.ID != "" && actor.ID == res.OwnerID

	switch action {
	// list operations are always allowed; their results are scoped (see AssignmentScope & DocumentScope)
	case AssignmentList, DocumentList, NotificationList:
		if actor.Role.IsValid() {
			return allow()
		}
		return deny("Not authorized")

	case AssignmentCreate:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can create assignments")
	case AssignmentDelete:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can delete assignments")

	case DocumentRead:
		switch actor.Role {
		case user.RoleAdmin:
			return allow()
		case user.RoleTeacher:
			if !p.opts.RestrictTeacherReads || res.Assigned {
				return allow()
			}
		case user.RoleStudent:
			if isOwner {
				return allow()
			}
		}
		return deny("Not authorized to access this document")
	case DocumentCreate:
		if actor.Role == user.RoleStudent {
			return allow()
		}
		return deny("Only students can upload documents")
	case DocumentReview:
		switch actor.Role {
		case user.RoleAdmin:
			return allow()
		case user.RoleTeacher:
			if res.Assigned {
				return allow()
			}
			return deny("You are not assigned to this student")
		}
		return deny("Only teachers can provide feedback")
	case DocumentDelete:
		if isAdmin || (actor.Role == user.RoleStudent && isOwner) {
			return allow()
		}
		return deny("Not authorized to delete this document")
	case DocumentStats:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can view document statistics")

	case NotificationUpdate:
		if isOwner {
			return allow()
		}
		return deny("Not authorized to update this notification")
	case NotificationDelete:
		if isOwner {
			return allow()
		}
		return deny("Not authorized to delete this notification")

	case UserList, UserStats:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can access users")
	case UserRead:
		if isAdmin || isOwner {
			return allow()
		}
		return deny("Not authorized to access this user")
	case UserUpdate:
		if isAdmin || isOwner {
			return allow()
		}
		return deny("Not authorized to update this user")
	case UserUpdateRole:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can change roles")
	case UserDelete:
		if isAdmin {
			return allow()
		}
		return deny("Only admins can delete users")
	}
	return deny("Not authorized")
}

// AssignmentScope returns the teacher or student an actor's assignment list is restricted to.
// Both are empty for admins.
func AssignmentScope(actor Actor) (teacherID, studentID string) {
	switch actor.Role {
	case user.RoleTeacher:
		return actor.ID, ""
	case user.RoleStudent:
		return "", actor.ID
	}
	return "", ""
}

// Scope restricts a document listing to a set of owners, unless All is set.
type Scope struct {
	All      bool
	OwnerIDs []string
}

// DocumentScope returns which owners' documents an actor may list.
// assignedStudents are the students the actor teaches; it is ignored for other roles.
func DocumentScope(actor Actor, assignedStudents []string) Scope {
	switch actor.Role {
	case user.RoleAdmin:
		return Scope{All: true}
	case user.RoleTeacher:
		owners := make([]string, len(assignedStudents))
		copy(owners, assignedStudents)
		return Scope{OwnerIDs: owners}
	case user.RoleStudent:
		return Scope{OwnerIDs: []string{actor.ID}}
	}
	return Scope{OwnerIDs: []string{}}
}

// Narrow intersects the scope with an explicit owner filter.
func (s Scope) Narrow(ownerID string) Scope {
	if ownerID == "" {
		return s
	}
	if s.All || s.Includes(ownerID) {
		return Scope{OwnerIDs: []string{ownerID}}
	}
	return Scope{OwnerIDs: []string{}}
}

func (s Scope) Includes(ownerID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.OwnerIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the scope cannot match any document.
func (s Scope) IsEmpty() bool {
	return !s.All && len(s.OwnerIDs) == 0
}
