// Package testutil seeds repositories for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAssignment(t *testing.T, repo assignment.Repository, teacher, student user.User, assignedBy string) assignment.Assignment {
	t.Helper()
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		TeacherID:  teacher.ID,
		StudentID:  student.ID,
		AssignedBy: assignedBy,
		AssignedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// CreateDocument stores a submitted document owned by owner and uploaded at uploadedAt (now by default).
func CreateDocument(t *testing.T, repo document.Repository, owner user.User, paperName string, uploadedAt ...time.Time) document.Document {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(uploadedAt) > 0 {
		tstamp = uploadedAt[0].UTC()
	}
	doc, err := repo.CreateDocument(context.Background(), document.Document{
		OwnerID:          owner.ID,
		Name:             owner.Name,
		PaperName:        paperName,
		FileURL:          "/uploads/" + paperName + ".pdf",
		OriginalFilename: paperName + ".pdf",
		BlobHandle:       paperName + ".pdf",
		Status:           document.StatusSubmitted,
		Feedback:         null.String{},
		UploadedAt:       tstamp,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	})
	if err != nil {
		t.Fatalf("CreateDocument() failed: %v", err)
	}
	return doc
}
