// Package workflow sequences the portal use cases: authorize, store the primary record, then
// publish the domain event its notifications are derived from.
package workflow

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
)

var errDeleteSelf = errors.New("You cannot delete your own account")

type (
	Options struct {
		Policy      policy.Policy
		Users       *user.Service
		Assignments *assignment.Service
		Documents   *document.Service
		Blobs       core.BlobStore
		Bus         core.EventBus
		Logger      core.Logger
		// Validate checks the inputs of the use cases once they are authorized.
		Validate    *validator.Validate
		MaxFileSize int64
		Now         func() time.Time
	}

	Orchestrator struct {
		opts Options
	}

	ListDocumentsParams struct {
		Owner    string
		Status   document.Status
		Page     core.Pagination
		Ordering []core.DBOrdering
	}
)

func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts}
}

func (o *Orchestrator) authorize(actor user.User, action policy.Action, res policy.Resource) error {
	return o.opts.Policy.Authorize(policy.ActorOf(actor), action, res).Err()
}

// publish never fails the caller: bus errors are logged.
func (o *Orchestrator) publish(ctx context.Context, topic string, payload interface{}) {
	e, err := core.NewEvent(topic, payload)
	if err == nil {
		err = o.opts.Bus.Publish(ctx, e)
	}
	if err != nil {
		o.opts.Logger.Error("publishing "+topic, errors.Wrap(err, "publishing event"), map[string]interface{}{"payload": payload})
	}
}

func assignmentPayload(a assignment.Assignment) core.AssignmentPayload {
	p := core.AssignmentPayload{AssignmentID: a.ID, TeacherID: a.TeacherID, StudentID: a.StudentID}
	if a.Teacher != nil {
		p.TeacherName = a.Teacher.Name
	}
	if a.Student != nil {
		p.StudentName = a.Student.Name
	}
	return p
}

// AssignTeacher pairs a teacher with a student.
func (o *Orchestrator) AssignTeacher(ctx context.Context, actor user.User, na assignment.NewAssignment) (assignment.Assignment, error) {
	if err := o.authorize(actor, policy.AssignmentCreate, policy.Resource{}); err != nil {
		return assignment.Assignment{}, err
	}
	if err := na.Validate(o.opts.Validate); err != nil {
		return assignment.Assignment{}, err
	}
	a, err := o.opts.Assignments.Create(ctx, na.TeacherID, na.StudentID, actor.ID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	o.publish(ctx, core.TopicAssignmentCreated, assignmentPayload(a))
	return a, nil
}

func (o *Orchestrator) RemoveAssignment(ctx context.Context, actor user.User, id string) error {
	if err := o.authorize(actor, policy.AssignmentDelete, policy.Resource{}); err != nil {
		return err
	}
	a, err := o.opts.Assignments.Delete(ctx, id)
	if err != nil {
		return err
	}
	o.publish(ctx, core.TopicAssignmentRemoved, assignmentPayload(a))
	return nil
}

func (o *Orchestrator) ListAssignments(ctx context.Context, actor user.User) ([]assignment.Assignment, error) {
	if err := o.authorize(actor, policy.AssignmentList, policy.Resource{}); err != nil {
		return nil, err
	}
	teacherID, studentID := policy.AssignmentScope(policy.ActorOf(actor))
	return o.opts.Assignments.List(ctx, assignment.QueryFilter{TeacherID: teacherID, StudentID: studentID})
}

func (o *Orchestrator) ListDocuments(ctx context.Context, actor user.User, params ListDocumentsParams) (document.Page, error) {
	if err := o.authorize(actor, policy.DocumentList, policy.Resource{}); err != nil {
		return document.Page{}, err
	}
	var students []string
	if actor.IsTeacher() {
		var err error
		if students, err = o.opts.Assignments.StudentsOf(ctx, actor.ID); err != nil {
			return document.Page{}, errors.Wrap(err, "resolving assigned students")
		}
	}
	scope := policy.DocumentScope(policy.ActorOf(actor), students).Narrow(params.Owner)
	return o.opts.Documents.List(ctx, document.QueryFilter{Scope: scope, Status: params.Status}, params.Page, params.Ordering)
}

// documentResource loads a document with the ownership facts the policy needs about it.
func (o *Orchestrator) documentResource(ctx context.Context, actor user.User, id string) (document.Document, policy.Resource, error) {
	doc, err := o.opts.Documents.Get(ctx, id)
	if err != nil {
		return document.Document{}, policy.Resource{}, err
	}
	res := policy.Resource{OwnerID: doc.OwnerID}
	if actor.IsTeacher() {
		if res.Assigned, err = o.opts.Assignments.Exists(ctx, actor.ID, doc.OwnerID); err != nil {
			return document.Document{}, policy.Resource{}, errors.Wrap(err, "checking assignment")
		}
	}
	return doc, res, nil
}

func (o *Orchestrator) GetDocument(ctx context.Context, actor user.User, id string) (document.Document, error) {
	doc, res, err := o.documentResource(ctx, actor, id)
	if err != nil {
		return document.Document{}, err
	}
	if err := o.authorize(actor, policy.DocumentRead, res); err != nil {
		return document.Document{}, err
	}
	return doc, nil
}

// UploadDocument stores the file, then its metadata.
// A file that fails the upload constraints never reaches the blob store.
func (o *Orchestrator) UploadDocument(ctx context.Context, actor user.User, nd document.NewDocument, up *document.Upload) (document.Document, error) {
	if err := o.authorize(actor, policy.DocumentCreate, policy.Resource{OwnerID: actor.ID}); err != nil {
		return document.Document{}, err
	}
	if err := nd.Validate(o.opts.Validate); err != nil {
		return document.Document{}, err
	}
	contentType, err := up.Inspect(o.opts.MaxFileSize)
	if err != nil {
		return document.Document{}, err
	}

	blob, err := o.opts.Blobs.Put(ctx, core.BlobUpload{
		Filename:    up.Filename,
		ContentType: contentType,
		Size:        up.Size,
		Content:     up.Content,
	})
	if err != nil {
		return document.Document{}, core.NewExternalError("uploading file", err)
	}

	doc, err := o.opts.Documents.Create(ctx, actor, nd, up.Filename, blob)
	if err != nil {
		o.deleteBlob(ctx, blob.Handle)
		return document.Document{}, err
	}

	teachers, err := o.opts.Assignments.TeachersOf(ctx, actor.ID)
	if err != nil {
		o.opts.Logger.Error("resolving assigned teachers", errors.Wrap(err, "resolving assigned teachers"), actor)
	}
	o.publish(ctx, core.TopicDocumentUploaded, core.DocumentUploadedPayload{
		DocumentID: doc.ID,
		OwnerID:    actor.ID,
		OwnerName:  actor.Name,
		PaperName:  doc.PaperName,
		TeacherIDs: teachers,
	})
	return doc, nil
}

// ReviewDocument records a teacher's feedback.
func (o *Orchestrator) ReviewDocument(ctx context.Context, actor user.User, id string, rv document.Review) (document.Document, error) {
	_, res, err := o.documentResource(ctx, actor, id)
	if err != nil {
		return document.Document{}, err
	}
	if err := o.authorize(actor, policy.DocumentReview, res); err != nil {
		return document.Document{}, err
	}
	if err := rv.Validate(o.opts.Validate); err != nil {
		return document.Document{}, err
	}

	doc, err := o.opts.Documents.Review(ctx, id, rv, actor.ID, o.opts.Now())
	if err != nil {
		return document.Document{}, err
	}
	o.publish(ctx, core.TopicDocumentReviewed, core.DocumentReviewedPayload{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		PaperName:  doc.PaperName,
		ReviewerID: actor.ID,
		Status:     string(doc.Status),
	})
	return doc, nil
}

// DeleteDocument removes the stored file (best-effort) before the metadata.
func (o *Orchestrator) DeleteDocument(ctx context.Context, actor user.User, id string) error {
	doc, res, err := o.documentResource(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := o.authorize(actor, policy.DocumentDelete, res); err != nil {
		return err
	}
	o.deleteBlob(ctx, doc.BlobHandle)
	return o.opts.Documents.Delete(ctx, id)
}

func (o *Orchestrator) DocumentStats(ctx context.Context, actor user.User) (document.Stats, error) {
	if err := o.authorize(actor, policy.DocumentStats, policy.Resource{}); err != nil {
		return document.Stats{}, err
	}
	return o.opts.Documents.Stats(ctx, o.opts.Now())
}

// DeleteUser removes a user along with its assignments, documents (and their files) and notifications.
func (o *Orchestrator) DeleteUser(ctx context.Context, actor user.User, id string) error {
	if err := o.authorize(actor, policy.UserDelete, policy.Resource{OwnerID: id}); err != nil {
		return err
	}
	if actor.ID == id {
		return core.NewValidationError(errDeleteSelf)
	}
	if _, err := o.opts.Users.GetByID(ctx, id); err != nil {
		return err
	}

	handles, err := o.opts.Documents.OwnerBlobs(ctx, id)
	if err != nil {
		return errors.Wrap(err, "querying user files")
	}
	for _, h := range handles {
		o.deleteBlob(ctx, h)
	}
	return o.opts.Users.Delete(ctx, id)
}

// deleteBlob never fails the caller: blob store errors are logged.
func (o *Orchestrator) deleteBlob(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	if err := o.opts.Blobs.Delete(ctx, handle); err != nil {
		o.opts.Logger.Warn("deleting file "+handle, errors.Wrap(err, "deleting blob"))
	}
}
