package document

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("Document not found")

	// sortable fields
	sortableFields = map[string]struct{}{
		"uploaded_at": {},
		"reviewed_at": {},
		"paper_name":  {},
		"name":        {},
		"status":      {},
		"created_at":  {},
		"updated_at":  {},
	}
	defaultOrdering = []core.DBOrdering{{Field: "uploaded_at", Ascending: false}}

	statsMonths = 6
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		// QueryDocuments returns the requested page and the total number of matching documents.
		QueryDocuments(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering) ([]Document, int, error)
		UpdateReview(ctx context.Context, id string, rec ReviewRecord) (Document, error)
		DeleteDocument(ctx context.Context, id string) error
		CountByStatus(ctx context.Context) (map[Status]int, error)
		CountWithFeedback(ctx context.Context) (int, error)
		// CountByMonth groups documents uploaded since `since` by (year, month), chronologically.
		CountByMonth(ctx context.Context, since time.Time) ([]MonthCount, error)
		// QueryOwnerBlobs returns the blob handles of every document of an owner.
		QueryOwnerBlobs(ctx context.Context, ownerID string) ([]string, error)
	}

	Service struct {
		repo  Repository
		users *user.Service
	}
)

func NewService(repo Repository, users *user.Service) *Service {
	return &Service{repo: repo, users: users}
}

// ParseOrdering keeps the sortable fields of a "-field,field" list, defaulting to newest uploads first.
func ParseOrdering(s string) []core.DBOrdering {
	var ordering []core.DBOrdering
	for _, ord := range core.ParseOrdering(s) {
		if _, ok := sortableFields[ord.Field]; ok {
			ordering = append(ordering, ord)
		}
	}
	if len(ordering) == 0 {
		return defaultOrdering
	}
	return ordering
}

// ParseStatusFilter accepts an empty value or "all" as no filter.
func ParseStatusFilter(s string) (Status, error) {
	s = core.CleanString(s, true /* lower */)
	if s == "" || s == "all" {
		return "", nil
	}
	st := Status(s)
	if !st.IsValid() {
		names := make([]string, 0, len(Statuses))
		for _, s := range Statuses {
			names = append(names, string(s))
		}
		return "", core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: "status must be one of " + strings.Join(names, ", "),
		})
	}
	return st, nil
}

func (svc *Service) enrich(ctx context.Context, docs ...Document) ([]Document, error) {
	ids := make([]string, 0, 2*len(docs))
	for _, d := range docs {
		ids = append(ids, d.OwnerID)
		if d.ReviewedBy.Valid {
			ids = append(ids, d.ReviewedBy.String)
		}
	}
	users, err := svc.users.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolving document users")
	}
	for i := range docs {
		if o, ok := users[docs[i].OwnerID]; ok {
			s := o.Summary()
			docs[i].Owner = &s
		}
		if docs[i].ReviewedBy.Valid {
			if r, ok := users[docs[i].ReviewedBy.String]; ok {
				s := r.Summary()
				s.Email = ""
				docs[i].Reviewer = &s
			}
		}
	}
	return docs, nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination, ordering []core.DBOrdering) (Page, error) {
	result := Page{Items: []Document{}, Page: page.Page, Limit: page.Limit}
	if filter.Scope.IsEmpty() {
		return result, nil
	}
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}

	docs, total, err := svc.repo.QueryDocuments(ctx, filter, page, ordering)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying documents")
	}
	result.Total = total
	result.Pages = page.Pages(total)
	if len(docs) == 0 {
		return result, nil
	}
	if result.Items, err = svc.enrich(ctx, docs...); err != nil {
		return Page{}, err
	}
	return result, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Document, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	docs, err := svc.enrich(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	return docs[0], nil
}

// Create records a document whose file has already been stored as blob.
func (svc *Service) Create(ctx context.Context, owner user.User, nd NewDocument, filename string, blob core.Blob) (Document, error) {
	now := time.Now().UTC()
	doc, err := svc.repo.CreateDocument(ctx, Document{
		OwnerID:          owner.ID,
		Name:             nd.Name,
		PaperName:        nd.PaperName,
		Description:      nd.Description,
		FileURL:          blob.URL,
		OriginalFilename: filename,
		BlobHandle:       blob.Handle,
		Status:           StatusSubmitted,
		UploadedAt:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return Document{}, errors.Wrap(err, "creating document")
	}
	s := owner.Summary()
	doc.Owner = &s
	return doc, nil
}

// Review expects a validated Review (see Review.Validate).
func (svc *Service) Review(ctx context.Context, id string, rv Review, reviewerID string, now time.Time) (Document, error) {
	if _, err := svc.repo.UpdateReview(ctx, id, ReviewRecord{
		Feedback:   rv.Feedback,
		Status:     rv.Status,
		ReviewedAt: now.UTC(),
		ReviewedBy: reviewerID,
	}); err != nil {
		return Document{}, err
	}
	return svc.Get(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDocument(ctx, id)
}

// OwnerBlobs returns the blob handles of every document of an owner.
func (svc *Service) OwnerBlobs(ctx context.Context, ownerID string) ([]string, error) {
	return svc.repo.QueryOwnerBlobs(ctx, ownerID)
}

// Stats aggregates all documents; by month covers the six months before now.
func (svc *Service) Stats(ctx context.Context, now time.Time) (Stats, error) {
	byStatus, err := svc.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting documents by status")
	}
	withFeedback, err := svc.repo.CountWithFeedback(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting documents with feedback")
	}
	byMonth, err := svc.repo.CountByMonth(ctx, now.UTC().AddDate(0, -statsMonths, 0))
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting documents by month")
	}

	st := Stats{
		DocumentsWithFeedback: withFeedback,
		ByStatus:              make([]StatusCount, 0, len(byStatus)),
		ByMonth:               byMonth,
	}
	for status, count := range byStatus {
		st.TotalDocuments += count
		st.ByStatus = append(st.ByStatus, StatusCount{Status: status, Count: count})
	}
	sort.Slice(st.ByStatus, func(i, j int) bool { return st.ByStatus[i].Status < st.ByStatus[j].Status })
	st.DocumentsPendingFeedback = st.TotalDocuments - withFeedback
	if st.ByMonth == nil {
		st.ByMonth = []MonthCount{}
	}
	return st, nil
}
