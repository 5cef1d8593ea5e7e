package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/document"
)

type documentRepository struct {
	db *DB
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *DB) *documentRepository {
	return &documentRepository{db: db}
}

func documentColumn(doc document.Document) func(string) (interface{}, bool) {
	return func(field string) (interface{}, bool) {
		switch field {
		case "uploaded_at":
			return doc.UploadedAt, true
		case "reviewed_at":
			return doc.ReviewedAt.Time, true
		case "paper_name":
			return doc.PaperName, true
		case "name":
			return doc.Name, true
		case "status":
			return string(doc.Status), true
		case "created_at":
			return doc.CreatedAt, true
		case "updated_at":
			return doc.UpdatedAt, true
		}
		return nil, false
	}
}

func (repo *documentRepository) CreateDocument(_ context.Context, doc document.Document) (document.Document, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	doc.ID = uuid.New().String()
	doc.Owner, doc.Reviewer = nil, nil
	repo.db.documents[doc.ID] = &documentRow{seq: repo.db.nextSeq(), doc: doc}
	return doc, nil
}

func (repo *documentRepository) GetDocument(_ context.Context, id string) (document.Document, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.documents[id]; ok {
		return row.doc, nil
	}
	return document.Document{}, document.ErrNotFound
}

func (repo *documentRepository) QueryDocuments(_ context.Context, filter document.QueryFilter, page core.Pagination, ordering []core.DBOrdering) ([]document.Document, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*documentRow, 0)
	for _, row := range repo.db.documents {
		if !filter.Scope.Includes(row.doc.OwnerID) {
			continue
		}
		if filter.Status != "" && row.doc.Status != filter.Status {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return orderedLess(ordering, documentColumn(rows[i].doc), documentColumn(rows[j].doc), rows[i].seq, rows[j].seq)
	})

	start, end := page.Window(len(rows))
	docs := make([]document.Document, 0, end-start)
	for _, row := range rows[start:end] {
		docs = append(docs, row.doc)
	}
	return docs, len(rows), nil
}

func (repo *documentRepository) UpdateReview(_ context.Context, id string, rec document.ReviewRecord) (document.Document, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.documents[id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	row.doc.Feedback = null.StringFrom(rec.Feedback)
	row.doc.Status = rec.Status
	row.doc.ReviewedAt = null.TimeFrom(rec.ReviewedAt)
	row.doc.ReviewedBy = null.StringFrom(rec.ReviewedBy)
	row.doc.UpdatedAt = rec.ReviewedAt
	return row.doc, nil
}

func (repo *documentRepository) DeleteDocument(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.documents[id]; !ok {
		return document.ErrNotFound
	}
	delete(repo.db.documents, id)
	return nil
}

func (repo *documentRepository) CountByStatus(_ context.Context) (map[document.Status]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[document.Status]int)
	for _, row := range repo.db.documents {
		counts[row.doc.Status]++
	}
	return counts, nil
}

func (repo *documentRepository) CountWithFeedback(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, row := range repo.db.documents {
		if row.doc.Feedback.Valid && row.doc.Feedback.String != "" {
			count++
		}
	}
	return count, nil
}

func (repo *documentRepository) CountByMonth(_ context.Context, since time.Time) ([]document.MonthCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[document.Month]int)
	for _, row := range repo.db.documents {
		uploaded := row.doc.UploadedAt.UTC()
		if uploaded.Before(since) {
			continue
		}
		counts[document.Month{Year: uploaded.Year(), Month: int(uploaded.Month())}]++
	}

	months := make([]document.MonthCount, 0, len(counts))
	for m, c := range counts {
		months = append(months, document.MonthCount{Month: m, Count: c})
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Month.Year != months[j].Month.Year {
			return months[i].Month.Year < months[j].Month.Year
		}
		return months[i].Month.Month < months[j].Month.Month
	})
	return months, nil
}

func (repo *documentRepository) QueryOwnerBlobs(_ context.Context, ownerID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var handles []string
	for _, row := range repo.db.documents {
		if row.doc.OwnerID == ownerID && row.doc.BlobHandle != "" {
			handles = append(handles, row.doc.BlobHandle)
		}
	}
	return handles, nil
}
