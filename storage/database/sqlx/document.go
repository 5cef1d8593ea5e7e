package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/document"
)

const documentColumns = "id, user_id, name, paper_name, description, file_url, original_filename, blob_handle, " +
	"status, feedback, uploaded_at, reviewed_at, reviewed_by, created_at, updated_at"

var documentSortColumns = map[string]string{
	"uploaded_at": "uploaded_at",
	"reviewed_at": "reviewed_at",
	"paper_name":  "paper_name",
	"name":        "name",
	"status":      "status",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

type documentRow struct {
	ID               string      `db:"id"`
	OwnerID          string      `db:"user_id"`
	Name             string      `db:"name"`
	PaperName        string      `db:"paper_name"`
	Description      string      `db:"description"`
	FileURL          string      `db:"file_url"`
	OriginalFilename string      `db:"original_filename"`
	BlobHandle       string      `db:"blob_handle"`
	Status           string      `db:"status"`
	Feedback         null.String `db:"feedback"`
	UploadedAt       time.Time   `db:"uploaded_at"`
	ReviewedAt       null.Time   `db:"reviewed_at"`
	ReviewedBy       null.String `db:"reviewed_by"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

func (r documentRow) document() document.Document {
	doc := document.Document{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Name:             r.Name,
		PaperName:        r.PaperName,
		Description:      r.Description,
		FileURL:          r.FileURL,
		OriginalFilename: r.OriginalFilename,
		BlobHandle:       r.BlobHandle,
		Status:           document.Status(r.Status),
		Feedback:         r.Feedback,
		UploadedAt:       r.UploadedAt.UTC(),
		ReviewedAt:       r.ReviewedAt,
		ReviewedBy:       r.ReviewedBy,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if doc.ReviewedAt.Valid {
		doc.ReviewedAt.Time = doc.ReviewedAt.Time.UTC()
	}
	return doc
}

type documentRepository struct {
	exec core.DBExecutor
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(exec core.DBExecutor) *documentRepository {
	return &documentRepository{exec: exec}
}

func (repo documentRepository) CreateDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	doc.ID = uuid.New().String()
	q := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := repo.exec.ExecContext(ctx, q,
		doc.ID, doc.OwnerID, doc.Name, doc.PaperName, doc.Description, doc.FileURL, doc.OriginalFilename, doc.BlobHandle,
		string(doc.Status), doc.Feedback, doc.UploadedAt.UTC(), doc.ReviewedAt, doc.ReviewedBy,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
	)
	if err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	doc.Owner, doc.Reviewer = nil, nil
	return doc, nil
}

func (repo documentRepository) GetDocument(ctx context.Context, id string) (document.Document, error) {
	if !validID(id) {
		return document.Document{}, document.ErrNotFound
	}
	var row documentRow
	if err := repo.exec.GetContext(ctx, &row, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "getting document")
	}
	return row.document(), nil
}

func (repo documentRepository) QueryDocuments(
	ctx context.Context,
	filter document.QueryFilter,
	page core.Pagination,
	ordering []core.DBOrdering,
) ([]document.Document, int, error) {
	b := psql.Select().From("documents")
	if !filter.Scope.All {
		owners := validIDs(filter.Scope.OwnerIDs)
		if len(owners) == 0 {
			return []document.Document{}, 0, nil
		}
		b = b.Where("user_id = ANY(?::uuid[])", pq.Array(owners))
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}

	var total int
	if err := getBuilt(ctx, repo.exec, &total, b.Columns("COUNT(*)")); err != nil {
		return nil, 0, errors.Wrap(err, "counting documents")
	}
	if total == 0 || page.Offset() >= total {
		return []document.Document{}, total, nil
	}

	b = b.Columns(documentColumns).OrderBy(orderBy(ordering, documentSortColumns, "uploaded_at DESC")...).OrderBy("id")
	var rows []documentRow
	if err := selectBuilt(ctx, repo.exec, &rows, paginate(b, page)); err != nil {
		return nil, 0, errors.Wrap(err, "querying documents")
	}
	docs := make([]document.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, total, nil
}

func (repo documentRepository) UpdateReview(ctx context.Context, id string, rec document.ReviewRecord) (document.Document, error) {
	if !validID(id) {
		return document.Document{}, document.ErrNotFound
	}
	q := `UPDATE documents SET feedback = $2, status = $3, reviewed_at = $4, reviewed_by = $5, updated_at = $4
		WHERE id = $1 RETURNING ` + documentColumns
	var row documentRow
	err := repo.exec.GetContext(ctx, &row, q,
		id, rec.Feedback, string(rec.Status), rec.ReviewedAt.UTC(), null.NewString(rec.ReviewedBy, validID(rec.ReviewedBy)),
	)
	if err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "updating document review")
	}
	return row.document(), nil
}

func (repo documentRepository) DeleteDocument(ctx context.Context, id string) error {
	if !validID(id) {
		return document.ErrNotFound
	}
	n, err := affected(repo.exec.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id))
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (repo documentRepository) CountByStatus(ctx context.Context) (map[document.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := repo.exec.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM documents GROUP BY status`); err != nil {
		return nil, errors.Wrap(err, "counting documents by status")
	}
	counts := make(map[document.Status]int, len(rows))
	for _, r := range rows {
		counts[document.Status(r.Status)] = r.Count
	}
	return counts, nil
}

func (repo documentRepository) CountWithFeedback(ctx context.Context) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM documents WHERE feedback IS NOT NULL AND feedback <> ''`
	if err := repo.exec.GetContext(ctx, &count, q); err != nil {
		return 0, errors.Wrap(err, "counting documents with feedback")
	}
	return count, nil
}

func (repo documentRepository) CountByMonth(ctx context.Context, since time.Time) ([]document.MonthCount, error) {
	var rows []struct {
		Year  int `db:"year"`
		Month int `db:"month"`
		Count int `db:"count"`
	}
	q := `SELECT EXTRACT(YEAR FROM uploaded_at AT TIME ZONE 'UTC')::int AS year,
			EXTRACT(MONTH FROM uploaded_at AT TIME ZONE 'UTC')::int AS month,
			COUNT(*) AS count
		FROM documents WHERE uploaded_at >= $1
		GROUP BY year, month ORDER BY year, month`
	if err := repo.exec.SelectContext(ctx, &rows, q, since.UTC()); err != nil {
		return nil, errors.Wrap(err, "counting documents by month")
	}
	months := make([]document.MonthCount, 0, len(rows))
	for _, r := range rows {
		months = append(months, document.MonthCount{Month: document.Month{Year: r.Year, Month: r.Month}, Count: r.Count})
	}
	return months, nil
}

func (repo documentRepository) QueryOwnerBlobs(ctx context.Context, ownerID string) ([]string, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	var handles []string
	q := `SELECT blob_handle FROM documents WHERE user_id = $1 AND blob_handle <> ''`
	if err := repo.exec.SelectContext(ctx, &handles, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying document files")
	}
	return handles, nil
}
