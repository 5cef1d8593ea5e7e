package document

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
)

type Status string

// A document starts submitted; a review moves it to reviewed or revised, and later reviews may
// switch between those two.
const (
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusRevised   Status = "revised"
)

var Statuses = []Status{StatusSubmitted, StatusReviewed, StatusRevised}

func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusReviewed, StatusRevised:
		return true
	}
	return false
}

// IsReviewOutcome reports whether a review may set the status to s.
func (s Status) IsReviewOutcome() bool {
	return s == StatusReviewed || s == StatusRevised
}

type Document struct {
	ID               string      `json:"id"`
	OwnerID          string      `json:"user_id"`
	Name             string      `json:"name"`
	PaperName        string      `json:"paper_name"`
	Description      string      `json:"description"`
	FileURL          string      `json:"document_submission"`
	OriginalFilename string      `json:"original_filename"`
	BlobHandle       string      `json:"-"`
	Status           Status      `json:"status"`
	Feedback         null.String `json:"feedback"`
	UploadedAt       time.Time   `json:"uploaded_at"` // UTC
	ReviewedAt       null.Time   `json:"reviewed_at"` // UTC
	ReviewedBy       null.String `json:"reviewed_by"`
	CreatedAt        time.Time   `json:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at"` // UTC

	Owner    *user.Summary `json:"owner,omitempty"`
	Reviewer *user.Summary `json:"reviewer,omitempty"`
}

// NewDocument holds the metadata sent along with an upload.
type NewDocument struct {
	Name        string `json:"name" form:"name" validate:"required,max=50"`
	PaperName   string `json:"paper_name" form:"paper_name" validate:"required,max=200"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.PaperName = core.CleanString(nd.PaperName)
	nd.Description = core.CleanString(nd.Description)
	return validate.Struct(nd)
}

// Review is a teacher's feedback on a document.
type Review struct {
	Feedback string `json:"feedback" validate:"required,max=5000"`
	Status   Status `json:"status" validate:"required,oneof=reviewed revised"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Feedback = core.CleanString(r.Feedback)
	r.Status = Status(core.CleanString(string(r.Status), true /* lower */))
	return validate.Struct(r)
}

// ReviewRecord is what a review persists.
type ReviewRecord struct {
	Feedback   string
	Status     Status
	ReviewedAt time.Time
	ReviewedBy string
}

// QueryFilter applies AND operation on its fields.
type QueryFilter struct {
	Scope  policy.Scope
	Status Status
}

type ListParams struct {
	Owner    string `query:"user"`
	Status   string `query:"status"`
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
	Sort     string `query:"sort"`
	Ordering string `query:"ordering"`
}

type Page struct {
	Items []Document
	Total int
	Page  int
	Limit int
	Pages int
}

type (
	StatusCount struct {
		Status Status `json:"_id"`
		Count  int    `json:"count"`
	}

	Month struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}

	MonthCount struct {
		Month Month `json:"_id"`
		Count int   `json:"count"`
	}

	Stats struct {
		TotalDocuments           int           `json:"total_documents"`
		DocumentsWithFeedback    int           `json:"documents_with_feedback"`
		DocumentsPendingFeedback int           `json:"documents_pending_feedback"`
		ByStatus                 []StatusCount `json:"by_status"`
		ByMonth                  []MonthCount  `json:"by_month"`
	}
)
