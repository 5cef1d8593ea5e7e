package document

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

// FileField is the multipart field carrying the uploaded file.
const FileField = "document_submission"

var (
	errNoFile      = errors.New("Please upload a file")
	errInvalidType = errors.New("Only PDF, DOC, DOCX and TXT files are allowed")

	// allowed extensions and the content types they may be sniffed as
	allowedTypes = map[string][]string{
		".pdf":  {"application/pdf"},
		".doc":  {"application/msword", "application/x-ole-storage"},
		".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
		".txt":  {"text/plain"},
	}
)

// Upload is a file received for a new document.
type Upload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// Inspect enforces the presence, size and type constraints and returns the content type to store the
// file with. Content is rewound to its start.
func (u *Upload) Inspect(maxSize int64) (string, error) {
	if u == nil || u.Content == nil || u.Filename == "" {
		return "", core.NewValidationError(errNoFile, core.FieldError{Field: FileField, Error: errNoFile.Error()})
	}
	if maxSize > 0 && u.Size > maxSize {
		err := errors.New("File too large. Maximum size is " + formatMB(maxSize) + "MB")
		return "", core.NewValidationError(err, core.FieldError{Field: FileField, Error: err.Error()})
	}

	ext := strings.ToLower(filepath.Ext(u.Filename))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return "", core.NewValidationError(errInvalidType, core.FieldError{Field: FileField, Error: errInvalidType.Error()})
	}

	mtype, err := mimetype.DetectReader(u.Content)
	if err != nil {
		return "", errors.Wrap(err, "detecting content type")
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewinding upload")
	}
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		return "", core.NewValidationError(errInvalidType, core.FieldError{Field: FileField, Error: errInvalidType.Error()})
	}
	return allowed[0], nil
}

func formatMB(size int64) string {
	return strconv.FormatFloat(float64(size)/1024/1024, 'f', -1, 64)
}
