package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/workflow"
)

var errSingleFile = errors.New("Only one file may be uploaded")

type documentApi struct {
	wf *workflow.Orchestrator
}

func registerDocumentAPI(g *echo.Group, jwt echo.MiddlewareFunc, wf *workflow.Orchestrator) {
	api := documentApi{wf: wf}

	dg := g.Group("/documents", jwt)
	dg.GET("", api.query)
	dg.POST("", api.create)
	dg.GET("/stats", api.stats)
	dg.GET("/:id", api.retrieve)
	dg.PUT("/:id", api.review)
	dg.DELETE("/:id", api.destroy)
}

func (api *documentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	status, err := document.ParseStatusFilter(ctx.QueryParam("status"))
	if err != nil {
		return err
	}
	page := bindPagination(ctx)

	result, err := api.wf.ListDocuments(ctx.Request().Context(), ctxUsr, workflow.ListDocumentsParams{
		Owner:    core.CleanString(ctx.QueryParam("user")),
		Status:   status,
		Page:     page,
		Ordering: document.ParseOrdering(bindOrdering(ctx)),
	})
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	return respondPage(ctx, http.StatusOK, result.Items, result.Total, Pagination{
		Page:  result.Page,
		Pages: result.Pages,
		Limit: result.Limit,
	})
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	doc, err := api.wf.GetDocument(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return respond(ctx, http.StatusOK, doc)
}

// create expects a multipart form with the document fields and a single file.
// The temporary files of the form are always removed once the request is handled.
func (api *documentApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var up *document.Upload
	form, err := ctx.MultipartForm()
	if err == nil {
		defer func() {
			if rmErr := form.RemoveAll(); rmErr != nil {
				ctx.Logger().Warnf("removing multipart files: %v", rmErr)
			}
		}()

		files := form.File[document.FileField]
		if len(files) > 1 {
			return core.NewValidationError(errSingleFile, core.FieldError{Field: document.FileField, Error: errSingleFile.Error()})
		}
		if len(files) == 1 {
			f, err := files[0].Open()
			if err != nil {
				return errors.Wrap(err, "opening uploaded file")
			}
			defer f.Close()
			up = newUpload(files[0], f)
		}
	} else if err != http.ErrNotMultipart && err != http.ErrMissingBoundary {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed multipart form").WithInternal(err)
	}

	data := document.NewDocument{
		Name:        ctx.FormValue("name"),
		PaperName:   ctx.FormValue("paper_name"),
		Description: ctx.FormValue("description"),
	}
	doc, err := api.wf.UploadDocument(ctx.Request().Context(), ctxUsr, data, up)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return respond(ctx, http.StatusCreated, doc)
}

func newUpload(fh *multipart.FileHeader, f multipart.File) *document.Upload {
	return &document.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}
}

func (api *documentApi) review(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data document.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}

	doc, err := api.wf.ReviewDocument(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing document")
	}
	return respond(ctx, http.StatusOK, doc)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.wf.DeleteDocument(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return respondMessage(ctx, http.StatusOK, "Document deleted successfully")
}

func (api *documentApi) stats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	st, err := api.wf.DocumentStats(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "computing document stats")
	}
	return respond(ctx, http.StatusOK, st)
}
