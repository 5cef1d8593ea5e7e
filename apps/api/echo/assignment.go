package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/workflow"
)

type assignmentApi struct {
	wf *workflow.Orchestrator
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, wf *workflow.Orchestrator) {
	api := assignmentApi{wf: wf}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.DELETE("/:id", api.destroy)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.wf.ListAssignments(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return respondList(ctx, http.StatusOK, assignments)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	a, err := api.wf.AssignTeacher(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return respond(ctx, http.StatusCreated, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.wf.RemoveAssignment(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing assignment")
	}
	return respondMessage(ctx, http.StatusOK, "Assignment removed successfully")
}
