package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
	"github.com/trezcool/paperdesk/core/workflow"
)

type userApi struct {
	policy policy.Policy
	svc    *user.Service
	wf     *workflow.Orchestrator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, pol policy.Policy, svc *user.Service, wf *workflow.Orchestrator) {
	api := userApi{policy: pol, svc: svc, wf: wf}

	ug := g.Group("/users", jwt)
	ug.GET("", api.query)
	ug.GET("/stats", api.stats)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
	ug.DELETE("/:id", api.destroy)
}

// authorize checks that the context user may perform action on the user identified by targetID.
func (api *userApi) authorize(ctx echo.Context, action policy.Action, targetID string) (user.User, error) {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, err
	}
	if err := api.policy.Authorize(policy.ActorOf(ctxUsr), action, policy.Resource{OwnerID: targetID}).Err(); err != nil {
		return user.User{}, err
	}
	return ctxUsr, nil
}

func (api *userApi) query(ctx echo.Context) error {
	if _, err := api.authorize(ctx, policy.UserList, ""); err != nil {
		return err
	}

	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	users, err := api.svc.Query(ctx.Request().Context(), filter, core.ParseOrdering(bindOrdering(ctx)))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return respondList(ctx, http.StatusOK, users)
}

func (api *userApi) stats(ctx echo.Context) error {
	if _, err := api.authorize(ctx, policy.UserStats, ""); err != nil {
		return err
	}
	st, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing user stats")
	}
	return respond(ctx, http.StatusOK, st)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	if _, err := api.authorize(ctx, policy.UserRead, ctx.Param("id")); err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	ctxUsr, err := api.authorize(ctx, policy.UserUpdate, ctx.Param("id"))
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(ctx.Request().Context(), usr, validatorOf(ctx), api.svc); err != nil {
		return err
	}
	// only admins may change roles
	if data.Role != "" && data.Role != usr.Role {
		if _, err := api.authorize(ctx, policy.UserUpdateRole, usr.ID); err != nil {
			return err
		}
		if usr.ID == ctxUsr.ID {
			return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "You cannot change your own role"})
		}
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return respond(ctx, http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.wf.DeleteUser(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return respondMessage(ctx, http.StatusOK, "User deleted successfully")
}
