package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/policy"
)

type notificationApi struct {
	svc *notification.Service
}

type UnreadCount struct {
	Count int `json:"count"`
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.PUT("/read-all", api.markAllRead)
	ng.PUT("/:id/read", api.markRead)
	ng.DELETE("/:id", api.destroy)
}

func (api *notificationApi) actor(ctx echo.Context) (policy.Actor, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return policy.Actor{}, err
	}
	actor := policy.ActorOf(usr)
	return actor, policy.Authorize(actor, policy.NotificationList, policy.Resource{OwnerID: usr.ID}).Err()
}

func (api *notificationApi) query(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	result, err := api.svc.List(ctx.Request().Context(), actor.ID, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return respondPage(ctx, http.StatusOK, result.Items, result.Total, Pagination{
		Page:  result.Page,
		Pages: result.Pages,
		Limit: result.Limit,
	})
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, UnreadCount{Count: count})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return respond(ctx, http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.MarkAllRead(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, Response{Success: true, Message: "All notifications marked as read", Count: &count})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return respondMessage(ctx, http.StatusOK, "Notification deleted successfully")
}
