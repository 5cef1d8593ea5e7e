package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/assignment"
	"github.com/trezcool/paperdesk/core/document"
	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errMissingToken         = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "Route not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := classify(err, translator)

		if code >= http.StatusInternalServerError {
			var args []interface{}
			args = append(args, errors.Wrap(err, message))
			if usr, uErr := getContextUser(ctx); uErr == nil {
				args = append(args, usr)
			}
			logger.Error(message, args...)

			if ctx.Echo().Debug {
				message = err.Error()
			}
			// shutting down...
			if core.IsShutdown(err) && signalShutdown != nil {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, Response{Success: false, Message: message})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// classify maps an error to its HTTP status and client message.
func classify(err error, translator ut.Translator) (int, string) {
	var forbidden *core.ForbiddenError
	if errors.As(err, &forbidden) {
		return http.StatusForbidden, forbidden.Error()
	}
	var external *core.ExternalError
	if errors.As(err, &external) {
		return http.StatusInternalServerError, "External service failure while " + external.Op
	}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, fmt.Sprint(origErr.Message)
	case validator.ValidationErrors:
		return http.StatusBadRequest, core.ValidationError{Fields: core.TranslateValidationErrors(origErr, translator)}.Error()
	case *core.ValidationError:
		return http.StatusBadRequest, origErr.Error()
	}

	switch errors.Cause(err) {
	case core.ErrForbidden:
		return http.StatusForbidden, core.ErrForbidden.Error()
	case user.ErrNotFound, assignment.ErrNotFound, document.ErrNotFound, notification.ErrNotFound:
		return http.StatusNotFound, errors.Cause(err).Error()
	case assignment.ErrExists, user.ErrEmailExists, user.ErrUsernameExists, user.ErrInvalidRole:
		return http.StatusBadRequest, errors.Cause(err).Error()
	}

	// any other error is a server error
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
