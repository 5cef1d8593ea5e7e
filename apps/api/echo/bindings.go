package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/paperdesk/core"
)

var (
	orderingParams = []string{"sort", "ordering"}
	pageParam      = "page"
	limitParam     = "limit"
)

// appValidator plugs go-playground/validator into echo.Context#Validate.
type appValidator struct {
	validate *validator.Validate
}

func (v *appValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func validatorOf(ctx echo.Context) *validator.Validate {
	return ctx.Echo().Validator.(*appValidator).validate
}

// bindOrdering reads the comma separated `sort` (or `ordering`) param.
func bindOrdering(ctx echo.Context) string {
	for _, param := range orderingParams {
		if val := ctx.QueryParam(param); val != "" {
			return val
		}
	}
	return ""
}

// bindPagination falls back to the defaults on missing or malformed values.
func bindPagination(ctx echo.Context) core.Pagination {
	page, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	limit, _ := strconv.Atoi(ctx.QueryParam(limitParam))
	return core.NewPagination(page, limit)
}
