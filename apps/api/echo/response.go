package echoapi

import (
	"reflect"

	"github.com/labstack/echo/v4"
)

type (
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
		Limit int `json:"limit,omitempty"`
	}

	// Response is the envelope of every API response.
	Response struct {
		Success    bool        `json:"success"`
		Data       interface{} `json:"data,omitempty"`
		Message    string      `json:"message,omitempty"`
		Count      *int        `json:"count,omitempty"`
		Total      *int        `json:"total,omitempty"`
		Pagination *Pagination `json:"pagination,omitempty"`
	}
)

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, Response{Success: true, Data: data})
}

func respondMessage(ctx echo.Context, code int, msg string) error {
	return ctx.JSON(code, Response{Success: true, Message: msg})
}

// respondList adds the number of items to the envelope.
func respondList(ctx echo.Context, code int, items interface{}) error {
	count := reflect.ValueOf(items).Len()
	return ctx.JSON(code, Response{Success: true, Data: items, Count: &count})
}

func respondPage(ctx echo.Context, code int, items interface{}, total int, pg Pagination) error {
	count := reflect.ValueOf(items).Len()
	return ctx.JSON(code, Response{Success: true, Data: items, Count: &count, Total: &total, Pagination: &pg})
}
