package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/paperdesk/core"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        core.Pagination
	}{
		{name: "defaults", want: core.Pagination{Page: 1, Limit: core.DefaultPageSize}},
		{name: "negative", page: -3, limit: -1, want: core.Pagination{Page: 1, Limit: core.DefaultPageSize}},
		{name: "limit capped", page: 2, limit: 500, want: core.Pagination{Page: 2, Limit: core.MaxPageSize}},
		{name: "huge page", page: 1_000_000_000_000_000_000, limit: 10, want: core.Pagination{Page: core.MaxPage, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.NewPagination(tt.page, tt.limit))
		})
	}
}

func TestPagination_Window(t *testing.T) {
	tests := []struct {
		name       string
		page       core.Pagination
		n          int
		start, end int
	}{
		{name: "first page", page: core.NewPagination(1, 10), n: 25, start: 0, end: 10},
		{name: "last page", page: core.NewPagination(3, 10), n: 25, start: 20, end: 25},
		{name: "past the end", page: core.NewPagination(4, 10), n: 25, start: 25, end: 25},
		{name: "empty", page: core.NewPagination(1, 10), n: 0, start: 0, end: 0},
		{name: "huge page", page: core.NewPagination(1_000_000_000_000_000_000, 100), n: 3, start: 3, end: 3},
		{name: "overflowing offset", page: core.Pagination{Page: 1<<62 + 1, Limit: 10}, n: 3, start: 3, end: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.page.Window(tt.n)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	page := core.NewPagination(1_000_000_000_000_000_000, core.MaxPageSize)
	assert.Positive(t, page.Offset())
	assert.Equal(t, 2, core.NewPagination(0, 0).Pages(15))
}
