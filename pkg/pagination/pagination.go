package pagination

import "strconv"

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = DefaultPage
	}
	if size <= 0 || size > MaxSize {
		size = DefaultSize
	}
	return (page - 1) * size, size
}

type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPage[T any](data []T, page, size int, total int64) Page[T] {
	_, limit := Calculate(page, size)
	if page < 1 {
		page = DefaultPage
	}
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Page[T]{Data: data, Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
