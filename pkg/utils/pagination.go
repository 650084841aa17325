package utils

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request read from the page and limit query
// parameters.
type Page struct {
	Number int
	Limit  int
}

// ParsePage reads ?page and ?limit. Missing or unparsable values fall back to
// the first page of DefaultPageSize; limit is capped at MaxPageSize.
func ParsePage(c *fiber.Ctx) Page {
	p := Page{
		Number: c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", DefaultPageSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Scope limits a query to the page, for use with (*gorm.DB).Scopes.
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

func (p Page) TotalPages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
