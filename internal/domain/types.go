package domain

// Pagination carries paging params and totals.
type Pagination struct {
	Page       int `json:"currentPage"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// NewPagination clamps user supplied paging values.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset is the number of rows to skip for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// WithTotal fills Total and TotalPages.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = (total + p.Limit - 1) / p.Limit
	}
	return p
}

// Actor is the authenticated caller resolved by the auth middleware.
type Actor struct {
	ID string `json:"id"`
}

func (a Actor) Valid() bool { return a.ID != "" }
