package pagination

// Default and maximum page sizes applied by Normalize. Every list operation
// in the control plane goes through Normalize, so no query can request an
// unbounded result set.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is the caller side of the pagination contract: a 1-based page number
// and a requested page size.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the request into valid bounds: page >= 1 and
// 1 <= limit <= MaxLimit, with DefaultLimit substituted for a zero or
// negative limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of items preceding the requested page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Result is the response side of the pagination contract. Total is an exact
// count of all items matching the query at the time it ran, not an estimate.
type Result[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// NewResult assembles a Result from a page of items and the exact total.
// The page request is normalized so the echoed Page/PerPage values always
// reflect what was actually applied.
func NewResult[T any](items []T, total int, page Page) Result[T] {
	page = page.Normalize()
	return Result[T]{
		Items:   items,
		Total:   total,
		Page:    page.Page,
		PerPage: page.Limit,
	}
}

// Slice applies the page bounds to an already-filtered, already-ordered
// slice and returns the window plus the exact total. Used by in-memory
// stores; database-backed stores push the same bounds into LIMIT/OFFSET.
func Slice[T any](items []T, page Page) ([]T, int) {
	page = page.Normalize()
	total := len(items)

	start := page.Offset()
	if start >= total {
		return []T{}, total
	}

	end := start + page.Limit
	if end > total {
		end = total
	}

	window := make([]T, end-start)
	copy(window, items[start:end])
	return window, total
}
