// Package pagination defines the single pagination contract shared by every
// list operation in the control plane: {page, limit} in, {items, total,
// page, per_page} out.
//
// Page sizes are always bounded (MaxLimit), totals are exact counts as of
// the query, and page numbers are 1-based. Normalize is applied by services
// before any store call, so storage implementations can rely on sane bounds.
//
// # Usage
//
//	page := pagination.Page{Page: 2, Limit: 25}.Normalize()
//
//	window, total := pagination.Slice(filtered, page)
//	result := pagination.NewResult(window, total, page)
package pagination
