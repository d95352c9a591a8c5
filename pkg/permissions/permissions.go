package permissions

import (
	"slices"
	"sort"
	"strings"
)

// Separator is used to separate multiple permission tokens in a string.
const Separator = " "

// Parse converts a space-separated string of permission tokens into a slice.
//
// Trims spaces and removes empty entries. Returns nil for empty input.
//
// Example:
//
//	perms := permissions.Parse("read write manage_features")
//	// Returns: []string{"read", "write", "manage_features"}
func Parse(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, Separator)
	perms := make([]string, 0, len(parts))
	for i := range parts {
		if parts[i] = strings.TrimSpace(parts[i]); parts[i] != "" {
			perms = append(perms, parts[i])
		}
	}

	return perms
}

// Join converts a slice of permission tokens back to a space-separated string.
func Join(perms []string) string {
	if len(perms) == 0 {
		return ""
	}
	return strings.Join(perms, Separator)
}

// Has checks if perms contain a specific permission token.
// Matching is exact: tokens are opaque, there is no wildcard or
// hierarchy semantics in the permission vocabulary.
func Has(perms []string, perm string) bool {
	return slices.Contains(perms, perm)
}

// HasAll checks if perms contain every one of the required tokens.
// An empty required slice is always satisfied.
func HasAll(perms, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(perms) == 0 {
		return false
	}

	for _, req := range required {
		if !slices.Contains(perms, req) {
			return false
		}
	}
	return true
}

// HasAny checks if perms contain at least one of the required tokens.
// An empty required slice is always satisfied.
func HasAny(perms, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(perms) == 0 {
		return false
	}

	for _, req := range required {
		if slices.Contains(perms, req) {
			return true
		}
	}
	return false
}

// Equal checks if two permission sets are identical regardless of order
// and duplicates.
func Equal(a, b []string) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Unknown returns the tokens in perms that are not part of the given
// vocabulary, preserving their original order. A nil result means the
// whole set is valid.
func Unknown(perms, vocabulary []string) []string {
	var unknown []string
	for _, p := range perms {
		if !slices.Contains(vocabulary, p) {
			unknown = append(unknown, p)
		}
	}
	return unknown
}

// Valid reports whether every token in perms belongs to the vocabulary.
// Empty perms are valid, but an empty vocabulary rejects any non-empty set.
func Valid(perms, vocabulary []string) bool {
	if len(perms) == 0 {
		return true
	}
	if len(vocabulary) == 0 {
		return false
	}
	return Unknown(perms, vocabulary) == nil
}

// Normalize removes duplicate tokens and sorts them alphabetically,
// producing a canonical form for comparison and storage.
// Returns nil for empty input.
func Normalize(perms []string) []string {
	if len(perms) == 0 {
		return nil
	}

	unique := make(map[string]struct{}, len(perms))
	for i := range perms {
		unique[perms[i]] = struct{}{}
	}

	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	sort.Strings(normalized)

	return normalized
}
