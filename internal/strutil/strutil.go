// Package strutil provides string utilities for SQL naming and field-path
// normalization used throughout the nopg codebase.
package strutil

import (
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------------
// Field Paths
// -----------------------------------------------------------------------------

// PathSlug normalizes a logical field path into an identifier-safe slug.
// Dots become underscores, the column marker is stripped, and any character
// outside [a-z0-9_] is dropped after lowercasing.
// Examples: "user.address.city" -> "user_address_city", "$created" -> "created"
func PathSlug(path string) string {
	path = strings.TrimPrefix(path, "$")

	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch {
		case r == '.' || r == '_':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FieldAlias returns the result-column alias for a logical field key.
// Top-level columns keep their name; JSON paths use the path slug.
// Examples: "$id" -> "id", "address.city" -> "address_city"
func FieldAlias(key string) string {
	return PathSlug(key)
}

// -----------------------------------------------------------------------------
// SQL Naming
// -----------------------------------------------------------------------------

// IndexName returns the canonical index name for a table and name parts.
// Example: IndexName("documents", "type", "content_name") -> "idx_documents_type_content_name"
func IndexName(table string, parts ...string) string {
	all := []string{"idx", table}
	all = append(all, parts...)
	return strings.Join(all, "_")
}
