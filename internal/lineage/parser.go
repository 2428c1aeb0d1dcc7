// Package lineage tracks the data assets an AI agent touches during a
// session and manages the corresponding access edges in the Bigeye lineage
// graph.
package lineage

import (
	"fmt"
	"strings"
	"unicode"
)

// ParsedName holds the components of a dot-qualified asset name. Warehouse
// and Column are empty when the name does not carry them.
type ParsedName struct {
	Warehouse string
	Database  string
	Schema    string
	Table     string
	Column    string
}

// ParseError reports a qualified name that does not match any supported
// format. It carries the original input for diagnostics.
type ParseError struct {
	Name string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid qualified name format: %q", e.Name)
}

// ParseQualifiedName parses a dot-qualified asset name. Supported formats:
//
//	database.schema.table
//	database.schema.table.column
//	warehouse.database.schema.table
//	warehouse.database.schema.table.column
//
// Four-segment names are ambiguous. The last segment is treated as a column
// when it is lower-case or contains an underscore, and as a table under a
// warehouse prefix otherwise. The heuristic misclassifies all-caps column
// names without underscores; correct disambiguation would need catalog
// context the parser does not have, so the behavior is kept as is.
func ParseQualifiedName(name string) (ParsedName, error) {
	parts := strings.Split(name, ".")

	switch len(parts) {
	case 3:
		return ParsedName{
			Database: parts[0],
			Schema:   parts[1],
			Table:    parts[2],
		}, nil
	case 4:
		if looksLikeColumn(parts[3]) {
			return ParsedName{
				Database: parts[0],
				Schema:   parts[1],
				Table:    parts[2],
				Column:   parts[3],
			}, nil
		}
		return ParsedName{
			Warehouse: parts[0],
			Database:  parts[1],
			Schema:    parts[2],
			Table:     parts[3],
		}, nil
	case 5:
		return ParsedName{
			Warehouse: parts[0],
			Database:  parts[1],
			Schema:    parts[2],
			Table:     parts[3],
			Column:    parts[4],
		}, nil
	default:
		return ParsedName{}, &ParseError{Name: name}
	}
}

func looksLikeColumn(segment string) bool {
	return strings.Contains(segment, "_") || isLowerWord(segment)
}

// isLowerWord reports whether the segment contains at least one cased letter
// and no upper-case letters.
func isLowerWord(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsLower(r) {
			hasCased = true
		}
	}
	return hasCased
}
