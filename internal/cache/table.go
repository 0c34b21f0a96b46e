// Package cache holds helpers shared by the URL cache backends.
package cache

import (
	"fmt"
	"regexp"
)

// DefaultTable is the table that stores fetch outcomes.
const DefaultTable = "cache"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// TableName validates a configured table name, falling back to DefaultTable.
func TableName(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid cache table name %q", name)
	}
	return name, nil
}
