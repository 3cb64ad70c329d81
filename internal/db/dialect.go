// Package db wires the relational store behind gorp, grounded on the
// teacher's own sa/database.go + sa/type-converter.go: a dialect map
// keyed by driver name, and a TypeConverter that JSON-marshals the
// handful of struct/slice/map fields gorp can't bind directly.
package db

import (
	"fmt"
	"strings"

	gorp "github.com/go-gorp/gorp/v3"
)

// DialectName selects between the two relational backends spec.md §9
// calls relational-A and relational-B.
type DialectName string

const (
	DialectA DialectName = "A" // MySQL-compatible: lowercase identifiers, native boolean, LIMIT/OFFSET
	DialectB DialectName = "B" // Postgres-compatible: uppercase identifiers, numeric boolean, OFFSET/FETCH
)

// dialectMap mirrors the teacher's dialectMap, mapping a driver name to
// the gorp.Dialect that knows its quoting, auto-increment and
// placeholder conventions.
var dialectMap = map[string]gorp.Dialect{
	"mysql":    gorp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8MB4"},
	"postgres": gorp.PostgresDialect{},
}

// driverForDialectName resolves a configured db-dialect selector to the
// database/sql driver name that implements it.
func driverForDialectName(name DialectName) (string, error) {
	switch name {
	case DialectA, "":
		return "mysql", nil
	case DialectB:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unknown db-dialect %q", name)
	}
}

// Quote renders identifier per dialectName's casing convention, used
// only at the handful of call sites that build raw SQL fragments gorp
// itself doesn't generate (the search/filter queries in
// internal/repository).
func Quote(name DialectName, identifier string) string {
	if name == DialectB {
		return strings.ToUpper(identifier)
	}
	return strings.ToLower(identifier)
}

// Paginate appends name's pagination clause to query.
func Paginate(name DialectName, query string, limit, offset int) string {
	if name == DialectB {
		return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", query, offset, limit)
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
}
