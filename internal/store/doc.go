// Package store persists rule groups and custom rules in SQLite.
//
// The Store owns the database connection, applies WAL and busy-timeout
// pragmas, and creates the schema on first use. Schema changes bump the
// version in schema.go; a database stamped with another version is refused
// rather than migrated.
//
// Rule groups keep their insertion order because the first applicable group
// decides a resource's rank.
package store
