// Package logging builds the slog loggers used by torrank.
//
// Console output is one line per record with ranking fields (rule, layer,
// rank, missing tokens) listed first. JSON output suits log shippers.
// Warnings go through WarnWithContext so each carries an event type, a hint
// and the impact on ranking.
package logging
