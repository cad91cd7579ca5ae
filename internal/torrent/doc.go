// Package torrent models candidate release resources as they arrive from site
// searches, RSS refreshes, and subscription checks.
//
// A Resource carries the raw listing data (title, subtitle, size, swarm
// counts, promotion factors) plus an Attributes block of optional booleans
// derived by recognition. Rule tokens never address Resource fields by name;
// they resolve through the fixed accessor table in tokens.go, so an
// unrecognised token is a lookup failure rather than a silent zero value.
package torrent
