// Package logs reads the daemon log file for the CLI: the last N lines, and
// a follow mode that streams appended lines as they are written.
//
// Offsets always point just past the last complete line so a partially
// written line is delivered once it ends.
package logs
