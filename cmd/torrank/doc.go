// Package main hosts the torrank CLI entrypoint and command graph.
//
// The Cobra command tree checks priority rules, ranks candidate resources
// from files or ad-hoc titles, maintains rule groups and custom rules in the
// local store, and runs the HTTP daemon. Configuration resolution and table
// rendering live here so subcommands stay small; ranking itself belongs to
// internal/engine.
package main
