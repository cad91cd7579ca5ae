// Package services defines shared utilities consumed by the engine, daemon,
// and CLI.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs and rule group names for logging.
//   - Structured error markers plus the Wrap helper, and HTTPStatus which maps
//     those markers to API responses.
//
// The configuration and evaluation markers are shared with the rules package so
// a rule compilation failure is classified the same way wherever it surfaces.
package services
