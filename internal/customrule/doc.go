// Package customrule compiles user-defined rule tokens.
//
// A custom rule pairs a token ID with include/exclude title patterns, a size
// window, a minimum seeder count, and a publish-age window. Once compiled it
// satisfies rules.Predicate, so rule strings can reference it exactly like a
// built-in token.
package customrule
