// Package rulegroup selects and applies named rule strings scoped to media
// types and categories.
package rulegroup
