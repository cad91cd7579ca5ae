// Package rules parses and evaluates layered priority rules for candidate
// releases.
//
// A rule string such as
//
//	!BLU & 4K & CN > !BLU & 1080P & CN > !BLU & 4K > !BLU & 1080P
//
// is split on ">" into layers, leftmost first. Each layer is a boolean
// expression over tokens with "!" binding tighter than "&", and "&" tighter
// than "|". Parentheses may group sub-expressions inside a layer; every layer
// is compiled to disjunctive normal form so evaluation is a flat scan.
//
// Parsing happens once per configuration change and yields an immutable
// RuleSet. Evaluation is a pure function of (RuleSet, Resource) and is safe
// for concurrent use. A reload builds a new RuleSet; nothing is mutated in
// place.
//
// A resource that matches none of the layers is not selected. An empty rule
// string disables prioritisation entirely and every resource passes through
// in input order.
package rules
