// Package requirement contains the core domain types of a requirements file.
//
// It parses newline-delimited package lists, extracts the distribution name
// used for registry lookups and normalizes names so that "Foo_Bar" and
// "foo-bar" refer to the same package.
package requirement
