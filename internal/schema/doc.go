// Package schema defines the declarative naming rules that drive
// filename parsing.
//
// An Index holds the entity table (key, value kind, canonical order),
// the recognized datatype directory names, and the suffix/extension
// acceptance rules. The built-in table covers the standard BIDS
// entities; a YAML file can replace any section for datasets that use
// custom naming conventions.
//
// An Index is immutable once built and is shared read-only across all
// indexing workers.
package schema
