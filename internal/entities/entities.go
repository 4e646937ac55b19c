package entities

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"bids-indexer/internal/schema"
)

// FailureKind classifies why a filename could not be parsed.
type FailureKind string

const (
	// UnrecognizedEntity means a token carried an entity key the schema
	// does not define, or no key at all.
	UnrecognizedEntity FailureKind = "unrecognized_entity"
	// InvalidEntityValue means a recognized entity carried a value that
	// fails its schema rule.
	InvalidEntityValue FailureKind = "invalid_entity_value"
	// InvalidSuffixExtension means the trailing suffix/extension pair is
	// missing or not accepted by the schema.
	InvalidSuffixExtension FailureKind = "invalid_suffix_extension"
)

// ParseError is the typed failure returned for unparseable filenames.
// It is always local to one file and never fatal to a run.
type ParseError struct {
	Kind   FailureKind
	Path   string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s: token %q: %s", e.Path, e.Kind, e.Token, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Reason)
}

// Record holds the parsed entities of one filename. Entities never
// includes the datatype, which is derived from the directory layout and
// kept separate so subset matching can ignore it.
type Record struct {
	Entities  map[string]string
	Suffix    string
	Extension string
	Datatype  string
}

// Get returns an entity value by key.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.Entities[key]
	return v, ok
}

// SubsetOf reports whether every entity of r is present in target with
// an equal value. Datatype and suffix are not part of the comparison.
func (r Record) SubsetOf(target Record) bool {
	for k, v := range r.Entities {
		tv, ok := target.Entities[k]
		if !ok || tv != v {
			return false
		}
	}
	return true
}

// Parser matches file paths against a schema index. It is immutable and
// safe for concurrent use.
type Parser struct {
	ix         *schema.Index
	datatypeRe *regexp.Regexp
}

// NewParser builds a Parser for a schema index.
func NewParser(ix *schema.Index) *Parser {
	pattern := fmt.Sprintf(`(?:^|/)%s-[a-zA-Z0-9]+(?:/ses-[a-zA-Z0-9]+)?/([a-z]+)/`,
		regexp.QuoteMeta(ix.PartitionKey()))
	return &Parser{
		ix:         ix,
		datatypeRe: regexp.MustCompile(pattern),
	}
}

// Schema returns the parser's schema index.
func (p *Parser) Schema() *schema.Index {
	return p.ix
}

// IsSidecar reports whether a path names a JSON sidecar rather than a
// data file. The test is structural and never fails: a plain .json
// extension marks a sidecar unless the path sits inside a datatype
// directory and its suffix is a schema-listed JSON data suffix, the
// coordsystem case. Compound extensions ending in .json are data files.
func (p *Parser) IsSidecar(relPath string) bool {
	name := path.Base(relPath)
	parts := strings.Split(name, "_")
	last := parts[len(parts)-1]

	dot := strings.Index(last, ".")
	if dot < 0 || last[dot:] != ".json" {
		return false
	}
	suffix := last[:dot]

	m := p.datatypeRe.FindStringSubmatch(relPath)
	if m == nil || !p.ix.ValidDatatype(m[1]) {
		// JSON above the datatype level is always a sidecar.
		return true
	}
	return !p.ix.IsJSONDataSuffix(suffix)
}

// Parse extracts the entities, suffix and extension from a relative file
// path. Entity order in the filename does not matter; output ordering is
// always taken from the schema's canonical order by downstream writers.
// All failures are reported as a *ParseError, never a panic.
func (p *Parser) Parse(relPath string) (Record, error) {
	rec := Record{Entities: make(map[string]string)}

	name := path.Base(relPath)
	if name == "." || name == "/" || name == "" {
		return rec, &ParseError{Kind: UnrecognizedEntity, Path: relPath, Reason: "empty filename"}
	}

	parts := strings.Split(name, "_")
	last := parts[len(parts)-1]

	dot := strings.Index(last, ".")
	if dot < 0 {
		return rec, &ParseError{
			Kind:   InvalidSuffixExtension,
			Path:   relPath,
			Token:  last,
			Reason: "no extension",
		}
	}
	suffix := last[:dot]
	ext := last[dot:]

	// A "suffix" containing the key-value separator is a trailing entity,
	// meaning the filename has no suffix at all.
	if strings.Contains(suffix, "-") {
		return rec, &ParseError{
			Kind:   InvalidSuffixExtension,
			Path:   relPath,
			Token:  last,
			Reason: "filename ends in an entity, not a suffix",
		}
	}
	if !p.ix.AllowSuffixExt(suffix, ext) {
		return rec, &ParseError{
			Kind:   InvalidSuffixExtension,
			Path:   relPath,
			Token:  last,
			Reason: fmt.Sprintf("suffix %q with extension %q not accepted", suffix, ext),
		}
	}

	for _, token := range parts[:len(parts)-1] {
		dash := strings.Index(token, "-")
		if dash < 0 {
			return rec, &ParseError{
				Kind:   UnrecognizedEntity,
				Path:   relPath,
				Token:  token,
				Reason: "token has no key-value separator",
			}
		}
		key := token[:dash]
		value := token[dash+1:]

		if _, ok := p.ix.Lookup(key); !ok {
			return rec, &ParseError{
				Kind:   UnrecognizedEntity,
				Path:   relPath,
				Token:  token,
				Reason: fmt.Sprintf("entity key %q not in schema", key),
			}
		}
		if err := p.ix.Validate(key, value); err != nil {
			return rec, &ParseError{
				Kind:   InvalidEntityValue,
				Path:   relPath,
				Token:  token,
				Reason: err.Error(),
			}
		}
		rec.Entities[key] = value
	}

	rec.Suffix = suffix
	rec.Extension = ext

	if m := p.datatypeRe.FindStringSubmatch(relPath); m != nil && p.ix.ValidDatatype(m[1]) {
		rec.Datatype = m[1]
	}

	return rec, nil
}
