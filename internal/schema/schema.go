package schema

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// ValueKind determines how an entity value is validated.
type ValueKind string

const (
	// KindLabel accepts alphanumeric values.
	KindLabel ValueKind = "label"
	// KindIndex accepts non-negative integers, zero padding preserved.
	KindIndex ValueKind = "index"
	// KindEnum accepts one of an explicit value set.
	KindEnum ValueKind = "enum"
)

// Rule describes a single filename entity.
type Rule struct {
	Key      string    `yaml:"key"`
	Kind     ValueKind `yaml:"kind"`
	Values   []string  `yaml:"values,omitempty"`
	Required bool      `yaml:"required,omitempty"`
}

var (
	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	indexPattern = regexp.MustCompile(`^[0-9]+$`)
)

// defaultRules is the built-in entity table in canonical column order.
var defaultRules = []Rule{
	{Key: "sub", Kind: KindLabel, Required: true},
	{Key: "ses", Kind: KindLabel},
	{Key: "sample", Kind: KindLabel},
	{Key: "task", Kind: KindLabel},
	{Key: "acq", Kind: KindLabel},
	{Key: "ce", Kind: KindLabel},
	{Key: "trc", Kind: KindLabel},
	{Key: "stain", Kind: KindLabel},
	{Key: "rec", Kind: KindLabel},
	{Key: "dir", Kind: KindLabel},
	{Key: "run", Kind: KindIndex},
	{Key: "mod", Kind: KindLabel},
	{Key: "echo", Kind: KindIndex},
	{Key: "flip", Kind: KindIndex},
	{Key: "inv", Kind: KindIndex},
	{Key: "mt", Kind: KindEnum, Values: []string{"on", "off"}},
	{Key: "part", Kind: KindEnum, Values: []string{"mag", "phase", "real", "imag"}},
	{Key: "proc", Kind: KindLabel},
	{Key: "hemi", Kind: KindEnum, Values: []string{"L", "R"}},
	{Key: "space", Kind: KindLabel},
	{Key: "split", Kind: KindIndex},
	{Key: "recording", Kind: KindLabel},
	{Key: "chunk", Kind: KindIndex},
	{Key: "atlas", Kind: KindLabel},
	{Key: "res", Kind: KindLabel},
	{Key: "den", Kind: KindLabel},
	{Key: "label", Kind: KindLabel},
	{Key: "desc", Kind: KindLabel},
}

// defaultDatatypes lists the directory names recognized as datatypes.
var defaultDatatypes = []string{
	"anat", "beh", "dwi", "eeg", "fmap", "func", "ieeg",
	"meg", "micr", "motion", "mrs", "nirs", "perf", "pet",
}

// defaultJSONDataSuffixes lists suffixes whose .json files are data
// files rather than sidecars.
var defaultJSONDataSuffixes = []string{"coordsystem"}

// Index is the immutable lookup structure built from a rule set. It is
// safe for concurrent use; all workers share one Index.
type Index struct {
	rules            map[string]Rule
	order            []string
	positions        map[string]int
	datatypes        map[string]bool
	jsonDataSuffixes map[string]bool
	suffixes         map[string]bool // empty means any suffix accepted
	extensions       map[string]bool // empty means any extension accepted
}

var (
	defaultIndex     *Index
	defaultIndexOnce sync.Once
)

// Default returns the process-wide Index built from the built-in rules.
func Default() *Index {
	defaultIndexOnce.Do(func() {
		ix, err := build(defaultRules, defaultDatatypes, defaultJSONDataSuffixes, nil, nil)
		if err != nil {
			// The built-in table is validated by tests; a failure here
			// is a programming error.
			panic(err)
		}
		defaultIndex = ix
	})
	return defaultIndex
}

func build(rules []Rule, datatypes, jsonDataSuffixes, suffixes, extensions []string) (*Index, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("schema: no entity rules defined")
	}

	ix := &Index{
		rules:            make(map[string]Rule, len(rules)),
		order:            make([]string, 0, len(rules)),
		positions:        make(map[string]int, len(rules)),
		datatypes:        make(map[string]bool, len(datatypes)),
		jsonDataSuffixes: make(map[string]bool, len(jsonDataSuffixes)),
		suffixes:         make(map[string]bool, len(suffixes)),
		extensions:       make(map[string]bool, len(extensions)),
	}

	for i, r := range rules {
		if r.Key == "" {
			return nil, fmt.Errorf("schema: rule %d has an empty key", i)
		}
		// Keys appear in filenames between the token and key-value
		// separators, so they must stay strictly alphanumeric.
		if !labelPattern.MatchString(r.Key) {
			return nil, fmt.Errorf("schema: entity key %q is not alphanumeric", r.Key)
		}
		if _, dup := ix.rules[r.Key]; dup {
			return nil, fmt.Errorf("schema: duplicate entity key %q", r.Key)
		}
		switch r.Kind {
		case KindLabel, KindIndex:
		case KindEnum:
			if len(r.Values) == 0 {
				return nil, fmt.Errorf("schema: enum entity %q has no values", r.Key)
			}
		case "":
			r.Kind = KindLabel
		default:
			return nil, fmt.Errorf("schema: entity %q has unknown kind %q", r.Key, r.Kind)
		}
		ix.rules[r.Key] = r
		ix.positions[r.Key] = len(ix.order)
		ix.order = append(ix.order, r.Key)
	}

	for _, dt := range datatypes {
		ix.datatypes[dt] = true
	}
	for _, s := range jsonDataSuffixes {
		ix.jsonDataSuffixes[s] = true
	}
	for _, s := range suffixes {
		ix.suffixes[s] = true
	}
	for _, e := range extensions {
		ix.extensions[e] = true
	}

	return ix, nil
}

// Lookup returns the rule for an entity key.
func (ix *Index) Lookup(key string) (Rule, bool) {
	r, ok := ix.rules[key]
	return r, ok
}

// Canonical returns the entity keys in canonical column order.
func (ix *Index) Canonical() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Position returns the canonical position of an entity key, or -1 if
// the key is unknown.
func (ix *Index) Position(key string) int {
	if p, ok := ix.positions[key]; ok {
		return p
	}
	return -1
}

// Validate checks an entity value against its rule.
func (ix *Index) Validate(key, value string) error {
	r, ok := ix.rules[key]
	if !ok {
		return fmt.Errorf("unknown entity %q", key)
	}
	if value == "" {
		return fmt.Errorf("entity %q has an empty value", key)
	}
	switch r.Kind {
	case KindIndex:
		if !indexPattern.MatchString(value) {
			return fmt.Errorf("entity %q value %q is not a non-negative integer", key, value)
		}
	case KindEnum:
		for _, v := range r.Values {
			if v == value {
				return nil
			}
		}
		return fmt.Errorf("entity %q value %q is not one of %v", key, value, r.Values)
	default:
		if !labelPattern.MatchString(value) {
			return fmt.Errorf("entity %q value %q is not alphanumeric", key, value)
		}
	}
	return nil
}

// PartitionKey returns the first required entity key. Dataset trees are
// partitioned by directories named "<key>-<value>" (sub-01 and friends),
// and data filenames must begin with that entity.
func (ix *Index) PartitionKey() string {
	for _, key := range ix.order {
		if ix.rules[key].Required {
			return key
		}
	}
	return ix.order[0]
}

// ValidDatatype reports whether a directory name is a recognized datatype.
func (ix *Index) ValidDatatype(name string) bool {
	return ix.datatypes[name]
}

// Datatypes returns the recognized datatype names, sorted.
func (ix *Index) Datatypes() []string {
	out := make([]string, 0, len(ix.datatypes))
	for dt := range ix.datatypes {
		out = append(out, dt)
	}
	sort.Strings(out)
	return out
}

// IsJSONDataSuffix reports whether .json files with this suffix are data
// files instead of sidecars.
func (ix *Index) IsJSONDataSuffix(suffix string) bool {
	return ix.jsonDataSuffixes[suffix]
}

// AllowSuffixExt reports whether a suffix/extension pair is acceptable.
// An empty allow-list accepts any non-empty value.
func (ix *Index) AllowSuffixExt(suffix, ext string) bool {
	if suffix == "" || ext == "" {
		return false
	}
	if len(ix.suffixes) > 0 && !ix.suffixes[suffix] {
		return false
	}
	if len(ix.extensions) > 0 && !ix.extensions[ext] {
		return false
	}
	return true
}
