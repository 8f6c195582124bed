package recipe

import "strings"

// AlgorithmId names a CRDT merge strategy. The concrete algorithms live in
// package crdt; recipes only ever refer to them by name so that new recipes
// can select existing algorithms without importing crdt's implementation
// types.
type AlgorithmId string

const (
	AlgoRegister          AlgorithmId = "Register"
	AlgoSet               AlgorithmId = "Set"
	AlgoOptionalValue     AlgorithmId = "OptionalValue"
	AlgoReferenceToObject AlgorithmId = "ReferenceToObject"
	AlgoNotAvailable      AlgorithmId = "NotAvailable"
)

// DefaultAlgorithmFor returns the algorithm selected for an ItemType absent
// any more specific CrdtConfig entry, per §4.3's default table.
func DefaultAlgorithmFor(t ItemType) AlgorithmId {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeStringifiable,
		TypeReferenceToId, TypeReferenceToClob, TypeReferenceToBlob:
		return AlgoRegister
	case TypeReferenceToObj:
		return AlgoReferenceToObject
	case TypeBag, TypeArray, TypeSet:
		return AlgoSet
	case TypeMap, TypeObject:
		return AlgoNotAvailable
	default:
		return AlgoNotAvailable
	}
}

// patternEntry is one compiled rule of a CrdtConfig: a path pattern and the
// algorithm it selects, with a priority used to break ties between
// overlapping patterns.
type patternEntry struct {
	segments []string // "*" is wildcard
	typeName string   // "" means no #Type suffix
	algo     AlgorithmId
	priority int
}

// CrdtConfig is a recipe-scoped mapping from path pattern to AlgorithmId.
// Patterns: literal field names joined by '.', '*' matches any one element,
// and an optional '#TypeName' suffix narrows the match by element type.
//
// Priority on ambiguity (highest wins): literal#type=4, *#type=3, literal=2,
// *=1.
type CrdtConfig struct {
	entries []patternEntry
}

// NewCrdtConfig builds a CrdtConfig from pattern->algorithm pairs given in
// map iteration order, which is unspecified. Priority decides between
// matching patterns of different priority; between two matching patterns of
// equal priority, which one wins is not defined.
func NewCrdtConfig(rules map[string]AlgorithmId) *CrdtConfig {
	cc := &CrdtConfig{}
	for pattern, algo := range rules {
		cc.entries = append(cc.entries, compilePattern(pattern, algo))
	}
	return cc
}

func compilePattern(pattern string, algo AlgorithmId) patternEntry {
	typeName := ""
	body := pattern
	if idx := strings.LastIndex(pattern, "#"); idx >= 0 {
		body = pattern[:idx]
		typeName = pattern[idx+1:]
	}
	segs := strings.Split(body, ".")

	priority := 1
	hasWildcard := false
	for _, s := range segs {
		if s == "*" {
			hasWildcard = true
		}
	}
	switch {
	case !hasWildcard && typeName != "":
		priority = 4
	case hasWildcard && typeName != "":
		priority = 3
	case !hasWildcard && typeName == "":
		priority = 2
	default:
		priority = 1
	}
	return patternEntry{segments: segs, typeName: typeName, algo: algo, priority: priority}
}

// Lookup resolves the algorithm for a concrete path (e.g.
// []string{"participants","0"}) whose leaf element has dynamic type
// elementTypeName (may be "" if not a referenceToObj / not narrowable).
// It returns false if no pattern matches, meaning the caller must fall back
// to DefaultAlgorithmFor.
func (cc *CrdtConfig) Lookup(path []string, elementTypeName string) (AlgorithmId, bool) {
	if cc == nil {
		return "", false
	}
	best := patternEntry{priority: -1}
	found := false
	for _, e := range cc.entries {
		if !matchSegments(e.segments, path) {
			continue
		}
		if e.typeName != "" && e.typeName != elementTypeName {
			continue
		}
		if e.priority > best.priority {
			best = e
			found = true
		}
	}
	if !found {
		return "", false
	}
	return best.algo, true
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return true
}
