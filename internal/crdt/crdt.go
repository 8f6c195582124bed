// Package crdt implements the per-field merge algorithms of component C4:
// Register, Set, OptionalValue, ReferenceToObject and NotAvailable. Every
// algorithm presents the same three-operation contract so the version-tree
// traversal in package version can dispatch on recipe.AlgorithmId without
// knowing the concrete type.
package crdt

import "errors"

// Op names one atomic change a Diff/InitialDiff call can emit.
type Op string

const (
	OpSet    Op = "set"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpDelete Op = "delete"
)

// Transformation is one recorded change to a field's value.
type Transformation struct {
	Op    Op
	Key   string      // set/map entry key; empty for scalar fields
	Value interface{} // new value (absent for OpRemove/OpDelete)
}

// Node is one head's contribution to a merge: the field's value at that
// head (or Absent if the field does not exist there), whether a value-
// changing operation happened on this head since the lowest common
// ancestor, and the tie-break metadata used when two heads are otherwise
// indistinguishable.
type Node struct {
	Value        interface{}
	Absent       bool
	HasOp        bool
	CreationTime int64
	Hash         string // lowercase hex content hash of the owning version, for tie-break
	TypeHint     string // referenceToObj only: the recipe name of the referenced object
}

// Tree is the merge input for one field: its value at the lowest common
// ancestor (LCA may be nil if the two heads share no ancestor for this
// field, e.g. the field was introduced after divergence) and its value at
// each of the (exactly two, for pairwise merges) diverging heads.
type Tree struct {
	LCA      *Node
	Branches []*Node
}

// MergeResult is what Merge produces for one field.
type MergeResult struct {
	// Value is the concrete merged value, when Iterate is false and Absent
	// is false.
	Value interface{}
	// Absent, when true, means the field must not appear in the merged
	// object (OptionalValue resolved to delete).
	Absent bool
	// Iterate, when true, means the traversal must recurse structurally
	// instead of taking Value verbatim — used by ReferenceToObject when the
	// referenced type is unchanged, so the caller merges the two referenced
	// objects and substitutes the resulting hash.
	Iterate bool
}

// ErrNoAlgorithm is returned by NotAvailable.Merge. Per §4.4 and the
// open question in §9, reaching NotAvailable during a real merge always
// means the recipe's CrdtConfig is missing an entry for this path.
var ErrNoAlgorithm = errors.New("crdt: NotAvailable reached; path requires an explicit CrdtConfig entry")

// ErrMergeConflict is returned when ReferenceToObject cannot determine
// whether the referenced type changed (type hint missing on one or both
// heads).
var ErrMergeConflict = errors.New("crdt: merge conflict: reference type unknown on at least one head")

// Algorithm is the common contract every CRDT field algorithm implements.
type Algorithm interface {
	// InitialDiff returns the Transformations that introduce newValue where
	// no prior value existed.
	InitialDiff(newValue interface{}) []Transformation
	// Diff returns the Transformations that turn oldValue into newValue, or
	// none if they are equal.
	Diff(oldValue, newValue interface{}) ([]Transformation, error)
	// Merge resolves a two-headed (or rooted) version tree for one field.
	Merge(tree *Tree) (MergeResult, error)
}

// winner picks the tie-break winner among branches that HasOp set, per the
// (has-set-op, creationTime, hash) ordering shared by Register,
// OptionalValue and ReferenceToObject's Register fallback.
func winner(branches []*Node) *Node {
	var best *Node
	for _, n := range branches {
		if n == nil || !n.HasOp {
			continue
		}
		if best == nil {
			best = n
			continue
		}
		if n.CreationTime > best.CreationTime {
			best = n
			continue
		}
		if n.CreationTime == best.CreationTime && n.Hash > best.Hash {
			best = n
		}
	}
	if best == nil {
		// No branch recorded an operation (both inherited the LCA value
		// unchanged) — any branch's value is equally valid.
		for _, n := range branches {
			if n != nil {
				return n
			}
		}
	}
	return best
}
