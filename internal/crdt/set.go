package crdt

import "fmt"

// Set is a commutative union CRDT over bag/array/set-typed fields (§4.3
// default for TypeBag/TypeArray/TypeSet). Elements are identified by their
// Go value's %#v representation, which is stable for the primitive and
// hash-reference element types these containers hold in practice.
type Set struct{}

func elementKey(v interface{}) string { return fmt.Sprintf("%#v", v) }

func toElementSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func elementSet(v interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, e := range toElementSlice(v) {
		out[elementKey(e)] = e
	}
	return out
}

func (Set) InitialDiff(newValue interface{}) []Transformation {
	out := make([]Transformation, 0)
	for k, v := range elementSet(newValue) {
		out = append(out, Transformation{Op: OpAdd, Key: k, Value: v})
	}
	return out
}

func (Set) Diff(oldValue, newValue interface{}) ([]Transformation, error) {
	oldSet := elementSet(oldValue)
	newSet := elementSet(newValue)
	var out []Transformation
	for k, v := range newSet {
		if _, ok := oldSet[k]; !ok {
			out = append(out, Transformation{Op: OpAdd, Key: k, Value: v})
		}
	}
	for k := range oldSet {
		if _, ok := newSet[k]; !ok {
			// Removing an absent element is a no-op; this element was
			// present in oldValue so removal is meaningful here.
			out = append(out, Transformation{Op: OpRemove, Key: k})
		}
	}
	return out, nil
}

// Merge reconstructs the union: every element added on any branch survives
// even if another, concurrent branch removed it relative to the LCA —
// concurrent add-wins-over-remove, the standard OR-Set resolution.
func (Set) Merge(tree *Tree) (MergeResult, error) {
	lcaSet := map[string]interface{}{}
	if tree.LCA != nil && !tree.LCA.Absent {
		lcaSet = elementSet(tree.LCA.Value)
	}

	added := map[string]interface{}{}
	removed := map[string]struct{}{}
	for _, branch := range tree.Branches {
		if branch == nil || branch.Absent {
			continue
		}
		branchSet := elementSet(branch.Value)
		for k, v := range branchSet {
			if _, inLCA := lcaSet[k]; !inLCA {
				added[k] = v
			}
		}
		for k := range lcaSet {
			if _, stillThere := branchSet[k]; !stillThere {
				removed[k] = struct{}{}
			}
		}
	}

	result := make(map[string]interface{}, len(lcaSet)+len(added))
	for k, v := range lcaSet {
		if _, gone := removed[k]; gone {
			continue
		}
		result[k] = v
	}
	for k, v := range added {
		result[k] = v
	}

	out := make([]interface{}, 0, len(result))
	for _, v := range result {
		out = append(out, v)
	}
	return MergeResult{Value: out}, nil
}
