package crdt

// ReferenceToObject governs a referenceToObj field: a hash pointing at a
// separately-stored TypedObject. When the referenced object's type has not
// changed since the common ancestor, the merge recurses into the
// referenced object instead of picking one hash over the other (§4.4).
type ReferenceToObject struct{}

func (ReferenceToObject) InitialDiff(newValue interface{}) []Transformation {
	return []Transformation{{Op: OpSet, Value: newValue}}
}

func (ReferenceToObject) Diff(oldValue, newValue interface{}) ([]Transformation, error) {
	reg := Register{}
	return reg.Diff(oldValue, newValue)
}

// Merge requires every branch's TypeHint to be populated; an empty hint
// means the caller could not determine the referenced type (e.g. the
// reference points outside any known recipe), which per §9's open question
// is treated as a hard MergeConflict rather than guessed at.
func (ReferenceToObject) Merge(tree *Tree) (MergeResult, error) {
	var first string
	sameType := true
	for _, b := range tree.Branches {
		if b == nil {
			continue
		}
		if b.TypeHint == "" {
			return MergeResult{}, ErrMergeConflict
		}
		if first == "" {
			first = b.TypeHint
		} else if b.TypeHint != first {
			sameType = false
		}
	}
	if sameType {
		return MergeResult{Iterate: true}, nil
	}
	reg := Register{}
	return reg.Merge(tree)
}
