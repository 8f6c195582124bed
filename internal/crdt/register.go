package crdt

import "reflect"

// Register is last-writer-wins over a single primitive value. It is the
// default algorithm for every scalar rule type and for referenceToId/
// referenceToClob/referenceToBlob (§4.3).
type Register struct{}

func (Register) InitialDiff(newValue interface{}) []Transformation {
	return []Transformation{{Op: OpSet, Value: newValue}}
}

func (Register) Diff(oldValue, newValue interface{}) ([]Transformation, error) {
	if reflect.DeepEqual(oldValue, newValue) {
		return nil, nil
	}
	return []Transformation{{Op: OpSet, Value: newValue}}, nil
}

func (Register) Merge(tree *Tree) (MergeResult, error) {
	w := winner(tree.Branches)
	if w == nil {
		if tree.LCA != nil {
			return MergeResult{Value: tree.LCA.Value}, nil
		}
		return MergeResult{}, nil
	}
	return MergeResult{Value: w.Value}, nil
}
