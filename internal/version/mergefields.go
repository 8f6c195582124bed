package version

import (
	"fmt"

	"onestore/internal/codec"
	"onestore/internal/crdt"
	"onestore/internal/recipe"
)

func configOf(rec *recipe.Recipe) *recipe.CrdtConfig {
	if rec == nil {
		return nil
	}
	return rec.CrdtConfig
}

func algorithmFor(cfg *recipe.CrdtConfig, path []string, rule recipe.Rule) recipe.AlgorithmId {
	elementType := ""
	switch rule.ItemType {
	case recipe.TypeReferenceToId, recipe.TypeReferenceToObj:
		elementType = rule.ReferenceTypeName
	}
	if cfg != nil {
		if id, ok := cfg.Lookup(path, elementType); ok {
			return id
		}
	}
	return recipe.DefaultAlgorithmFor(rule.ItemType)
}

// mergeFields reconciles one level of a recipe's Rules between two divergent
// branches given their (possibly absent) lowest common ancestor, field by
// field, each field governed by its own resolved merge algorithm. cfg is the
// owning TypedObject's CrdtConfig; patterns are absolute from that root, so
// the same cfg is threaded unchanged into every nested call.
func mergeFields(access ObjectAccess, reg *recipe.Registry, cfg *recipe.CrdtConfig, rules []recipe.Rule, path []string,
	lcaObj, obj1, obj2 codec.Object, mlca, m1, m2 branchMeta) (codec.Object, error) {

	out := codec.Object{}
	for _, ru := range rules {
		fieldPath := append(append([]string{}, path...), ru.ItemProp)

		var lcaVal interface{}
		var lcaOk bool
		if lcaObj != nil {
			lcaVal, lcaOk = lcaObj[ru.ItemProp]
		}
		v1, ok1 := obj1[ru.ItemProp]
		v2, ok2 := obj2[ru.ItemProp]

		value, present, err := mergeOneField(access, reg, cfg, ru, fieldPath, lcaVal, v1, v2, lcaOk, ok1, ok2, mlca, m1, m2)
		if err != nil {
			return nil, &ErrMergeConflict{Path: recipe.PathKey(fieldPath...), Err: err}
		}
		if present {
			out[ru.ItemProp] = value
		}
	}
	return out, nil
}

func mergeOneField(access ObjectAccess, reg *recipe.Registry, cfg *recipe.CrdtConfig, ru recipe.Rule, path []string,
	lcaVal, v1, v2 interface{}, lcaOk, ok1, ok2 bool, mlca, m1, m2 branchMeta) (interface{}, bool, error) {

	algoId := algorithmFor(cfg, path, ru)

	switch ru.ItemType {
	case recipe.TypeObject:
		if algoId == recipe.AlgoOptionalValue {
			sub1, _ := v1.(codec.Object)
			sub2, _ := v2.(codec.Object)
			subLca, _ := lcaVal.(codec.Object)
			if !ok1 && !ok2 {
				return nil, false, nil
			}
			if !ok1 {
				return v2, true, nil
			}
			if !ok2 {
				return v1, true, nil
			}
			merged, err := mergeFields(access, reg, cfg, ru.Rules, path, subLca, sub1, sub2, mlca, m1, m2)
			return merged, true, err
		}
		if algoId == recipe.AlgoNotAvailable {
			if ok1 != ok2 || (ok1 && ok2 && !valuesEqual(v1, v2)) {
				return nil, false, &crdtUnavailableErr{path: recipe.PathKey(path...)}
			}
			return v1, ok1, nil
		}

	case recipe.TypeMap:
		if algoId == recipe.AlgoOptionalValue {
			return mergeMapEntries(access, reg, cfg, ru, path, lcaVal, v1, v2, mlca, m1, m2)
		}
		if algoId == recipe.AlgoNotAvailable {
			if ok1 != ok2 || (ok1 && ok2 && !valuesEqual(v1, v2)) {
				return nil, false, &crdtUnavailableErr{path: recipe.PathKey(path...)}
			}
			return v1, ok1, nil
		}

	case recipe.TypeReferenceToObj:
		return mergeReference(access, reg, ru, path, lcaVal, v1, v2, lcaOk, ok1, ok2, mlca, m1, m2)
	}

	return mergeAsLeaf(algoId, path, lcaVal, v1, v2, lcaOk, ok1, ok2, mlca, m1, m2)
}

// mergeAsLeaf treats the field as an opaque value governed directly by a
// crdt.Algorithm (Register, Set, OptionalValue, or an error for
// NotAvailable): this is the path taken by every scalar type and by
// array/bag/set, which the spec treats as non-iterating leaves.
func mergeAsLeaf(algoId recipe.AlgorithmId, path []string, lcaVal, v1, v2 interface{}, lcaOk, ok1, ok2 bool, mlca, m1, m2 branchMeta) (interface{}, bool, error) {
	algo := crdt.For(algoId)
	lca := &crdt.Node{Value: lcaVal, Absent: !lcaOk, CreationTime: mlca.creationTime, Hash: mlca.hash}
	n1 := &crdt.Node{Value: v1, Absent: !ok1, HasOp: lcaOk != ok1 || !valuesEqual(lcaVal, v1), CreationTime: m1.creationTime, Hash: m1.hash}
	n2 := &crdt.Node{Value: v2, Absent: !ok2, HasOp: lcaOk != ok2 || !valuesEqual(lcaVal, v2), CreationTime: m2.creationTime, Hash: m2.hash}

	result, err := algo.Merge(&crdt.Tree{LCA: lca, Branches: []*crdt.Node{n1, n2}})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", recipe.PathKey(path...), err)
	}
	return result.Value, !result.Absent, nil
}

func mergeMapEntries(access ObjectAccess, reg *recipe.Registry, cfg *recipe.CrdtConfig, ru recipe.Rule, path []string,
	lcaVal, v1, v2 interface{}, mlca, m1, m2 branchMeta) (interface{}, bool, error) {

	lm, _ := lcaVal.(map[string]interface{})
	m1v, _ := v1.(map[string]interface{})
	m2v, _ := v2.(map[string]interface{})

	keys := map[string]bool{}
	for k := range lm {
		keys[k] = true
	}
	for k := range m1v {
		keys[k] = true
	}
	for k := range m2v {
		keys[k] = true
	}

	out := map[string]interface{}{}
	for k := range keys {
		lv, lok := lm[k]
		a, aok := m1v[k]
		b, bok := m2v[k]
		if ru.Element == nil {
			continue
		}
		val, present, err := mergeOneField(access, reg, cfg, *ru.Element, append(append([]string{}, path...), k), lv, a, b, lok, aok, bok, mlca, m1, m2)
		if err != nil {
			return nil, false, err
		}
		if present {
			out[k] = val
		}
	}
	return out, true, nil
}

// crdtUnavailableErr reports a NotAvailable path that was never made
// concrete via CrdtConfig, per §4.3.
type crdtUnavailableErr struct{ path string }

func (e *crdtUnavailableErr) Error() string {
	return "no merge algorithm configured for " + e.path
}

func (e *crdtUnavailableErr) Is(target error) bool { return target == crdt.ErrNoAlgorithm }
