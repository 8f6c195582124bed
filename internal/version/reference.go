package version

import (
	"fmt"

	"onestore/internal/codec"
	"onestore/internal/crdt"
	"onestore/internal/recipe"
)

// resolveTypeHint fetches the recipe name stored at hash, or "" if the hash
// does not resolve to a stored object (e.g. it was never written, or it
// names a CLOB/BLOB rather than a TypedObject).
func resolveTypeHint(access ObjectAccess, hash string) string {
	if hash == "" {
		return ""
	}
	typeName, _, err := access.GetObject(codec.Hash(hash))
	if err != nil {
		return ""
	}
	return typeName
}

// mergeReference resolves a referenceToObj field per §4.3: if both branches
// still point at an object of the same known recipe, the pointer itself is
// merged by Register tie-break and then the pointed-to objects are
// recursively reconciled and re-stored; if the pointee's recipe changed (or
// is unknown) the algorithm falls back to Register over the pointer value.
func mergeReference(access ObjectAccess, reg *recipe.Registry, ru recipe.Rule, path []string,
	lcaVal, v1, v2 interface{}, lcaOk, ok1, ok2 bool, mlca, m1, m2 branchMeta) (interface{}, bool, error) {

	lcaHash, _ := lcaVal.(string)
	h1, _ := v1.(string)
	h2, _ := v2.(string)

	algo := crdt.For(recipe.AlgoReferenceToObject)
	lca := &crdt.Node{Value: lcaHash, Absent: !lcaOk, TypeHint: resolveTypeHint(access, lcaHash), CreationTime: mlca.creationTime, Hash: mlca.hash}
	n1 := &crdt.Node{Value: h1, Absent: !ok1, TypeHint: resolveTypeHint(access, h1), HasOp: lcaHash != h1 || lcaOk != ok1, CreationTime: m1.creationTime, Hash: m1.hash}
	n2 := &crdt.Node{Value: h2, Absent: !ok2, TypeHint: resolveTypeHint(access, h2), HasOp: lcaHash != h2 || lcaOk != ok2, CreationTime: m2.creationTime, Hash: m2.hash}

	result, err := algo.Merge(&crdt.Tree{LCA: lca, Branches: []*crdt.Node{n1, n2}})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", recipe.PathKey(path...), err)
	}
	if !result.Iterate {
		return result.Value, !result.Absent, nil
	}

	typeName := n1.TypeHint
	mergedHash, err := mergePointees(access, reg, typeName, codec.Hash(lcaHash), codec.Hash(h1), codec.Hash(h2), lcaOk)
	if err != nil {
		return nil, false, err
	}
	return string(mergedHash), true, nil
}

// mergePointees reconciles the two objects h1 and h2 point at. If both are
// themselves versioned (tracked in the DAG) their real lowest common
// ancestor is used; otherwise lcaHash — when it resolved to the same
// recipe — seeds the comparison, and failing that the two objects are
// merged as freshly-diverged siblings with no shared history.
func mergePointees(access ObjectAccess, reg *recipe.Registry, typeName string, lcaHash, h1, h2 codec.Hash, haveLca bool) (codec.Hash, error) {
	if h1 == h2 {
		return h1, nil
	}

	if dagLCA := lowestCommonAncestor(access, h1, h2); dagLCA != "" {
		return MergeHeads(access, reg, typeName, h1, h2)
	}

	_, obj1, err := access.GetObject(h1)
	if err != nil {
		return "", err
	}
	_, obj2, err := access.GetObject(h2)
	if err != nil {
		return "", err
	}
	var lcaObj codec.Object
	if haveLca && lcaHash != "" {
		if _, o, err := access.GetObject(lcaHash); err == nil {
			lcaObj = o
		}
	}

	rec, err := reg.Get(typeName)
	if err != nil {
		return "", err
	}
	zero := branchMeta{}
	merged, err := mergeFields(access, reg, rec.CrdtConfig, rec.Rules, nil, lcaObj, obj1, obj2, zero, zero, zero)
	if err != nil {
		return "", err
	}
	return access.PutObject(typeName, merged)
}
