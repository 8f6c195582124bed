// Package version implements component C5's merge side: merging two
// divergent heads of the same versioned id-hash by walking the recipe tree
// in parallel, constructing a crdt.Tree for each path and letting the
// selected crdt.Algorithm decide (or direct the traversal to recurse
// further). It does not compute per-path Transformations (diffs) between
// two values; the per-algorithm Diff/InitialDiff live in package crdt and
// are not driven over a recipe tree here.
package version

import (
	"errors"
	"reflect"

	"onestore/internal/codec"
	"onestore/internal/recipe"
)

// ErrMergeConflict surfaces any crdt.ErrNoAlgorithm/crdt.ErrMergeConflict
// encountered while merging, wrapped with path context.
type ErrMergeConflict struct {
	Path string
	Err  error
}

func (e *ErrMergeConflict) Error() string {
	return "version: merge conflict at " + e.Path + ": " + e.Err.Error()
}
func (e *ErrMergeConflict) Unwrap() error { return e.Err }

// DAGNode is the persisted version-DAG metadata for one content hash of a
// versioned object (§3 VersionDAG node).
type DAGNode struct {
	Hash         codec.Hash
	IdHash       codec.IdHash
	Previous     []codec.Hash
	CreationTime int64
}

// ObjectAccess is the minimal surface version needs from the object store:
// fetching objects by hash, persisting newly-merged objects, and reading
// version-DAG metadata to find the lowest common ancestor of two heads.
// store.Store satisfies this interface structurally.
type ObjectAccess interface {
	GetObject(h codec.Hash) (string, codec.Object, error)
	PutObject(typeName string, obj codec.Object) (codec.Hash, error)
	GetVersionMeta(h codec.Hash) (*DAGNode, error)
}

// lowestCommonAncestor walks both hashes' Previous chains and returns the
// first hash reachable from both, or "" if none (disjoint history).
func lowestCommonAncestor(access ObjectAccess, h1, h2 codec.Hash) codec.Hash {
	ancestors1 := map[codec.Hash]bool{h1: true}
	frontier := []codec.Hash{h1}
	for len(frontier) > 0 {
		var next []codec.Hash
		for _, h := range frontier {
			meta, err := access.GetVersionMeta(h)
			if err != nil || meta == nil {
				continue
			}
			for _, p := range meta.Previous {
				if !ancestors1[p] {
					ancestors1[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}

	if ancestors1[h2] {
		return h2
	}
	visited := map[codec.Hash]bool{h2: true}
	frontier = []codec.Hash{h2}
	for len(frontier) > 0 {
		var next []codec.Hash
		for _, h := range frontier {
			if ancestors1[h] {
				return h
			}
			meta, err := access.GetVersionMeta(h)
			if err != nil || meta == nil {
				continue
			}
			for _, p := range meta.Previous {
				if !visited[p] {
					visited[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return ""
}

// MergeHeads merges two divergent content hashes of the same versioned
// object, returning the hash of the newly-stored, reconciled object (§4.5).
func MergeHeads(access ObjectAccess, reg *recipe.Registry, typeName string, h1, h2 codec.Hash) (codec.Hash, error) {
	if h1 == h2 {
		return h1, nil
	}
	t1, obj1, err := access.GetObject(h1)
	if err != nil {
		return "", err
	}
	t2, obj2, err := access.GetObject(h2)
	if err != nil {
		return "", err
	}
	if t1 != typeName || t2 != typeName {
		return "", errors.New("version: type mismatch between merge heads")
	}

	lcaHash := lowestCommonAncestor(access, h1, h2)
	var lcaObj codec.Object
	var lcaMeta *DAGNode
	if lcaHash != "" {
		_, lcaObj, err = access.GetObject(lcaHash)
		if err != nil {
			return "", err
		}
		lcaMeta, _ = access.GetVersionMeta(lcaHash)
	}
	meta1, _ := access.GetVersionMeta(h1)
	meta2, _ := access.GetVersionMeta(h2)

	rec, err := reg.Get(typeName)
	if err != nil {
		return "", err
	}

	merged, err := mergeFields(access, reg, rec.CrdtConfig, rec.Rules, nil,
		lcaObj, obj1, obj2,
		branchMetaOf(lcaMeta, lcaHash), branchMetaOf(meta1, h1), branchMetaOf(meta2, h2))
	if err != nil {
		return "", err
	}

	return access.PutObject(typeName, merged)
}

// branchMeta carries the whole-version creationTime/hash used as every
// field's tie-break metadata, since a version's timestamp and hash are
// properties of the whole object, not of individual fields.
type branchMeta struct {
	creationTime int64
	hash         string
}

func branchMetaOf(d *DAGNode, h codec.Hash) branchMeta {
	bm := branchMeta{hash: string(h)}
	if d != nil {
		bm.creationTime = d.CreationTime
	}
	return bm
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
