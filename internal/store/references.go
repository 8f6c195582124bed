package store

import (
	"fmt"
	"os"

	"onestore/internal/codec"
	"onestore/internal/recipe"
)

// refVisit is called for every referenceToId/referenceToObj/referenceToClob/
// referenceToBlob value found while walking an object's recipe tree,
// however deeply nested inside arrays/sets/maps/objects.
type refVisit func(rule recipe.Rule, hash string)

func walkReferences(rules []recipe.Rule, obj codec.Object, visit refVisit) {
	for _, ru := range rules {
		v, ok := obj[ru.ItemProp]
		if !ok || v == nil {
			continue
		}
		walkValue(ru, v, visit)
	}
}

func walkValue(ru recipe.Rule, v interface{}, visit refVisit) {
	switch ru.ItemType {
	case recipe.TypeReferenceToId, recipe.TypeReferenceToObj, recipe.TypeReferenceToClob, recipe.TypeReferenceToBlob:
		if s, ok := v.(string); ok {
			visit(ru, s)
		}
	case recipe.TypeArray, recipe.TypeBag, recipe.TypeSet:
		if ru.Element == nil {
			return
		}
		items, _ := v.([]interface{})
		for _, it := range items {
			walkValue(*ru.Element, it, visit)
		}
	case recipe.TypeMap:
		if ru.Element == nil {
			return
		}
		m, _ := v.(map[string]interface{})
		for _, mv := range m {
			walkValue(*ru.Element, mv, visit)
		}
	case recipe.TypeObject:
		o, ok := v.(codec.Object)
		if !ok {
			return
		}
		walkReferences(ru.Rules, o, visit)
	}
}

// checkReferences enforces "every object reference resolves or the write
// fails (no dangling intra-type references; BLOB/CLOB refs are checked
// lazily)" from §3.
func (s *Store) checkReferences(typeName string, obj codec.Object) error {
	rec, err := s.rec(typeName)
	if err != nil {
		return err
	}
	var firstErr error
	walkReferences(rec.Rules, obj, func(rule recipe.Rule, hash string) {
		if firstErr != nil {
			return
		}
		switch rule.ItemType {
		case recipe.TypeReferenceToClob, recipe.TypeReferenceToBlob:
			return // checked lazily, i.e. not at write time
		case recipe.TypeReferenceToObj:
			if !s.Exists(codec.Hash(hash)) {
				firstErr = fmt.Errorf("%w: %s -> %s", ErrDanglingReference, rule.ItemProp, hash)
			}
		case recipe.TypeReferenceToId:
			if _, err := os.Stat(s.currentPath(codec.IdHash(hash))); err != nil {
				firstErr = fmt.Errorf("%w: %s -> %s", ErrDanglingReference, rule.ItemProp, hash)
			}
		}
	})
	return firstErr
}

// updateReverseMaps appends selfHash under rmaps/<target>.<typeName> for
// every ReverseMap-marked reference field present in obj. Per §4.2 this
// runs in the same critical section as the forward write for that target's
// type, which the caller guarantees by holding the object's own hash lock
// across both the write and this call — here we additionally take a
// per-(target,type) lock so concurrent writers referencing the same target
// never interleave their read-modify-write of the index file.
func (s *Store) updateReverseMaps(typeName string, obj codec.Object, selfHash codec.Hash) error {
	rec, err := s.rec(typeName)
	if err != nil {
		return err
	}
	var firstErr error
	walkReferences(rec.Rules, obj, func(rule recipe.Rule, hash string) {
		if firstErr != nil || !rule.ReverseMap {
			return
		}
		if err := s.appendReverseMap(hash, typeName, selfHash); err != nil {
			firstErr = err
		}
	})
	return firstErr
}
