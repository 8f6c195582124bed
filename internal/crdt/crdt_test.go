package crdt

import (
	"fmt"
	"testing"
)

func branch(value interface{}, hasOp bool, t int64, hash string) *Node {
	return &Node{Value: value, HasOp: hasOp, CreationTime: t, Hash: hash}
}

func TestRegisterTieBreakByHash(t *testing.T) {
	// Scenario 2 from the testable-properties section: two writes at equal
	// time, the greater content hash wins.
	tree := &Tree{Branches: []*Node{
		branch("A", true, 1000, "11aaaa"),
		branch("B", true, 1000, "22bbbb"),
	}}
	r := Register{}
	res, err := r.Merge(tree)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Value != "B" {
		t.Fatalf("expected greater hash to win, got %v", res.Value)
	}
}

func TestRegisterCommutative(t *testing.T) {
	r := Register{}
	a := branch("A", true, 500, "aaaa")
	b := branch("B", true, 600, "bbbb")
	r1, _ := r.Merge(&Tree{Branches: []*Node{a, b}})
	r2, _ := r.Merge(&Tree{Branches: []*Node{b, a}})
	if r1.Value != r2.Value {
		t.Fatalf("register merge not commutative: %v vs %v", r1.Value, r2.Value)
	}
}

func TestSetUnionCommutativeAndAssociative(t *testing.T) {
	s := Set{}
	lca := branch([]interface{}{"x"}, false, 0, "")
	b1 := branch([]interface{}{"x", "y"}, true, 100, "h1")
	b2 := branch([]interface{}{"x", "z"}, true, 200, "h2")
	b3 := branch([]interface{}{}, true, 300, "h3") // removed x concurrently

	r12, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{b1, b2}})
	r21, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{b2, b1}})
	if !sameSet(r12.Value, r21.Value) {
		t.Fatalf("set merge not commutative")
	}

	// Associativity: merging b3 into the (b1,b2) result gives the same set as
	// merging b1 into the (b2,b3) result ({y,z} either way).
	r23, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{b2, b3}})
	left, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{branch(r12.Value, true, 200, "h12"), b3}})
	right, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{b1, branch(r23.Value, true, 300, "h23")}})
	if !sameSet(left.Value, right.Value) {
		t.Fatalf("set merge not associative: %v vs %v", left.Value, right.Value)
	}

	// add (from b2: z) should survive even against a concurrent remove of x
	// from b3, and a concurrent add from b1 (y) should also survive.
	r123, _ := s.Merge(&Tree{LCA: lca, Branches: []*Node{b1, b2, b3}})
	got := toSet(r123.Value)
	for _, want := range []string{"y", "z"} {
		if !got[fmt.Sprintf("%#v", want)] {
			t.Fatalf("expected %q present in merged set: %v", want, r123.Value)
		}
	}
}

func TestOptionalValueDeleteWinsOverSet(t *testing.T) {
	o := OptionalValue{}
	setBranch := &Node{Value: "v", HasOp: true, CreationTime: 100, Hash: "aa"}
	delBranch := &Node{Absent: true, HasOp: true, CreationTime: 50, Hash: "bb"}
	res, err := o.Merge(&Tree{Branches: []*Node{setBranch, delBranch}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.Absent {
		t.Fatalf("expected delete to win over concurrent set")
	}
}

func TestOptionalValueBothSetFallsBackToRegister(t *testing.T) {
	o := OptionalValue{}
	a := &Node{Value: "A", HasOp: true, CreationTime: 10, Hash: "11"}
	b := &Node{Value: "B", HasOp: true, CreationTime: 20, Hash: "22"}
	res, err := o.Merge(&Tree{Branches: []*Node{a, b}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Absent || res.Value != "B" {
		t.Fatalf("expected later write B to win, got %+v", res)
	}
}

func TestReferenceToObjectIteratesWhenTypeUnchanged(t *testing.T) {
	r := ReferenceToObject{}
	a := &Node{Value: "h1", HasOp: true, CreationTime: 10, TypeHint: "Foo"}
	b := &Node{Value: "h2", HasOp: true, CreationTime: 20, TypeHint: "Foo"}
	res, err := r.Merge(&Tree{Branches: []*Node{a, b}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.Iterate {
		t.Fatalf("expected iterate directive when type unchanged")
	}
}

func TestReferenceToObjectConflictWhenTypeUnknown(t *testing.T) {
	r := ReferenceToObject{}
	a := &Node{Value: "h1", HasOp: true, TypeHint: ""}
	b := &Node{Value: "h2", HasOp: true, TypeHint: "Foo"}
	_, err := r.Merge(&Tree{Branches: []*Node{a, b}})
	if err != ErrMergeConflict {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}
}

func TestNotAvailableAlwaysErrors(t *testing.T) {
	n := NotAvailable{}
	if _, err := n.Merge(&Tree{}); err != ErrNoAlgorithm {
		t.Fatalf("expected ErrNoAlgorithm, got %v", err)
	}
}

func sameSet(a, b interface{}) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if !bs[k] {
			return false
		}
	}
	return true
}

func toSet(v interface{}) map[string]bool {
	out := map[string]bool{}
	s, _ := v.([]interface{})
	for _, e := range s {
		out[elementKey(e)] = true
	}
	return out
}
