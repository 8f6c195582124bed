package store

import (
	"testing"

	"onestore/internal/codec"
	"onestore/internal/recipe"
	"onestore/internal/testutil"
)

func newTestRegistry() *recipe.Registry {
	reg := recipe.NewRegistry()
	reg.Register(&recipe.Recipe{
		Name: "Note",
		Rules: []recipe.Rule{
			{ItemProp: "noteId", ItemType: recipe.TypeString, IsId: true},
			{ItemProp: "body", ItemType: recipe.TypeString},
		},
	})
	reg.Register(&recipe.Recipe{
		Name: "Person",
		Rules: []recipe.Rule{
			{ItemProp: "personId", ItemType: recipe.TypeString, IsId: true},
			{ItemProp: "favoriteNote", ItemType: recipe.TypeReferenceToObj, ReferenceTypeName: "Note", Optional: true, ReverseMap: true},
		},
	})
	reg.Register(&recipe.Recipe{
		Name: "Profile",
		Rules: []recipe.Rule{
			{ItemProp: "userId", ItemType: recipe.TypeString, IsId: true},
			{ItemProp: "nickname", ItemType: recipe.TypeString},
		},
	})
	return reg
}

func newTestStore(t *testing.T) (*Store, *testutil.Sandbox) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	s, err := New(sb.Root, newTestRegistry())
	if err != nil {
		sb.Cleanup()
		t.Fatalf("New: %v", err)
	}
	return s, sb
}

func TestStoreUnversionedRoundTripAndDedup(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	obj := codec.Object{"noteId": "n1", "body": "hello"}
	h, status, err := s.StoreUnversioned("Note", obj)
	if err != nil {
		t.Fatalf("StoreUnversioned: %v", err)
	}
	if status != StatusNew {
		t.Fatalf("expected StatusNew, got %v", status)
	}

	typeName, got, err := s.GetObject(h)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if typeName != "Note" || got["body"] != "hello" {
		t.Fatalf("unexpected round trip: %v %v", typeName, got)
	}

	_, status2, err := s.StoreUnversioned("Note", obj)
	if err != nil {
		t.Fatalf("StoreUnversioned (dup): %v", err)
	}
	if status2 != StatusExists {
		t.Fatalf("expected StatusExists on dedup write, got %v", status2)
	}
}

func TestDanglingReferenceRejected(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	missingHash := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	person := codec.Object{"personId": "p1", "favoriteNote": missingHash}
	_, _, err := s.StoreUnversioned("Person", person)
	if err == nil {
		t.Fatal("expected dangling reference error")
	}
}

func TestReverseMapIndexed(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	note := codec.Object{"noteId": "n1", "body": "hi"}
	noteHash, _, err := s.StoreUnversioned("Note", note)
	if err != nil {
		t.Fatalf("store note: %v", err)
	}

	person := codec.Object{"personId": "p1", "favoriteNote": string(noteHash)}
	personHash, _, err := s.StoreUnversioned("Person", person)
	if err != nil {
		t.Fatalf("store person: %v", err)
	}

	referrers, err := s.ReverseLookup(noteHash, "Person")
	if err != nil {
		t.Fatalf("ReverseLookup: %v", err)
	}
	if len(referrers) != 1 || referrers[0] != personHash {
		t.Fatalf("expected [%s], got %v", personHash, referrers)
	}
}

func TestBlobStoreAndRead(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	data := []byte("raw bytes, not a TypedObject")
	h, err := s.StoreBlob(data)
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	got, err := s.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("blob mismatch: got %q want %q", got, data)
	}
}

func TestStoreVersionedCollapsesConcurrentHeads(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	initial := codec.Object{"userId": "u1", "nickname": "alice"}
	h0, status0, err := s.StoreVersioned("Profile", initial, nil)
	if err != nil {
		t.Fatalf("initial StoreVersioned: %v", err)
	}
	if status0 != StatusNew {
		t.Fatalf("expected StatusNew for first version, got %v", status0)
	}

	branchA := codec.Object{"userId": "u1", "nickname": "alicia"}
	hA, statusA, err := s.StoreVersioned("Profile", branchA, []codec.Hash{h0})
	if err != nil {
		t.Fatalf("branch A StoreVersioned: %v", err)
	}
	if statusA != StatusUpdated {
		t.Fatalf("expected StatusUpdated for branch A, got %v", statusA)
	}

	branchB := codec.Object{"userId": "u1", "nickname": "ali"}
	hB, statusB, err := s.StoreVersioned("Profile", branchB, []codec.Hash{h0})
	if err != nil {
		t.Fatalf("branch B StoreVersioned: %v", err)
	}
	if statusB != StatusUpdated {
		t.Fatalf("expected StatusUpdated for branch B (concurrent with A), got %v", statusB)
	}

	_, statusReplay, err := s.StoreVersioned("Profile", initial, nil)
	if err != nil {
		t.Fatalf("replay StoreVersioned: %v", err)
	}
	if statusReplay != StatusUpdated {
		t.Fatalf("expected StatusUpdated when replaying a stale version against existing history, got %v", statusReplay)
	}

	final, err := s.GetByIdHash(mustIdHash(t, s, "Profile", branchB))
	if err != nil {
		t.Fatalf("GetByIdHash: %v", err)
	}
	typeName, obj, err := s.GetObject(final)
	if err != nil {
		t.Fatalf("GetObject(final): %v", err)
	}
	if typeName != "Profile" {
		t.Fatalf("unexpected type %q", typeName)
	}
	nickname, _ := obj["nickname"].(string)
	if nickname != "alicia" && nickname != "ali" {
		t.Fatalf("expected merge to pick one branch's nickname, got %q", nickname)
	}
	if final != hA && final != hB {
		t.Fatalf("expected the reconciled head to equal one of the two branches' own hashes, got %s (a=%s b=%s)", final, hA, hB)
	}
}

func mustIdHash(t *testing.T, s *Store, typeName string, obj codec.Object) codec.IdHash {
	t.Helper()
	id, err := codec.IdHashOf(s.reg, typeName, obj)
	if err != nil {
		t.Fatalf("IdHashOf: %v", err)
	}
	return id
}
