package recipe

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	rec := &Recipe{Name: "Widget", Rules: []Rule{{ItemProp: "id", ItemType: TypeString, IsId: true}}}
	reg.Register(rec)

	got, err := reg.Get("Widget")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != rec {
		t.Fatal("Get returned a different *Recipe than was registered")
	}

	if _, err := reg.Get("NoSuchType"); err == nil {
		t.Fatal("expected ErrUnknownType for an unregistered name")
	} else if _, ok := err.(*ErrUnknownType); !ok {
		t.Fatalf("expected *ErrUnknownType, got %T", err)
	}
}

func TestRegistryListAndOverwrite(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Recipe{Name: "A"})
	reg.Register(&Recipe{Name: "B"})
	names := reg.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %d: %v", len(names), names)
	}

	replacement := &Recipe{Name: "A", Rules: []Rule{{ItemProp: "x", ItemType: TypeInteger}}}
	reg.Register(replacement)
	got, err := reg.Get("A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != replacement {
		t.Fatal("Register did not overwrite the existing recipe under the same name")
	}
}

func TestRecipeIdRulesAndHasId(t *testing.T) {
	withId := &Recipe{Rules: []Rule{
		{ItemProp: "userId", ItemType: TypeString, IsId: true},
		{ItemProp: "nickname", ItemType: TypeString},
	}}
	if !withId.HasId() {
		t.Fatal("expected HasId true for a recipe with an isId field")
	}
	idRules := withId.IdRules()
	if len(idRules) != 1 || idRules[0].ItemProp != "userId" {
		t.Fatalf("unexpected IdRules: %+v", idRules)
	}

	withoutId := &Recipe{Rules: []Rule{{ItemProp: "nickname", ItemType: TypeString}}}
	if withoutId.HasId() {
		t.Fatal("expected HasId false for a recipe with no isId field")
	}
}

func TestRecipeRuleFor(t *testing.T) {
	rec := &Recipe{Rules: []Rule{{ItemProp: "a", ItemType: TypeString}, {ItemProp: "b", ItemType: TypeInteger}}}
	ru, ok := rec.RuleFor("b")
	if !ok || ru.ItemType != TypeInteger {
		t.Fatalf("RuleFor(b) = %+v, %v", ru, ok)
	}
	if _, ok := rec.RuleFor("missing"); ok {
		t.Fatal("expected RuleFor to report false for an unknown field")
	}
}

func TestPathKey(t *testing.T) {
	if got := PathKey("participants", "0", "personId"); got != "participants.0.personId" {
		t.Fatalf("PathKey = %q", got)
	}
}

func TestDefaultAlgorithmFor(t *testing.T) {
	cases := []struct {
		in   ItemType
		want AlgorithmId
	}{
		{TypeString, AlgoRegister},
		{TypeInteger, AlgoRegister},
		{TypeReferenceToBlob, AlgoRegister},
		{TypeReferenceToObj, AlgoReferenceToObject},
		{TypeArray, AlgoSet},
		{TypeBag, AlgoSet},
		{TypeSet, AlgoSet},
		{TypeMap, AlgoNotAvailable},
		{TypeObject, AlgoNotAvailable},
	}
	for _, c := range cases {
		if got := DefaultAlgorithmFor(c.in); got != c.want {
			t.Errorf("DefaultAlgorithmFor(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

// TestCrdtConfigPriorityGrammar pins down the literal#type=4 / *#type=3 /
// literal=2 / *=1 priority ordering from §4.3: when several patterns in the
// same CrdtConfig match the same concrete path, the most specific one wins.
func TestCrdtConfigPriorityGrammar(t *testing.T) {
	cc := NewCrdtConfig(map[string]AlgorithmId{
		"*":                       AlgoSet,               // priority 1
		"participants":            AlgoRegister,          // priority 2 (literal, no #type)
		"*#Person":                AlgoReferenceToObject, // priority 3 (wildcard + #type)
		"participants#Person":     AlgoOptionalValue,     // priority 4 (literal + #type), most specific
	})

	// All four patterns match this single-segment path; #Person-typed lookup
	// must pick the literal+type entry over the other three.
	if algo, ok := cc.Lookup([]string{"participants"}, "Person"); !ok || algo != AlgoOptionalValue {
		t.Fatalf("Lookup(participants, Person) = %s, %v, want %s", algo, ok, AlgoOptionalValue)
	}

	// Same path, but the element's dynamic type does not match "Person": the
	// #Person-suffixed entries (priority 4 and 3) are excluded, so the plain
	// literal entry (priority 2) wins over the bare wildcard (priority 1).
	if algo, ok := cc.Lookup([]string{"participants"}, "Instance"); !ok || algo != AlgoRegister {
		t.Fatalf("Lookup(participants, Instance) = %s, %v, want %s", algo, ok, AlgoRegister)
	}

	// A path with no literal entry at all falls back through *#Person (3)
	// when the type matches...
	if algo, ok := cc.Lookup([]string{"metadata"}, "Person"); !ok || algo != AlgoReferenceToObject {
		t.Fatalf("Lookup(metadata, Person) = %s, %v, want %s", algo, ok, AlgoReferenceToObject)
	}
	// ...and all the way down to the bare wildcard (1) when it doesn't.
	if algo, ok := cc.Lookup([]string{"metadata"}, "Instance"); !ok || algo != AlgoSet {
		t.Fatalf("Lookup(metadata, Instance) = %s, %v, want %s", algo, ok, AlgoSet)
	}
}

func TestCrdtConfigLookupMissEmitsFalse(t *testing.T) {
	cc := NewCrdtConfig(map[string]AlgorithmId{"participants": AlgoRegister})
	if _, ok := cc.Lookup([]string{"other"}, ""); ok {
		t.Fatal("expected no match for a path with no corresponding pattern")
	}
	var nilConfig *CrdtConfig
	if _, ok := nilConfig.Lookup([]string{"participants"}, ""); ok {
		t.Fatal("expected Lookup on a nil *CrdtConfig to report no match")
	}
}

func TestMatchSegmentsWildcard(t *testing.T) {
	if !matchSegments([]string{"participants", "*"}, []string{"participants", "0"}) {
		t.Fatal("expected wildcard segment to match any element")
	}
	if matchSegments([]string{"participants", "*"}, []string{"other", "0"}) {
		t.Fatal("expected literal segment mismatch to fail")
	}
	if matchSegments([]string{"participants"}, []string{"participants", "extra"}) {
		t.Fatal("expected differing segment counts to fail")
	}
}
