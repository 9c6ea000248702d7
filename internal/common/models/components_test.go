package models

import (
	"reflect"
	"testing"
)

func sampleTree() *ComponentTree {
	return &ComponentTree{
		Columns: Component{Elements: []Element{
			{ID: "col1", PluginName: "fullname", FullName: "User full name"},
			{ID: "col2", PluginName: "field", FormData: map[string]string{"field": "email", "column": "Email"}},
		}},
		Filters: Component{Elements: []Element{
			{ID: "flt1", PluginName: "status"},
		}},
		Conditions: Component{
			Elements: []Element{
				{ID: "cnd1", PluginName: "enrolmentcount", FormData: map[string]string{"operator": "gte", "value": "2"}},
			},
			Config: map[string]string{"conditionexpr": "c1"},
		},
	}
}

func TestComponentsRoundTrip(t *testing.T) {
	tree := sampleTree()

	blob, err := EncodeComponents(tree)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeComponents(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(tree, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, tree)
	}
}

func TestComponentsRoundTripHostileText(t *testing.T) {
	tree := &ComponentTree{
		Columns: Component{Elements: []Element{
			{
				ID:         "a",
				PluginName: "field",
				Summary:    `100% "quoted" & <tagged>, with = signs and ?marks`,
				FormData:   map[string]string{"field": "u.email", "column": "E-mail / contact"},
			},
		}},
	}

	blob, err := EncodeComponents(tree)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeComponents(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(tree, decoded) {
		t.Fatalf("hostile text did not survive the round trip:\n got %+v\nwant %+v", decoded, tree)
	}
}

func TestDecodeEmptyBlob(t *testing.T) {
	tree, err := DecodeComponents("")
	if err != nil {
		t.Fatalf("empty blob must not error: %v", err)
	}
	if len(tree.ElementIDs()) != 0 {
		t.Fatal("empty blob must decode to an empty tree")
	}
}

func TestDecodeMalformedBlob(t *testing.T) {
	tree, err := DecodeComponents("{not json")
	if err == nil {
		t.Fatal("malformed blob must report its parse error")
	}
	if tree == nil || len(tree.ElementIDs()) != 0 {
		t.Fatal("malformed blob must still yield a usable empty tree")
	}
}

func TestNewElementIDUnique(t *testing.T) {
	tree := sampleTree()
	seen := tree.ElementIDs()

	for i := 0; i < 100; i++ {
		id := tree.NewElementID()
		if _, taken := seen[id]; taken {
			t.Fatalf("issued duplicate element id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestFindElement(t *testing.T) {
	tree := sampleTree()

	kind, el := tree.FindElement("flt1")
	if kind != KindFilters || el == nil || el.PluginName != "status" {
		t.Fatalf("FindElement(flt1) = %v, %+v", kind, el)
	}

	if _, el := tree.FindElement("missing"); el != nil {
		t.Fatalf("FindElement(missing) = %+v, want nil", el)
	}
}
