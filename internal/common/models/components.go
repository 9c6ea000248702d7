package models

import (
	"encoding/json"
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ComponentKind string

const (
	KindColumns      ComponentKind = "columns"
	KindFilters      ComponentKind = "filters"
	KindConditions   ComponentKind = "conditions"
	KindCalculations ComponentKind = "calculations"
	KindOrdering     ComponentKind = "ordering"
	KindPermissions  ComponentKind = "permissions"
	KindPlot         ComponentKind = "plot"
)

// ComponentKinds lists every kind in its canonical order.
var ComponentKinds = []ComponentKind{
	KindColumns, KindFilters, KindConditions, KindCalculations,
	KindOrdering, KindPermissions, KindPlot,
}

// Element is one configured instance inside a component, bound to a plugin.
type Element struct {
	ID         string            `json:"id"`
	PluginName string            `json:"pluginname"`
	FullName   string            `json:"pluginfullname,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	FormData   map[string]string `json:"formdata,omitempty"`
}

// Component holds an ordered element list (insertion order is display and
// evaluation order) plus optional component-level config such as the combined
// condition expression.
type Component struct {
	Elements []Element         `json:"elements,omitempty"`
	Config   map[string]string `json:"config,omitempty"`
}

// ConditionExpr returns the configured combined expression, if any.
func (c *Component) ConditionExpr() string {
	if c.Config == nil {
		return ""
	}
	return c.Config["conditionexpr"]
}

// ComponentTree is a report's full decoded configuration.
type ComponentTree struct {
	Columns      Component `json:"columns,omitempty"`
	Filters      Component `json:"filters,omitempty"`
	Conditions   Component `json:"conditions,omitempty"`
	Calculations Component `json:"calculations,omitempty"`
	Ordering     Component `json:"ordering,omitempty"`
	Permissions  Component `json:"permissions,omitempty"`
	Plot         Component `json:"plot,omitempty"`
}

// Component returns the component for a kind; unknown kinds return nil.
func (t *ComponentTree) Component(kind ComponentKind) *Component {
	switch kind {
	case KindColumns:
		return &t.Columns
	case KindFilters:
		return &t.Filters
	case KindConditions:
		return &t.Conditions
	case KindCalculations:
		return &t.Calculations
	case KindOrdering:
		return &t.Ordering
	case KindPermissions:
		return &t.Permissions
	case KindPlot:
		return &t.Plot
	}
	return nil
}

// ElementIDs returns the set of every element id in use across the tree.
func (t *ComponentTree) ElementIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, kind := range ComponentKinds {
		for _, el := range t.Component(kind).Elements {
			ids[el.ID] = struct{}{}
		}
	}
	return ids
}

// NewElementID issues an id guaranteed unique within the tree. Uniqueness is
// structural, against the set of ids actually in use, never a substring scan
// of serialized text.
func (t *ComponentTree) NewElementID() string {
	used := t.ElementIDs()
	for {
		id := primitive.NewObjectID().Hex()
		if _, taken := used[id]; !taken {
			return id
		}
	}
}

// FindElement locates an element by id anywhere in the tree.
func (t *ComponentTree) FindElement(id string) (ComponentKind, *Element) {
	for _, kind := range ComponentKinds {
		comp := t.Component(kind)
		for i := range comp.Elements {
			if comp.Elements[i].ID == id {
				return kind, &comp.Elements[i]
			}
		}
	}
	return "", nil
}

// EncodeComponents serializes a tree to its storage blob. Every string leaf is
// percent-encoded before JSON marshalling so arbitrary user text survives the
// round trip untouched: DecodeComponents(EncodeComponents(t)) == t.
func EncodeComponents(tree *ComponentTree) (string, error) {
	escaped := ComponentTree{}
	for _, kind := range ComponentKinds {
		src := tree.Component(kind)
		dst := escaped.Component(kind)
		for _, el := range src.Elements {
			dst.Elements = append(dst.Elements, escapeElement(el))
		}
		dst.Config = escapeMap(src.Config)
	}
	raw, err := json.Marshal(&escaped)
	if err != nil {
		return "", fmt.Errorf("encode components: %w", err)
	}
	return string(raw), nil
}

// DecodeComponents parses a storage blob into a tree. An empty blob decodes to
// an empty tree; a malformed blob also yields an empty tree but reports the
// parse error so the caller can log it instead of silently swallowing it.
func DecodeComponents(blob string) (*ComponentTree, error) {
	tree := &ComponentTree{}
	if blob == "" {
		return tree, nil
	}
	var escaped ComponentTree
	if err := json.Unmarshal([]byte(blob), &escaped); err != nil {
		return &ComponentTree{}, fmt.Errorf("decode components: %w", err)
	}
	for _, kind := range ComponentKinds {
		src := escaped.Component(kind)
		dst := tree.Component(kind)
		for _, el := range src.Elements {
			dst.Elements = append(dst.Elements, unescapeElement(el))
		}
		dst.Config = unescapeMap(src.Config)
	}
	return tree, nil
}

func escapeElement(el Element) Element {
	return Element{
		ID:         url.QueryEscape(el.ID),
		PluginName: url.QueryEscape(el.PluginName),
		FullName:   url.QueryEscape(el.FullName),
		Summary:    url.QueryEscape(el.Summary),
		FormData:   escapeMap(el.FormData),
	}
}

func unescapeElement(el Element) Element {
	return Element{
		ID:         unescape(el.ID),
		PluginName: unescape(el.PluginName),
		FullName:   unescape(el.FullName),
		Summary:    unescape(el.Summary),
		FormData:   unescapeMap(el.FormData),
	}
}

func escapeMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = url.QueryEscape(v)
	}
	return out
}

func unescapeMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = unescape(v)
	}
	return out
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		// A leaf that was never escaped is kept as-is.
		return s
	}
	return out
}
