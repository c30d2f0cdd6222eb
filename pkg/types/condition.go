package types

import (
	"encoding/json"
	"fmt"

	"github.com/archkit/archkit/pkg/xjson"
)

// ConditionKind tags which variant a ConditionTree node holds.
type ConditionKind string

const (
	KindAll  ConditionKind = "all"
	KindAny  ConditionKind = "any"
	KindLeaf ConditionKind = "leaf"
)

// ConditionTree is the tagged variant All | Any | Leaf described by the
// design notes: a plain Go struct with a Kind discriminant, not an
// inheritance hierarchy. Exactly one of All/Any/Leaf is populated,
// matching whichever Kind is set.
type ConditionTree struct {
	Kind ConditionKind   `json:"-"`
	All  []ConditionTree `json:"-" validate:"omitempty,dive"`
	Any  []ConditionTree `json:"-" validate:"omitempty,dive"`
	Leaf *Leaf           `json:"-"`
}

// Leaf is a single fact/operator comparison.
type Leaf struct {
	Fact     string            `json:"fact" validate:"required"`
	Operator string            `json:"operator" validate:"required"`
	Value    xjson.Value       `json:"value"`
	Params   map[string]any    `json:"params,omitempty"`
	Path     string            `json:"path,omitempty"`
	Priority int               `json:"priority,omitempty"`
}

// UnmarshalJSON decides the Kind from which wire field is present.
func (c *ConditionTree) UnmarshalJSON(data []byte) error {
	var wire struct {
		All []json.RawMessage `json:"all"`
		Any []json.RawMessage `json:"any"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding condition: %w", err)
	}

	switch {
	case wire.All != nil:
		c.Kind = KindAll
		c.All = make([]ConditionTree, len(wire.All))
		for i, raw := range wire.All {
			if err := json.Unmarshal(raw, &c.All[i]); err != nil {
				return fmt.Errorf("decoding all[%d]: %w", i, err)
			}
		}
	case wire.Any != nil:
		c.Kind = KindAny
		c.Any = make([]ConditionTree, len(wire.Any))
		for i, raw := range wire.Any {
			if err := json.Unmarshal(raw, &c.Any[i]); err != nil {
				return fmt.Errorf("decoding any[%d]: %w", i, err)
			}
		}
	default:
		var leaf Leaf
		if err := json.Unmarshal(data, &leaf); err != nil {
			return fmt.Errorf("decoding leaf: %w", err)
		}
		c.Kind = KindLeaf
		c.Leaf = &leaf
	}
	return nil
}

// MarshalJSON round-trips back to the wire shape.
func (c ConditionTree) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindAll:
		return json.Marshal(struct {
			All []ConditionTree `json:"all"`
		}{c.All})
	case KindAny:
		return json.Marshal(struct {
			Any []ConditionTree `json:"any"`
		}{c.Any})
	case KindLeaf:
		return json.Marshal(c.Leaf)
	default:
		return nil, fmt.Errorf("condition has no kind set")
	}
}
