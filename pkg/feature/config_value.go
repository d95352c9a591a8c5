package feature

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ValueKind discriminates the config value union.
type ValueKind string

const (
	KindBool   ValueKind = "bool"
	KindNumber ValueKind = "number"
	KindString ValueKind = "string"
)

// ConfigValue is a tagged union of the scalar types a feature config entry
// may hold. Update and validation logic switches on Kind instead of relying
// on runtime type inspection.
type ConfigValue struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
}

// BoolValue wraps a boolean config value.
func BoolValue(v bool) ConfigValue {
	return ConfigValue{Kind: KindBool, Bool: v}
}

// NumberValue wraps a numeric config value.
func NumberValue(v float64) ConfigValue {
	return ConfigValue{Kind: KindNumber, Number: v}
}

// StringValue wraps a string config value.
func StringValue(v string) ConfigValue {
	return ConfigValue{Kind: KindString, Str: v}
}

// Validate checks the kind tag is one of the known scalar kinds.
func (v ConfigValue) Validate() error {
	switch v.Kind {
	case KindBool, KindNumber, KindString:
		return nil
	}
	return errors.Join(ErrValidation, fmt.Errorf("unknown config value kind %q", v.Kind))
}

// Equal reports whether two values hold the same kind and payload.
func (v ConfigValue) Equal(other ConfigValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number == other.Number
	case KindString:
		return v.Str == other.Str
	}
	return false
}

// Value returns the payload as an untyped scalar, used for audit diffs and
// JSON encoding.
func (v ConfigValue) Value() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	}
	return nil
}

type configValueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v ConfigValue) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(v.Value())
	if err != nil {
		return nil, err
	}
	return json.Marshal(configValueJSON{Kind: v.Kind, Value: payload})
}

// UnmarshalJSON decodes the tagged representation produced by MarshalJSON.
func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	var raw configValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := ConfigValue{Kind: raw.Kind}
	switch raw.Kind {
	case KindBool:
		if err := json.Unmarshal(raw.Value, &decoded.Bool); err != nil {
			return err
		}
	case KindNumber:
		if err := json.Unmarshal(raw.Value, &decoded.Number); err != nil {
			return err
		}
	case KindString:
		if err := json.Unmarshal(raw.Value, &decoded.Str); err != nil {
			return err
		}
	default:
		return errors.Join(ErrValidation, fmt.Errorf("unknown config value kind %q", raw.Kind))
	}

	*v = decoded
	return nil
}
