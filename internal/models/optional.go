package models

import "encoding/json"

// OptionalString distinguishes an absent value from an empty one.
type OptionalString struct {
	Value string
	Valid bool
}

// Some wraps a present value, which may be empty.
func Some(value string) OptionalString {
	return OptionalString{Value: value, Valid: true}
}

// None is the absent value.
func None() OptionalString {
	return OptionalString{}
}

// Get returns the value and whether it is present.
func (o OptionalString) Get() (string, bool) {
	return o.Value, o.Valid
}

// Ptr returns nil when absent.
func (o OptionalString) Ptr() *string {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON encodes absent values as null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as absent and any string (including "") as present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*o = OptionalString{}
		return nil
	}
	*o = Some(*raw)
	return nil
}
