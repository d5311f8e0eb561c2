package board

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field that distinguishes absent, explicit null and a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a set Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// Get returns the value when the field is set to a non-null value.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func applyPtr[T any](field **T, o Optional[T]) {
	if !o.Set {
		return
	}
	if o.Null {
		*field = nil
		return
	}
	v := o.Value
	*field = &v
}
