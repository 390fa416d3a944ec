package state

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Property is a typed descriptor bound to a named slot of a machine
// record. Get deserializes the stored value or returns the declared
// default when the slot is absent; Set serializes and writes through
// immediately. The stored representation must always match the declared
// codec; a mismatch is a configuration error surfaced to the caller.
type Property[T any] struct {
	Name    string
	Default T

	encode func(T) (string, error)
	decode func(string) (T, error)
}

func (p Property[T]) Get(s *Store, machine string) (T, error) {
	raw, ok, err := s.Read(machine, p.Name)
	if err != nil {
		return p.Default, err
	}
	if !ok {
		return p.Default, nil
	}
	v, err := p.decode(raw)
	if err != nil {
		return p.Default, fmt.Errorf("attr %q: %w", p.Name, err)
	}
	return v, nil
}

func (p Property[T]) Set(s *Store, machine string, v T) error {
	raw, err := p.encode(v)
	if err != nil {
		return fmt.Errorf("attr %q: %w", p.Name, err)
	}
	return s.Write(machine, p.Name, raw)
}

// Clear resets the slot to absent, so the next Get returns the default.
func (p Property[T]) Clear(s *Store, machine string) error {
	return s.Clear(machine, p.Name)
}

// Bool declares a boolean slot, stored as "1"/"0".
func Bool(name string, def bool) Property[bool] {
	return Property[bool]{
		Name:    name,
		Default: def,
		encode: func(v bool) (string, error) {
			if v {
				return "1", nil
			}
			return "0", nil
		},
		decode: func(raw string) (bool, error) {
			switch raw {
			case "1":
				return true, nil
			case "0":
				return false, nil
			default:
				return false, fmt.Errorf("stored value %q is not a bool", raw)
			}
		},
	}
}

// Int declares an integer slot.
func Int(name string, def int) Property[int] {
	return Property[int]{
		Name:    name,
		Default: def,
		encode:  func(v int) (string, error) { return strconv.Itoa(v), nil },
		decode: func(raw string) (int, error) {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return 0, fmt.Errorf("stored value %q is not an int", raw)
			}
			return v, nil
		},
	}
}

// String declares a string slot, stored verbatim.
func String(name string, def string) Property[string] {
	return Property[string]{
		Name:    name,
		Default: def,
		encode:  func(v string) (string, error) { return v, nil },
		decode:  func(raw string) (string, error) { return raw, nil },
	}
}

// JSON declares a structured slot serialized losslessly as JSON.
func JSON[T any](name string, def T) Property[T] {
	return Property[T]{
		Name:    name,
		Default: def,
		encode: func(v T) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("marshal: %w", err)
			}
			return string(b), nil
		},
		decode: func(raw string) (T, error) {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return v, fmt.Errorf("stored value is not valid JSON: %w", err)
			}
			return v, nil
		},
	}
}
