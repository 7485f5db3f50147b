package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

// Payload is the storage-neutral field set of an event.
//
// Values read back from storage are JSON-decoded, so accessors accept the
// representations JSON produces (json.Number, float64, RFC 3339 strings) as
// well as the native Go values an in-memory payload holds.
type Payload map[string]any

// Clone returns a shallow copy so upcasters never mutate the caller's map.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns a required string field.
func (p Payload) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", apperrors.NewMissingField(key, "")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, v)
	}
	return s, nil
}

// StringOr returns the field or def when it is absent.
func (p Payload) StringOr(key, def string) (string, error) {
	if !p.Has(key) || p[key] == nil {
		return def, nil
	}
	return p.String(key)
}

// Int returns a required integer field.
func (p Payload) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, apperrors.NewMissingField(key, "")
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field %q: %v is not an integer", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("field %q: expected integer, got %T", key, v)
	}
}

// Bool returns a required boolean field.
func (p Payload) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, apperrors.NewMissingField(key, "")
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// Time returns a required timestamp field.
func (p Payload) Time(key string) (time.Time, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return time.Time{}, apperrors.NewMissingField(key, "")
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", key, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("field %q: expected timestamp, got %T", key, v)
	}
}

// Strings returns a required list of strings.
func (p Payload) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, apperrors.NewMissingField(key, "")
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %q[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected list, got %T", key, v)
	}
}
