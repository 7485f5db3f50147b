package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap represents a generic JSON object stored in a json/jsonb or text column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(b), nil
}

// Scan decodes numbers as json.Number so integers survive the round trip.
func (m *JSONMap) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil || raw == nil {
		*m = nil
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := JSONMap{}
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	*m = out
	return nil
}

// StringMap is a flat string map stored as JSON; NULL scans to nil.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(b), nil
}

func (m *StringMap) Scan(src interface{}) error {
	raw, err := columnBytes(src)
	if err != nil || raw == nil {
		*m = nil
		return err
	}

	out := StringMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	*m = out
	return nil
}

func columnBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
