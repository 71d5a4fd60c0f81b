package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Field is a single extracted key/value pair
type Field struct {
	Key   string
	Value string
}

// Fields is an insertion-ordered string map of extra values found in a lead body
// (city, address, ...). It encodes as a JSON object with keys in insertion order.
type Fields []Field

// Get returns the value for key
func (f Fields) Get(key string) (string, bool) {
	for _, kv := range f {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set sets key to value, keeping the original position of an existing key
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// SetIfAbsent sets key only when it is not present yet
func (f *Fields) SetIfAbsent(key, value string) {
	if _, ok := f.Get(key); !ok {
		*f = append(*f, Field{Key: key, Value: value})
	}
}

// MarshalJSON encodes fields as an ordered JSON object
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order
func (f *Fields) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			// Non-string values are kept in their JSON form
			value = string(raw)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

// Value implements driver.Valuer
func (f Fields) Value() (driver.Value, error) {
	b, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (f *Fields) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = Fields{}
		return nil
	case string:
		return f.UnmarshalJSON([]byte(v))
	case []byte:
		return f.UnmarshalJSON(v)
	default:
		return fmt.Errorf("fields: cannot scan %T", src)
	}
}
