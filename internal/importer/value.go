package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindList
)

// Value is a cell payload: null, string, integer or a list of strings.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	List []string
}

// Null returns an empty value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int wraps an integer.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// List wraps a list of strings.
func List(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{Kind: KindList, List: cp}
}

// IsNull reports whether the value carries nothing.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text renders the value as it would appear in a spreadsheet cell.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindList:
		return strings.Join(v.List, ",")
	default:
		return ""
	}
}

// Trimmed strips surrounding whitespace from string values and leaves other kinds untouched.
func (v Value) Trimmed() Value {
	if v.Kind == KindString {
		return String(strings.TrimSpace(v.Str))
	}
	return v
}

// Empty reports whether the value is null or a blank string.
func (v Value) Empty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.Str) == ""
	case KindList:
		return len(v.List) == 0
	default:
		return false
	}
}

// MarshalJSON encodes the value as a JSON null, string, number or array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindInt:
		return json.Marshal(v.Int)
	case KindList:
		return json.Marshal(v.List)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers and arrays of strings.
// Non-integral numbers are kept as their textual form.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("cell list must contain strings: %w", err)
		}
		*v = List(items)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = String(strconv.FormatBool(b))
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("unsupported cell value %s", string(data))
		}
		if n, err := num.Int64(); err == nil {
			*v = Int(n)
			return nil
		}
		*v = String(num.String())
	}
	return nil
}

// Cell is one spreadsheet cell with its source coordinates.
type Cell struct {
	Value    Value `json:"value"`
	RowIndex int   `json:"rowIndex"`
	ColIndex int   `json:"columnIndex"`
}

// Row maps field keys to cells. Keys that match no catalog field are ignored.
type Row map[string]Cell
