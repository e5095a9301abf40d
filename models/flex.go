package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The marketplace is inconsistent about scalar encodings: the same field can
// arrive as a JSON number, a quoted number, null, or be missing. The Flex
// types below never fail to decode; anything unusable becomes the zero value
// with Valid=false so one bad field cannot reject a whole payload.

var jsonNull = []byte("null")

// FlexFloat decodes numbers and numeric strings into a float64.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	raw, ok := scalarText(data)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}

// FlexInt decodes integers, integral floats and numeric strings.
type FlexInt struct {
	Value int64
	Valid bool
}

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	*i = FlexInt{}
	raw, ok := scalarText(data)
	if !ok {
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		i.Value, i.Valid = v, true
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		i.Value, i.Valid = int64(v), true
	}
	return nil
}

func (i FlexInt) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return jsonNull, nil
	}
	return json.Marshal(i.Value)
}

// FlexString keeps the literal text of a string or number. Numbers are kept
// verbatim so 18-decimal wei quantities never pass through float64.
type FlexString struct {
	Value string
	Valid bool
}

func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = FlexString{}
	raw, ok := scalarText(data)
	if !ok {
		return nil
	}
	s.Value, s.Valid = raw, raw != ""
	return nil
}

func (s FlexString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return jsonNull, nil
	}
	return json.Marshal(s.Value)
}

// scalarText returns the text of a JSON string or number literal. Objects,
// arrays, booleans and null report false.
func scalarText(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}
