package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexString accepts a JSON string, number, boolean or null and keeps its textual form.
// Spreadsheet tooling frequently serialises NISN, phone numbers and years as numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = FlexString(fmt.Sprintf("%t", b))
	case '{', '[':
		return fmt.Errorf("expected scalar value, got %s", string(data[:1]))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(trimIntegralFloat(n.String()))
	}
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Empty reports whether the trimmed value is blank.
func (f FlexString) Empty() bool {
	return f.String() == ""
}

func trimIntegralFloat(raw string) string {
	if i := strings.IndexByte(raw, '.'); i > 0 && strings.Trim(raw[i+1:], "0") == "" {
		return raw[:i]
	}
	return raw
}
