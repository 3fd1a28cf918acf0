package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NullFloat decodes provider numeric fields that arrive inconsistently as a
// JSON number, a numeric string, an empty string, or null. Empty string and
// null both mean "absent" - never zero, since zero would misrepresent the
// actual billing state.
type NullFloat struct {
	Value *float64
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		n.Value = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			n.Value = nil
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		n.Value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// Int returns the value truncated to an int, or nil when absent.
func (n NullFloat) Int() *int {
	if n.Value == nil {
		return nil
	}
	v := int(*n.Value)
	return &v
}
