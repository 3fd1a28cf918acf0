package providers

import (
	"encoding/json"
	"testing"
)

func TestNullFloat_Unmarshal(t *testing.T) {
	type doc struct {
		V NullFloat `json:"v"`
	}

	cases := []struct {
		in     string
		want   *float64
		absent bool
	}{
		{`{"v": 12.5}`, fp(12.5), false},
		{`{"v": "12.5"}`, fp(12.5), false},
		{`{"v": "0"}`, fp(0), false},
		{`{"v": null}`, nil, true},
		{`{"v": ""}`, nil, true},
		{`{"v": "  "}`, nil, true},
		{`{}`, nil, true},
	}
	for _, tc := range cases {
		var d doc
		if err := json.Unmarshal([]byte(tc.in), &d); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.in, err)
		}
		if tc.absent {
			if d.V.Value != nil {
				t.Errorf("%s: got %v, want absent", tc.in, *d.V.Value)
			}
			continue
		}
		if d.V.Value == nil || *d.V.Value != *tc.want {
			t.Errorf("%s: got %v, want %v", tc.in, d.V.Value, *tc.want)
		}
	}
}

func TestNullFloat_MalformedString(t *testing.T) {
	var d struct {
		V NullFloat `json:"v"`
	}
	if err := json.Unmarshal([]byte(`{"v": "12,5"}`), &d); err == nil {
		t.Fatal("expected error for malformed numeric string")
	}
}

func fp(v float64) *float64 { return &v }
