package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		1234:  "12.34",
		-250:  "-2.50",
		10000: "100.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Decimal(); got != want {
			t.Errorf("Decimal(%d) = %q, want %q", cents, got, want)
		}
	}
	if got := (Money{Cents: 1234}).Format("usd"); got != "usd 12.34" {
		t.Errorf("Format = %q", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "3,99"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.Cents != 1250 || payload.B.Cents != 399 {
		t.Fatalf("got %d and %d", payload.A.Cents, payload.B.Cents)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.50,"b":3.99}` {
		t.Fatalf("marshal = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"a": -1.5, "b": "-0,25"}`), &payload); err != nil {
		t.Fatalf("unmarshal negative: %v", err)
	}
	if payload.A.Cents != -150 || payload.B.Cents != -25 {
		t.Fatalf("got %d and %d", payload.A.Cents, payload.B.Cents)
	}
	if err := payload.A.Validate(); err == nil {
		t.Fatalf("expected negative amount to fail validation")
	}
	if err := json.Unmarshal([]byte(`{"a": "12a"}`), &payload); err == nil {
		t.Fatalf("expected malformed amount to be rejected")
	}
}
