package main

import (
	"testing"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"wet=0.4", "gains=3,0,-2", " time = 0.25"})
	if err != nil {
		t.Fatal(err)
	}
	if got["wet"] != 0.4 {
		t.Fatalf("wet = %v", got["wet"])
	}
	list, ok := got["gains"].([]any)
	if !ok || len(list) != 3 || list[2] != -2.0 {
		t.Fatalf("gains = %#v", got["gains"])
	}
	if got["time"] != 0.25 {
		t.Fatalf("time = %v", got["time"])
	}

	for _, bad := range []string{"wet", "=1", "wet=loud", "gains=1,,2"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) should fail", bad)
		}
	}
}

func TestDBString(t *testing.T) {
	tests := map[float64]string{
		-6.02: "-6.0 dBFS",
		0:     "0.0 dBFS",
	}
	for db, want := range tests {
		if got := dbString(db); got != want {
			t.Errorf("dbString(%v) = %q, want %q", db, got, want)
		}
	}
}
