package store

import (
	"testing"
	"time"
)

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2025, 11, 20, 9, 30, 0, 123, time.FixedZone("X", 3600))

	got, err := parseTime(formatTime(in))
	if err != nil {
		t.Fatalf("parseTime() failed: %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}

	if formatTime(time.Time{}) != "" {
		t.Error("zero time should format as empty")
	}
	zero, err := parseTime("")
	if err != nil || !zero.IsZero() {
		t.Errorf("parseTime(\"\") = %v, %v; want zero time", zero, err)
	}
	if _, err := parseTime("yesterday"); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestMarshalJSON_NoHTMLEscaping(t *testing.T) {
	got, err := marshalSources([]string{"a&b <c>.xlsx"})
	if err != nil {
		t.Fatalf("marshalSources() failed: %v", err)
	}
	if want := `["a&b <c>.xlsx"]`; got != want {
		t.Errorf("marshalSources() = %s, want %s", got, want)
	}
}

func TestMarshalSources_Nil(t *testing.T) {
	got, err := marshalSources(nil)
	if err != nil {
		t.Fatalf("marshalSources() failed: %v", err)
	}
	if got != "[]" {
		t.Errorf("marshalSources(nil) = %s, want []", got)
	}
}

func TestUnmarshalValidation_SortedKeys(t *testing.T) {
	data, err := marshalValidation(ValidationSummary{HasIssues: true, Checks: map[string]int{"b": 2, "a": 1}})
	if err != nil {
		t.Fatalf("marshalValidation() failed: %v", err)
	}
	if want := `{"has_issues":true,"checks":{"a":1,"b":2}}`; data != want {
		t.Errorf("marshalValidation() = %s, want %s", data, want)
	}
	v, err := unmarshalValidation(data)
	if err != nil {
		t.Fatalf("unmarshalValidation() failed: %v", err)
	}
	if v.Checks["b"] != 2 || !v.HasIssues {
		t.Errorf("unexpected round trip: %+v", v)
	}
}
