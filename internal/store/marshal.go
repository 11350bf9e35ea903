package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout stores timestamps as sortable UTC text.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalJSON renders v as compact JSON TEXT without HTML escaping.
// Map keys come out sorted, so equal values store equal text.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func marshalSources(sources []string) (string, error) {
	if sources == nil {
		sources = []string{}
	}
	s, err := marshalJSON(sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	return s, nil
}

func unmarshalSources(data string) ([]string, error) {
	out := []string{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	return out, nil
}

func marshalChanges(c ChangeSummary) (string, error) {
	s, err := marshalJSON(c)
	if err != nil {
		return "", fmt.Errorf("marshal changes: %w", err)
	}
	return s, nil
}

func unmarshalChanges(data string) (ChangeSummary, error) {
	var c ChangeSummary
	if data == "" || data == "{}" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return ChangeSummary{}, fmt.Errorf("unmarshal changes: %w", err)
	}
	return c, nil
}

func marshalValidation(v ValidationSummary) (string, error) {
	s, err := marshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal validation: %w", err)
	}
	return s, nil
}

func unmarshalValidation(data string) (ValidationSummary, error) {
	var v ValidationSummary
	if data == "" || data == "{}" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return ValidationSummary{}, fmt.Errorf("unmarshal validation: %w", err)
	}
	return v, nil
}
