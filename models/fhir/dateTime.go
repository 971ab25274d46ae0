package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Precision of a FHIR dateTime value.
type Precision string

const (
	PrecisionYear  Precision = "YYYY"
	PrecisionMonth Precision = "YYYY-MM"
	PrecisionDay   Precision = "YYYY-MM-DD"
	PrecisionFull  Precision = "FULL"
)

var precisionLayouts = map[Precision]string{
	PrecisionYear:  "2006",
	PrecisionMonth: "2006-01",
	PrecisionDay:   "2006-01-02",
}

var fullLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// DateTime represents a FHIR dateTime
type DateTime struct {
	time.Time
	Precision Precision
}

// NewDateTime creates a full precision DateTime from a time.Time
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t, Precision: PrecisionFull}
}

// ParseDateTime accepts the partial and full forms FHIR allows.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, p := range []Precision{PrecisionYear, PrecisionMonth, PrecisionDay} {
		layout := precisionLayouts[p]
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{Time: t, Precision: p}, nil
		}
	}

	var lastErr error
	for _, layout := range fullLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NewDateTime(t), nil
		}
		lastErr = err
	}
	return DateTime{}, fmt.Errorf("invalid datetime format: %s (last error: %v)", s, lastErr)
}

// String returns the datetime in FHIR format based on precision
func (d DateTime) String() string {
	if d.Time.IsZero() {
		return ""
	}
	if layout, ok := precisionLayouts[d.Precision]; ok {
		return d.Time.Format(layout)
	}
	if _, offset := d.Time.Zone(); offset == 0 {
		return d.Time.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return d.Time.Format("2006-01-02T15:04:05.000-07:00")
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	if s == "" {
		*d = DateTime{}
		return nil
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
