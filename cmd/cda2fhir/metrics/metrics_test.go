package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Emitted("Patient", "Patient", 3)
	r.Emitted("Patient", "Observation", 0)
	r.Skipped("Condition", "skip")
	r.Skipped("Condition", "skip")
	r.Batch("Patient")

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := r.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		`cda2fhir_resources_emitted_total{family="Patient",resource_type="Patient"} 3`,
		`cda2fhir_records_skipped_total{family="Condition",reason="skip"} 2`,
		`cda2fhir_batches_total{family="Patient"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile misses %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, `resource_type="Observation"`) {
		t.Errorf("zero emission created a series:\n%s", text)
	}
}
