package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestValidateDirectoryClean(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"Patient.ndjson": `{"resourceType":"Patient","id":"p1","extension":[{"url":"x","valueReference":{"reference":"ResearchStudy/s1"}}]}` + "\n",
		"ResearchStudy.ndjson": `{"resourceType":"ResearchStudy","id":"s1","status":"active"}` + "\n" +
			`{"resourceType":"ResearchStudy","id":"s2","status":"active","partOf":[{"reference":"ResearchStudy/s1"}]}` + "\n",
		"notes.txt": "ignored",
	})

	report, err := NewValidateService(zerolog.Nop()).ValidateDirectory(dir)
	if err != nil {
		t.Fatalf("ValidateDirectory() error = %v", err)
	}
	if !report.OK() {
		t.Fatalf("unexpected issues: %v", report.Issues)
	}
	if report.Files != 2 || report.Resources != 3 {
		t.Errorf("files = %d, resources = %d, want 2 and 3", report.Files, report.Resources)
	}
}

func TestValidateDirectoryIssues(t *testing.T) {
	first := `{"resourceType":"Patient","id":"p1"}` + "\n"
	dir := writeFiles(t, map[string]string{
		"Patient.ndjson": first +
			`{"resourceType":"Patient","id":"p1"}` + "\n" +
			`{not json` + "\n" +
			`{"resourceType":"Patient"}` + "\n" +
			`{"resourceType":"Specimen","id":"sp1","subject":{"reference":"Patient/missing"}}` + "\n",
	})

	report, err := NewValidateService(zerolog.Nop()).ValidateDirectory(dir)
	if err != nil {
		t.Fatalf("ValidateDirectory() error = %v", err)
	}

	want := []struct {
		code IssueType
		line int
	}{
		{IssueTypeDuplicate, 2},
		{IssueTypeInvalid, 3},
		{IssueTypeStructure, 4},
		{IssueTypeStructure, 5},
		{IssueTypeNotFound, 5},
	}
	if len(report.Issues) != len(want) {
		t.Fatalf("got %d issues, want %d: %v", len(report.Issues), len(want), report.Issues)
	}
	for i, w := range want {
		got := report.Issues[i]
		if got.Code != w.code || got.Line != w.line {
			t.Errorf("issue %d = %s line %d, want %s line %d", i, got.Code, got.Line, w.code, w.line)
		}
		if got.File != "Patient.ndjson" {
			t.Errorf("issue %d file = %q", i, got.File)
		}
	}
	if report.Issues[0].Offset != int64(len(first)) {
		t.Errorf("duplicate offset = %d, want %d", report.Issues[0].Offset, len(first))
	}
	if !strings.Contains(report.Issues[4].Details, "Patient/missing") {
		t.Errorf("details = %q", report.Issues[4].Details)
	}
}

func TestCollectReferences(t *testing.T) {
	doc := map[string]any{
		"subject": map[string]any{"reference": "Patient/b"},
		"focus":   []any{map[string]any{"reference": "Patient/a"}, map[string]any{"reference": "Patient/b"}},
		"other":   map[string]any{"reference": "#contained"},
		"url":     map[string]any{"reference": "https://example.org/Patient/c"},
	}
	got := collectReferences(doc)
	if len(got) != 2 || got[0] != "Patient/a" || got[1] != "Patient/b" {
		t.Errorf("collectReferences() = %v", got)
	}
}

func TestExcerptCutsOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"short line kept", `{"id":"é"}`, len(`{"id":"é"}`)},
		{"ascii cut", strings.Repeat("a", excerptLength+10), excerptLength + len("...")},
		// "é" is two bytes; the limit falls inside the last one.
		{"multi-byte cut", strings.Repeat("a", excerptLength-1) + "é", excerptLength - 1 + len("...")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := excerpt([]byte(tt.raw))
			if !utf8.ValidString(got) {
				t.Errorf("excerpt %q is not valid UTF-8", got)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
