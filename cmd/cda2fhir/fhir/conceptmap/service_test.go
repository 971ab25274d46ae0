package conceptmap

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) *ConceptMapService {
	t.Helper()
	repo := NewEmbeddedConceptMapRepository(zerolog.Nop())
	if err := repo.LoadConceptMaps(); err != nil {
		t.Fatalf("LoadConceptMaps() error = %v", err)
	}
	return NewConceptMapService(repo, zerolog.Nop())
}

func TestTranslateCode(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name     string
		mapKey   string
		source   string
		want     string
		wildcard bool
		omitted  bool
	}{
		{"male", BirthSex, "Male", "M", false, false},
		{"male padded", BirthSex, "  M ", "M", false, false},
		{"female", BirthSex, "female", "F", false, false},
		{"unspecified", BirthSex, "Not specified in data", "UNK", false, false},
		{"unknown sex falls back", BirthSex, "X", "UNK", true, false},
		{"empty sex omitted", BirthSex, "", "", false, true},
		{"race", Race, "black or african american", "Black or African American", false, false},
		{"race fallback", Race, "Black or African American;White", "not reported", true, false},
		{"ethnicity", Ethnicity, "Hispanic/Latino", "hispanic or latino", false, false},
		{"ethnicity refused", Ethnicity, "Patient Refused", "not reported", false, false},
		{"ethnicity fallback", Ethnicity, "WHT", "unknown", true, false},
		{"ethnicity blank omitted", Ethnicity, "   ", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.TranslateCode(tt.mapKey, tt.source)
			if err != nil {
				t.Fatalf("TranslateCode() error = %v", err)
			}
			if tt.omitted {
				if got != nil {
					t.Fatalf("expected no translation, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a translation, got nil")
			}
			if got.TargetCode != tt.want {
				t.Errorf("TargetCode = %q, want %q", got.TargetCode, tt.want)
			}
			if got.Wildcard != tt.wildcard {
				t.Errorf("Wildcard = %v, want %v", got.Wildcard, tt.wildcard)
			}
		})
	}
}

func TestTranslateCodeUnknownMap(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.TranslateCode("does-not-exist", "Male"); err == nil {
		t.Fatal("expected an error for an unknown map")
	}
}
