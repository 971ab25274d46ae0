package transformer

import (
	"reflect"
	"testing"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name  string
		value string
		sep   string
		want  []string
	}{
		{"sites", " Breast ,Lymph node,, ", SiteSeparator, []string{"Breast", "Lymph node"}},
		{"projects", "TCGA-BRCA; CPTAC-3", ProjectSeparator, []string{"TCGA-BRCA", "CPTAC-3"}},
		{"sentinel keeps value whole", "Kidney, NOS", SiteSeparator, []string{"Kidney, NOS"}},
		{"empty", "   ", SiteSeparator, nil},
		{"only separators", " , , ", SiteSeparator, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decompose(tt.value, tt.sep); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decompose(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestSplitCodeDisplay(t *testing.T) {
	tests := []struct {
		value   string
		code    string
		display string
		ok      bool
	}{
		{"8500/3: Infiltrating duct carcinoma", "8500/3", "Infiltrating duct carcinoma", true},
		{"C50.9 : Breast, unspecified", "C50.9", "Breast, unspecified", true},
		{"Adenocarcinoma, NOS", "", "", false},
		{"Lung cancer", "", "", false},
		{": display only", "", "", false},
	}
	for _, tt := range tests {
		code, display, ok := SplitCodeDisplay(tt.value)
		if code != tt.code || display != tt.display || ok != tt.ok {
			t.Errorf("SplitCodeDisplay(%q) = %q, %q, %v", tt.value, code, display, ok)
		}
	}
}

func TestSplitProjectsDedupes(t *testing.T) {
	got := SplitProjects("A;B; A ;C")
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SplitProjects() = %v, want %v", got, want)
	}
}
