package processor

import (
	"fmt"
	"strings"
	"time"
)

// Family is one resource family. Families run in the order of Families.
type Family string

const (
	FamilyResearchStudy            Family = "ResearchStudy"
	FamilyPatient                  Family = "Patient"
	FamilyResearchSubject          Family = "ResearchSubject"
	FamilySpecimen                 Family = "Specimen"
	FamilyCondition                Family = "Condition"
	FamilyMedicationAdministration Family = "MedicationAdministration"
	FamilyDocumentReference        Family = "DocumentReference"
	FamilyMutation                 Family = "Mutation"
)

// Families lists every family in run order. Studies come first so that
// every later part-of reference has its target.
var Families = []Family{
	FamilyResearchStudy,
	FamilyPatient,
	FamilyResearchSubject,
	FamilySpecimen,
	FamilyCondition,
	FamilyMedicationAdministration,
	FamilyDocumentReference,
	FamilyMutation,
}

// ParseFamily matches a family name case-insensitively. "treatment",
// "file" and "mutation" are accepted as aliases.
func ParseFamily(name string) (Family, error) {
	name = strings.TrimSpace(name)
	for _, f := range Families {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	switch strings.ToLower(name) {
	case "treatment", "medication":
		return FamilyMedicationAdministration, nil
	case "file", "files":
		return FamilyDocumentReference, nil
	case "diagnosis":
		return FamilyCondition, nil
	}
	return "", fmt.Errorf("unknown resource family %q", name)
}

// ParseFamilies parses a list of family names; blanks are ignored.
func ParseFamilies(names []string) ([]Family, error) {
	var out []Family
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := ParseFamily(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// State is the position of a family in its batch loop.
type State int

const (
	StateNotStarted State = iota
	StateLoadingBatch
	StateTransforming
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateLoadingBatch:
		return "LOADING_BATCH"
	case StateTransforming:
		return "TRANSFORMING"
	case StateWriting:
		return "WRITING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FamilyReport summarizes one family of a run.
type FamilyReport struct {
	Family   Family
	State    State
	Batches  int
	Records  int
	Skipped  int
	Emitted  map[string]int
	Duration time.Duration
	Err      error
}

// Report summarizes a run, one entry per enabled family in run order.
type Report struct {
	Families []FamilyReport
}

// Family returns the report of f, or nil when f did not run.
func (r *Report) Family(f Family) *FamilyReport {
	for i := range r.Families {
		if r.Families[i].Family == f {
			return &r.Families[i]
		}
	}
	return nil
}
