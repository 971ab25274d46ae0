package transformer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/fhir/conceptmap"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
	"github.com/rs/zerolog"
)

// ErrSkipRecord marks a source record that cannot produce a well-formed
// resource. Callers log it and continue with the next record.
var ErrSkipRecord = errors.New("record skipped")

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkipRecord, fmt.Sprintf(format, args...))
}

// Code systems and extension urls.
const (
	SystemLOINC               = "http://loinc.org"
	SystemSNOMED              = "http://snomed.info/sct"
	SystemUCUM                = "http://unitsofmeasure.org"
	SystemNCIt                = "http://ncit.nci.nih.gov"
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemRepresentation      = "http://terminology.hl7.org/CodeSystem/substance-representation-format"

	ExtensionBirthSex    = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-birthsex"
	ExtensionRace        = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"
	ExtensionEthnicity   = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"
	ExtensionPartOfStudy = "http://fhir-aggregator.org/fhir/StructureDefinition/part-of-study"
)

// Vocabulary translates free-text demographics through the concept maps.
type Vocabulary interface {
	TranslateCode(mapKey string, sourceCode string) (*conceptmap.TranslationResult, error)
}

// Transformer maps staging rows to FHIR resources. It holds no per-record
// state; every method is a pure function of its arguments.
type Transformer struct {
	log   zerolog.Logger
	vocab Vocabulary
}

// NewTransformer creates a Transformer.
func NewTransformer(vocab Vocabulary, log zerolog.Logger) *Transformer {
	return &Transformer{
		log:   log.With().Str("component", "transformer").Logger(),
		vocab: vocab,
	}
}

// PatientReference references the Patient minted for a subject business id.
func PatientReference(subjectID string) fhir.Reference {
	return identifier.MintReference("Patient", identifier.SystemSubject, subjectID)
}

// SpecimenReference references the Specimen minted for a specimen business id.
func SpecimenReference(specimenID string) fhir.Reference {
	return identifier.MintReference("Specimen", identifier.SystemSpecimen, specimenID)
}

// StudyReference references the ResearchStudy of a project code.
func StudyReference(code string) fhir.Reference {
	return identifier.MintReference("ResearchStudy", identifier.SystemProject, code)
}

// ProgramReference references the ResearchStudy of a program, sub-program
// or data commons name.
func ProgramReference(name string) fhir.Reference {
	return identifier.MintReference("ResearchStudy", identifier.SystemProgram, name)
}

// DedupeReferences keeps the first reference per target, preserving order.
func DedupeReferences(refs []fhir.Reference) []fhir.Reference {
	seen := make(map[string]struct{}, len(refs))
	out := make([]fhir.Reference, 0, len(refs))
	for _, ref := range refs {
		target := util.Deref(ref.Reference)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// PartOfStudy renders one part-of-study extension per distinct study.
func PartOfStudy(studies []fhir.Reference) []fhir.Extension {
	refs := DedupeReferences(studies)
	if len(refs) == 0 {
		return nil
	}
	extensions := make([]fhir.Extension, 0, len(refs))
	for i := range refs {
		ref := refs[i]
		extensions = append(extensions, fhir.Extension{Url: ExtensionPartOfStudy, ValueReference: &ref})
	}
	return extensions
}

// PartOfStudyExtensions returns the part-of-study entries of an extension list.
func PartOfStudyExtensions(extensions []fhir.Extension) []fhir.Extension {
	var out []fhir.Extension
	for _, ext := range extensions {
		if ext.Url == ExtensionPartOfStudy {
			out = append(out, ext)
		}
	}
	return out
}

func coding(system, code, display string) fhir.Coding {
	c := fhir.Coding{System: util.StringPtr(system), Code: util.StringPtr(code)}
	if display != "" {
		c.Display = util.StringPtr(display)
	}
	return c
}

func concept(system, code, display string) *fhir.CodeableConcept {
	return &fhir.CodeableConcept{Coding: []fhir.Coding{coding(system, code, display)}}
}

// textConcept codes a free-text value under a CDA field system.
func textConcept(field, value string) *fhir.CodeableConcept {
	cc := concept(identifier.BaseSystem+field, value, value)
	cc.Text = util.StringPtr(value)
	return cc
}

func days(value int64) *fhir.Quantity {
	return &fhir.Quantity{
		Value:  util.Float64Ptr(float64(value)),
		Unit:   util.StringPtr("days"),
		System: util.StringPtr(SystemUCUM),
		Code:   util.StringPtr("d"),
	}
}

func observationCategory(code, display string) []fhir.CodeableConcept {
	return []fhir.CodeableConcept{*concept(SystemObservationCategory, code, display)}
}

func note(label string, value *string) []fhir.Annotation {
	if !util.NonEmpty(value) {
		return nil
	}
	return []fhir.Annotation{{Text: fmt.Sprintf("%s: %s", label, strings.TrimSpace(*value))}}
}
