package transformer

import (
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// Cholangiocarcinoma diagnoses are coded with a fixed NCIt concept instead of
// the free-text split.
const (
	cholangiocarcinomaMatch   = "cholangiocarcinoma"
	cholangiocarcinomaCode    = "C4436"
	cholangiocarcinomaDisplay = "Cholangiocarcinoma"
)

// ConditionBundle is the Condition family output for one diagnosis.
type ConditionBundle struct {
	Condition fhir.Condition
	Stage     *fhir.Observation
}

// StageField is one populated staging column.
type StageField struct {
	Name  string
	Value string
}

// StageFields lists the staging columns of d in priority order, populated or not.
func StageFields(d cda.Diagnosis) []StageField {
	return []StageField{
		{"pathologic_stage", util.Deref(d.PathologicStage)},
		{"pathologic_stage_t", util.Deref(d.PathologicStageT)},
		{"pathologic_stage_n", util.Deref(d.PathologicStageN)},
		{"pathologic_stage_m", util.Deref(d.PathologicStageM)},
		{"grade", util.Deref(d.Grade)},
		{"clinical_stage", util.Deref(d.ClinicalStage)},
		{"clinical_stage_t", util.Deref(d.ClinicalStageT)},
		{"clinical_stage_n", util.Deref(d.ClinicalStageN)},
		{"clinical_stage_m", util.Deref(d.ClinicalStageM)},
	}
}

// SelectStage returns the first populated staging column. Later columns are
// ignored even when populated.
func SelectStage(d cda.Diagnosis) (StageField, bool) {
	for _, field := range StageFields(d) {
		if value := strings.TrimSpace(field.Value); value != "" {
			return StageField{Name: field.Name, Value: value}, true
		}
	}
	return StageField{}, false
}

// DiagnosisCode codes a primary diagnosis string.
func DiagnosisCode(text string) *fhir.CodeableConcept {
	text = strings.TrimSpace(text)
	if strings.Contains(strings.ToLower(text), cholangiocarcinomaMatch) {
		cc := concept(SystemNCIt, cholangiocarcinomaCode, cholangiocarcinomaDisplay)
		cc.Text = util.StringPtr(text)
		return cc
	}
	code, display, ok := SplitCodeDisplay(text)
	if !ok {
		code, display = text, text
	}
	cc := concept(identifier.BaseSystem+"primary_diagnosis", code, display)
	cc.Text = util.StringPtr(text)
	return cc
}

// Condition maps a diagnosis to a Condition and, when a stage is populated,
// the stage Observation it references.
func (t *Transformer) Condition(d cda.Diagnosis, subjectID string, studies []fhir.Reference) (*ConditionBundle, error) {
	diagnosisID := d.ID
	if strings.TrimSpace(diagnosisID) == "" {
		return nil, skip("diagnosis has no id")
	}
	text := util.Deref(d.PrimaryDiagnosis)
	if strings.TrimSpace(text) == "" || len(Decompose(text, CodeDisplaySeparator)) == 0 {
		return nil, skip("diagnosis %s has no usable primary diagnosis", diagnosisID)
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, skip("diagnosis %s has no subject", diagnosisID)
	}

	// Phase one: the Condition id exists before anything points at it.
	official := identifier.Official(identifier.SystemDiagnosis, diagnosisID)
	conditionID := identifier.Mint("Condition", official)
	conditionRef := identifier.Reference("Condition", conditionID)
	patient := PatientReference(subjectID)
	partOf := PartOfStudy(studies)

	condition := fhir.Condition{
		Id:             util.StringPtr(conditionID),
		Extension:      partOf,
		Identifier:     []fhir.Identifier{official},
		ClinicalStatus: *concept(SystemConditionClinical, "active", "Active"),
		Code:           DiagnosisCode(text),
		Subject:        patient,
		Note:           note("morphology", d.Morphology),
	}
	if d.AgeAtDiagnosis != nil {
		condition.OnsetAge = days(*d.AgeAtDiagnosis)
	}
	if util.NonEmpty(d.MethodOfDiagnosis) {
		condition.Evidence = []fhir.CodeableReference{{
			Concept: textConcept("method_of_diagnosis", strings.TrimSpace(*d.MethodOfDiagnosis)),
		}}
	}

	bundle := &ConditionBundle{Condition: condition}
	field, ok := SelectStage(d)
	if !ok {
		return bundle, nil
	}

	// Phase two: build the dependent Observation, then attach it.
	stageType := concept(identifier.BaseSystem+"stage_type", field.Name, field.Name)
	stageValue := textConcept(field.Name, field.Value)

	stageIdentifier := identifier.Official(identifier.SystemStage, diagnosisID+"/"+field.Name)
	observation := fhir.Observation{
		Id:                   util.StringPtr(identifier.Mint("Observation", stageIdentifier)),
		Extension:            partOf,
		Identifier:           []fhir.Identifier{stageIdentifier},
		Status:               "final",
		Category:             observationCategory("exam", "Exam"),
		Code:                 *stageType,
		Subject:              &patient,
		Focus:                []fhir.Reference{conditionRef},
		ValueCodeableConcept: stageValue,
	}

	bundle.Stage = &observation
	bundle.Condition.Stage = []fhir.ConditionStage{{
		Summary:    stageValue,
		Type:       stageType,
		Assessment: []fhir.Reference{identifier.Reference("Observation", *observation.Id)},
	}}
	return bundle, nil
}
