package transformer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/fhir/conceptmap"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// Vital status tags mapped to deceasedBoolean. Anything else is omitted.
const (
	VitalStatusDead  = "Dead"
	VitalStatusAlive = "Alive"
)

// PatientBundle is the Patient family output for one subject.
type PatientBundle struct {
	Patient      fhir.Patient
	Observations []fhir.Observation
}

// Patient maps a subject to a Patient plus its cause-of-death, days-to-death
// and days-to-birth Observations. studies are the ResearchStudy references
// the subject belongs to.
func (t *Transformer) Patient(subject cda.Subject, identifiers []cda.SubjectIdentifier, studies []fhir.Reference) (*PatientBundle, error) {
	subjectID := subject.ID
	if strings.TrimSpace(subjectID) == "" {
		return nil, skip("subject has no id")
	}

	official := identifier.Official(identifier.SystemSubject, subjectID)
	patientID := identifier.Mint("Patient", official)

	patient := fhir.Patient{
		Id:              util.StringPtr(patientID),
		Identifier:      append([]fhir.Identifier{official}, externalIdentifiers(identifiers)...),
		DeceasedBoolean: DeceasedFromVitalStatus(subject.VitalStatus),
	}

	demographics, err := t.demographicExtensions(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to map demographics of subject %s: %w", subjectID, err)
	}
	partOf := PartOfStudy(studies)
	patient.Extension = append(demographics, partOf...)

	ref := identifier.Reference("Patient", patientID)
	bundle := &PatientBundle{Patient: patient}

	if util.NonEmpty(subject.CauseOfDeath) {
		cause := strings.TrimSpace(*subject.CauseOfDeath)
		obs := patientObservation(identifier.SystemCauseOfDeath, patientID, cause, ref, partOf,
			concept(SystemLOINC, "79378-6", "Cause of death"))
		obs.ValueString = util.StringPtr(cause)
		bundle.Observations = append(bundle.Observations, obs)
	}
	if subject.DaysToDeath != nil {
		raw := strconv.FormatInt(*subject.DaysToDeath, 10)
		obs := patientObservation(identifier.SystemDaysToDeath, patientID, raw, ref, partOf,
			concept(identifier.BaseSystem, "days_to_death", "Days to death"))
		obs.ValueQuantity = days(*subject.DaysToDeath)
		bundle.Observations = append(bundle.Observations, obs)
	}
	if subject.DaysToBirth != nil {
		raw := strconv.FormatInt(*subject.DaysToBirth, 10)
		obs := patientObservation(identifier.SystemDaysToBirth, patientID, raw, ref, partOf,
			concept(identifier.BaseSystem, "days_to_birth", "Days to birth"))
		obs.ValueQuantity = days(*subject.DaysToBirth)
		bundle.Observations = append(bundle.Observations, obs)
	}

	return bundle, nil
}

// DeceasedFromVitalStatus maps exact "Dead"/"Alive" tags and nothing else.
func DeceasedFromVitalStatus(vitalStatus *string) *bool {
	if vitalStatus == nil {
		return nil
	}
	switch *vitalStatus {
	case VitalStatusDead:
		return util.BoolPtr(true)
	case VitalStatusAlive:
		return util.BoolPtr(false)
	}
	return nil
}

func (t *Transformer) demographicExtensions(subject cda.Subject) ([]fhir.Extension, error) {
	var extensions []fhir.Extension

	sex, err := t.vocab.TranslateCode(conceptmap.BirthSex, util.Deref(subject.Sex))
	if err != nil {
		return nil, err
	}
	if sex != nil {
		extensions = append(extensions, fhir.Extension{Url: ExtensionBirthSex, ValueCode: util.StringPtr(sex.TargetCode)})
	}

	race, err := t.vocab.TranslateCode(conceptmap.Race, util.Deref(subject.Race))
	if err != nil {
		return nil, err
	}
	if race != nil {
		extensions = append(extensions, fhir.Extension{Url: ExtensionRace, ValueString: util.StringPtr(race.TargetCode)})
	}

	ethnicity, err := t.vocab.TranslateCode(conceptmap.Ethnicity, util.Deref(subject.Ethnicity))
	if err != nil {
		return nil, err
	}
	if ethnicity != nil {
		extensions = append(extensions, fhir.Extension{Url: ExtensionEthnicity, ValueString: util.StringPtr(ethnicity.TargetCode)})
	}

	return extensions, nil
}

// externalIdentifiers renders subject_identifier rows as secondary identifiers.
func externalIdentifiers(rows []cda.SubjectIdentifier) []fhir.Identifier {
	seen := make(map[string]struct{}, len(rows))
	var out []fhir.Identifier
	for _, row := range rows {
		system := fmt.Sprintf("%s%s/%s", identifier.BaseSystem, strings.TrimSpace(row.System), strings.TrimSpace(row.FieldName))
		value := strings.TrimSpace(row.Value)
		if value == "" {
			continue
		}
		key := system + "|" + value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, identifier.Secondary(system, value))
	}
	return out
}

// patientObservation builds an auxiliary Observation whose identifier value
// is the patient id followed by the raw source value.
func patientObservation(system, patientID, raw string, patient fhir.Reference, partOf []fhir.Extension, code *fhir.CodeableConcept) fhir.Observation {
	official := identifier.Official(system, patientID+raw)
	return fhir.Observation{
		Id:         util.StringPtr(identifier.Mint("Observation", official)),
		Extension:  partOf,
		Identifier: []fhir.Identifier{official},
		Status:     "final",
		Category:   observationCategory("survey", "Survey"),
		Code:       *code,
		Subject:    &patient,
		Focus:      []fhir.Reference{patient},
	}
}
