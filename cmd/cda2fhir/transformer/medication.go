package transformer

import (
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// SNOMED "Unknown" stands in for agents without a compound match.
const (
	UnknownSubstanceCode    = "261665006"
	UnknownSubstanceDisplay = "Unknown"
)

// Administration statuses.
const (
	AdministrationCompleted  = "completed"
	AdministrationInProgress = "in-progress"
)

// MedicationChain is SubstanceDefinition -> Substance -> Medication for one
// therapeutic agent. Each level references the previous by id.
type MedicationChain struct {
	SubstanceDefinitions []fhir.SubstanceDefinition
	Substances           []fhir.Substance
	Medication           fhir.Medication
}

// AgentKey is the compound lookup key of a therapeutic agent.
func AgentKey(agent string) string {
	return strings.ToUpper(strings.TrimSpace(agent))
}

// Medication builds the chain for agent from its compound rows. It returns
// nil when there are no rows.
func (t *Transformer) Medication(agent string, rows []cda.Compound) *MedicationChain {
	key := AgentKey(agent)
	if key == "" || len(rows) == 0 {
		return nil
	}

	chain := &MedicationChain{}
	seen := make(map[string]struct{}, len(rows))
	var ingredients []fhir.MedicationIngredient
	for _, row := range rows {
		cid := strings.TrimSpace(row.CID)
		if cid == "" {
			continue
		}
		if _, ok := seen[cid]; ok {
			continue
		}
		seen[cid] = struct{}{}

		sdIdentifier := identifier.Official(identifier.SystemPubChemCompound, cid)
		definition := fhir.SubstanceDefinition{
			Id:         util.StringPtr(identifier.Mint("SubstanceDefinition", sdIdentifier)),
			Identifier: []fhir.Identifier{sdIdentifier},
			Name:       []fhir.SubstanceDefinitionName{{Name: strings.TrimSpace(row.Name)}},
		}
		var representations []fhir.SubstanceDefinitionRepresentation
		if util.NonEmpty(row.InChI) {
			representations = append(representations, fhir.SubstanceDefinitionRepresentation{
				Representation: util.StringPtr(strings.TrimSpace(*row.InChI)),
				Format:         concept(SystemRepresentation, "InChI", "InChI"),
			})
		}
		if util.NonEmpty(row.SMILES) {
			representations = append(representations, fhir.SubstanceDefinitionRepresentation{
				Representation: util.StringPtr(strings.TrimSpace(*row.SMILES)),
				Format:         concept(SystemRepresentation, "SMILES", "SMILES"),
			})
		}
		if len(representations) > 0 {
			definition.Structure = &fhir.SubstanceDefinitionStructure{Representation: representations}
		}

		definitionRef := identifier.Reference("SubstanceDefinition", *definition.Id)
		substanceIdentifier := identifier.Official(identifier.SystemPubChemCompound, cid)
		substance := fhir.Substance{
			Id:         util.StringPtr(identifier.Mint("Substance", substanceIdentifier)),
			Identifier: []fhir.Identifier{substanceIdentifier},
			Instance:   false,
			Code: fhir.CodeableReference{
				Concept:   concept(identifier.SystemPubChemCompound, cid, strings.TrimSpace(row.Name)),
				Reference: &definitionRef,
			},
		}
		substanceRef := identifier.Reference("Substance", *substance.Id)

		chain.SubstanceDefinitions = append(chain.SubstanceDefinitions, definition)
		chain.Substances = append(chain.Substances, substance)
		ingredients = append(ingredients, fhir.MedicationIngredient{Item: fhir.CodeableReference{Reference: &substanceRef}})
	}
	if len(ingredients) == 0 {
		return nil
	}

	medIdentifier := identifier.Official(identifier.SystemTherapeuticAgent, key)
	chain.Medication = fhir.Medication{
		Id:         util.StringPtr(identifier.Mint("Medication", medIdentifier)),
		Identifier: []fhir.Identifier{medIdentifier},
		Code:       &fhir.CodeableConcept{Text: util.StringPtr(strings.TrimSpace(agent))},
		Ingredient: ingredients,
	}
	return chain
}

// MedicationAdministration maps one treatment for one linked subject. med is
// nil when the agent had no compound match; the administration is emitted
// anyway with the unknown substance code.
func (t *Transformer) MedicationAdministration(tr cda.Treatment, subjectID string, med *MedicationChain, studies []fhir.Reference) (fhir.MedicationAdministration, error) {
	treatmentID := tr.ID
	if strings.TrimSpace(treatmentID) == "" {
		return fhir.MedicationAdministration{}, skip("treatment has no id")
	}
	if strings.TrimSpace(subjectID) == "" {
		return fhir.MedicationAdministration{}, skip("treatment %s has no subject", treatmentID)
	}

	official := identifier.Official(identifier.SystemTreatment, treatmentID+"/"+subjectID)
	status := AdministrationInProgress
	if tr.DaysToTreatmentEnd != nil {
		status = AdministrationCompleted
	}

	admin := fhir.MedicationAdministration{
		Id:         util.StringPtr(identifier.Mint("MedicationAdministration", official)),
		Extension:  PartOfStudy(studies),
		Identifier: []fhir.Identifier{official},
		Status:     status,
		Subject:    PatientReference(subjectID),
		OccurenceTiming: &fhir.Timing{Repeat: &fhir.TimingRepeat{
			BoundsRange: treatmentRange(tr),
			Count:       tr.NumberOfCycles,
		}},
	}
	if util.NonEmpty(tr.TreatmentType) {
		admin.Category = []fhir.CodeableConcept{*textConcept("treatment_type", strings.TrimSpace(*tr.TreatmentType))}
	}

	agent := strings.TrimSpace(util.Deref(tr.TherapeuticAgent))
	var cc *fhir.CodeableConcept
	if med == nil {
		cc = concept(SystemSNOMED, UnknownSubstanceCode, UnknownSubstanceDisplay)
		admin.Medication = fhir.CodeableReference{Concept: cc}
	} else {
		cc = &fhir.CodeableConcept{}
		for _, substance := range med.Substances {
			if substance.Code.Concept != nil {
				cc.Coding = append(cc.Coding, substance.Code.Concept.Coding...)
			}
		}
		ref := identifier.Reference("Medication", *med.Medication.Id)
		admin.Medication = fhir.CodeableReference{Concept: cc, Reference: &ref}
	}
	if agent != "" {
		cc.Text = util.StringPtr(agent)
	}

	admin.Note = append(admin.Note, note("treatment_outcome", tr.TreatmentOutcome)...)
	admin.Note = append(admin.Note, note("treatment_effect", tr.TreatmentEffect)...)
	admin.Note = append(admin.Note, note("treatment_end_reason", tr.TreatmentEndReason)...)
	admin.Note = append(admin.Note, note("treatment_anatomic_site", tr.TreatmentAnatomicSite)...)
	return admin, nil
}

// treatmentRange defaults a missing start to 0 days and a missing end to 1.
func treatmentRange(tr cda.Treatment) *fhir.Range {
	low, high := int64(0), int64(1)
	if tr.DaysToTreatmentStart != nil {
		low = *tr.DaysToTreatmentStart
	}
	if tr.DaysToTreatmentEnd != nil {
		high = *tr.DaysToTreatmentEnd
	}
	return &fhir.Range{Low: days(low), High: days(high)}
}
