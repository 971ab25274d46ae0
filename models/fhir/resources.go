package fhir

import "encoding/json"

// Resource is implemented by every resource written to ndjson.
type Resource interface {
	ResourceType() string
	ResourceID() string
}

func id(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Patient ---------------------------------------------------------------------

type Patient struct {
	Id              *string      `json:"id,omitempty"`
	Extension       []Extension  `json:"extension,omitempty"`
	Identifier      []Identifier `json:"identifier,omitempty"`
	DeceasedBoolean *bool        `json:"deceasedBoolean,omitempty"`
}

type OtherPatient Patient

func (r Patient) ResourceType() string { return "Patient" }
func (r Patient) ResourceID() string   { return id(r.Id) }

func (r Patient) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherPatient
	}{"Patient", OtherPatient(r)})
}

// ResearchStudy ---------------------------------------------------------------

type ResearchStudy struct {
	Id         *string      `json:"id,omitempty"`
	Extension  []Extension  `json:"extension,omitempty"`
	Identifier []Identifier `json:"identifier,omitempty"`
	Name       *string      `json:"name,omitempty"`
	Title      *string      `json:"title,omitempty"`
	PartOf     []Reference  `json:"partOf,omitempty"`
	Status     string       `json:"status"`
}

type OtherResearchStudy ResearchStudy

func (r ResearchStudy) ResourceType() string { return "ResearchStudy" }
func (r ResearchStudy) ResourceID() string   { return id(r.Id) }

func (r ResearchStudy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherResearchStudy
	}{"ResearchStudy", OtherResearchStudy(r)})
}

// ResearchSubject -------------------------------------------------------------

type ResearchSubject struct {
	Id         *string      `json:"id,omitempty"`
	Extension  []Extension  `json:"extension,omitempty"`
	Identifier []Identifier `json:"identifier,omitempty"`
	Status     string       `json:"status"`
	Study      Reference    `json:"study"`
	Subject    Reference    `json:"subject"`
}

type OtherResearchSubject ResearchSubject

func (r ResearchSubject) ResourceType() string { return "ResearchSubject" }
func (r ResearchSubject) ResourceID() string   { return id(r.Id) }

func (r ResearchSubject) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherResearchSubject
	}{"ResearchSubject", OtherResearchSubject(r)})
}

// Condition -------------------------------------------------------------------

type Condition struct {
	Id             *string             `json:"id,omitempty"`
	Extension      []Extension         `json:"extension,omitempty"`
	Identifier     []Identifier        `json:"identifier,omitempty"`
	ClinicalStatus CodeableConcept     `json:"clinicalStatus"`
	Code           *CodeableConcept    `json:"code,omitempty"`
	Subject        Reference           `json:"subject"`
	OnsetAge       *Quantity           `json:"onsetAge,omitempty"`
	Stage          []ConditionStage    `json:"stage,omitempty"`
	Evidence       []CodeableReference `json:"evidence,omitempty"`
	Note           []Annotation        `json:"note,omitempty"`
}

type ConditionStage struct {
	Summary    *CodeableConcept `json:"summary,omitempty"`
	Assessment []Reference      `json:"assessment,omitempty"`
	Type       *CodeableConcept `json:"type,omitempty"`
}

type OtherCondition Condition

func (r Condition) ResourceType() string { return "Condition" }
func (r Condition) ResourceID() string   { return id(r.Id) }

func (r Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherCondition
	}{"Condition", OtherCondition(r)})
}

// Observation -----------------------------------------------------------------

type Observation struct {
	Id                   *string                `json:"id,omitempty"`
	Extension            []Extension            `json:"extension,omitempty"`
	Identifier           []Identifier           `json:"identifier,omitempty"`
	Status               string                 `json:"status"`
	Category             []CodeableConcept      `json:"category,omitempty"`
	Code                 CodeableConcept        `json:"code"`
	Subject              *Reference             `json:"subject,omitempty"`
	Focus                []Reference            `json:"focus,omitempty"`
	Specimen             *Reference             `json:"specimen,omitempty"`
	ValueString          *string                `json:"valueString,omitempty"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

type ObservationComponent struct {
	Code                 CodeableConcept  `json:"code"`
	ValueString          *string          `json:"valueString,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueInteger         *int64           `json:"valueInteger,omitempty"`
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueDateTime        *DateTime        `json:"valueDateTime,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

type OtherObservation Observation

func (r Observation) ResourceType() string { return "Observation" }
func (r Observation) ResourceID() string   { return id(r.Id) }

func (r Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherObservation
	}{"Observation", OtherObservation(r)})
}

// Specimen --------------------------------------------------------------------

type Specimen struct {
	Id         *string             `json:"id,omitempty"`
	Extension  []Extension         `json:"extension,omitempty"`
	Identifier []Identifier        `json:"identifier,omitempty"`
	Type       *CodeableConcept    `json:"type,omitempty"`
	Subject    *Reference          `json:"subject,omitempty"`
	Parent     []Reference         `json:"parent,omitempty"`
	Collection *SpecimenCollection `json:"collection,omitempty"`
}

type SpecimenCollection struct {
	BodySite *CodeableReference `json:"bodySite,omitempty"`
}

type OtherSpecimen Specimen

func (r Specimen) ResourceType() string { return "Specimen" }
func (r Specimen) ResourceID() string   { return id(r.Id) }

func (r Specimen) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherSpecimen
	}{"Specimen", OtherSpecimen(r)})
}

// BodyStructure ---------------------------------------------------------------

type BodyStructure struct {
	Id                *string                          `json:"id,omitempty"`
	Extension         []Extension                      `json:"extension,omitempty"`
	Identifier        []Identifier                     `json:"identifier,omitempty"`
	IncludedStructure []BodyStructureIncludedStructure `json:"includedStructure"`
	Patient           Reference                        `json:"patient"`
}

type BodyStructureIncludedStructure struct {
	Structure CodeableConcept `json:"structure"`
}

type OtherBodyStructure BodyStructure

func (r BodyStructure) ResourceType() string { return "BodyStructure" }
func (r BodyStructure) ResourceID() string   { return id(r.Id) }

func (r BodyStructure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherBodyStructure
	}{"BodyStructure", OtherBodyStructure(r)})
}

// DocumentReference -----------------------------------------------------------

type DocumentReference struct {
	Id         *string                    `json:"id,omitempty"`
	Extension  []Extension                `json:"extension,omitempty"`
	Identifier []Identifier               `json:"identifier,omitempty"`
	Status     string                     `json:"status"`
	Type       *CodeableConcept           `json:"type,omitempty"`
	Category   []CodeableConcept          `json:"category,omitempty"`
	Subject    *Reference                 `json:"subject,omitempty"`
	Content    []DocumentReferenceContent `json:"content"`
}

type DocumentReferenceContent struct {
	Attachment Attachment `json:"attachment"`
}

type OtherDocumentReference DocumentReference

func (r DocumentReference) ResourceType() string { return "DocumentReference" }
func (r DocumentReference) ResourceID() string   { return id(r.Id) }

func (r DocumentReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherDocumentReference
	}{"DocumentReference", OtherDocumentReference(r)})
}

// Group -----------------------------------------------------------------------

type Group struct {
	Id         *string       `json:"id,omitempty"`
	Extension  []Extension   `json:"extension,omitempty"`
	Identifier []Identifier  `json:"identifier,omitempty"`
	Type       string        `json:"type"`
	Membership string        `json:"membership"`
	Member     []GroupMember `json:"member,omitempty"`
}

type GroupMember struct {
	Entity Reference `json:"entity"`
}

type OtherGroup Group

func (r Group) ResourceType() string { return "Group" }
func (r Group) ResourceID() string   { return id(r.Id) }

func (r Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherGroup
	}{"Group", OtherGroup(r)})
}

// SubstanceDefinition ---------------------------------------------------------

type SubstanceDefinition struct {
	Id         *string                       `json:"id,omitempty"`
	Identifier []Identifier                  `json:"identifier,omitempty"`
	Structure  *SubstanceDefinitionStructure `json:"structure,omitempty"`
	Name       []SubstanceDefinitionName     `json:"name,omitempty"`
}

type SubstanceDefinitionStructure struct {
	Representation []SubstanceDefinitionRepresentation `json:"representation,omitempty"`
}

type SubstanceDefinitionRepresentation struct {
	Representation *string          `json:"representation,omitempty"`
	Format         *CodeableConcept `json:"format,omitempty"`
}

type SubstanceDefinitionName struct {
	Name string `json:"name"`
}

type OtherSubstanceDefinition SubstanceDefinition

func (r SubstanceDefinition) ResourceType() string { return "SubstanceDefinition" }
func (r SubstanceDefinition) ResourceID() string   { return id(r.Id) }

func (r SubstanceDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherSubstanceDefinition
	}{"SubstanceDefinition", OtherSubstanceDefinition(r)})
}

// Substance -------------------------------------------------------------------

type Substance struct {
	Id         *string           `json:"id,omitempty"`
	Identifier []Identifier      `json:"identifier,omitempty"`
	Instance   bool              `json:"instance"`
	Code       CodeableReference `json:"code"`
}

type OtherSubstance Substance

func (r Substance) ResourceType() string { return "Substance" }
func (r Substance) ResourceID() string   { return id(r.Id) }

func (r Substance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherSubstance
	}{"Substance", OtherSubstance(r)})
}

// Medication ------------------------------------------------------------------

type Medication struct {
	Id         *string                `json:"id,omitempty"`
	Identifier []Identifier           `json:"identifier,omitempty"`
	Code       *CodeableConcept       `json:"code,omitempty"`
	Ingredient []MedicationIngredient `json:"ingredient,omitempty"`
}

type MedicationIngredient struct {
	Item CodeableReference `json:"item"`
}

type OtherMedication Medication

func (r Medication) ResourceType() string { return "Medication" }
func (r Medication) ResourceID() string   { return id(r.Id) }

func (r Medication) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherMedication
	}{"Medication", OtherMedication(r)})
}

// MedicationAdministration ----------------------------------------------------

// MedicationAdministration uses the R5 element name occurenceTiming.
type MedicationAdministration struct {
	Id              *string           `json:"id,omitempty"`
	Extension       []Extension       `json:"extension,omitempty"`
	Identifier      []Identifier      `json:"identifier,omitempty"`
	Status          string            `json:"status"`
	Category        []CodeableConcept `json:"category,omitempty"`
	Medication      CodeableReference `json:"medication"`
	Subject         Reference         `json:"subject"`
	OccurenceTiming *Timing           `json:"occurenceTiming,omitempty"`
	Note            []Annotation      `json:"note,omitempty"`
}

type OtherMedicationAdministration MedicationAdministration

func (r MedicationAdministration) ResourceType() string { return "MedicationAdministration" }
func (r MedicationAdministration) ResourceID() string   { return id(r.Id) }

func (r MedicationAdministration) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		OtherMedicationAdministration
	}{"MedicationAdministration", OtherMedicationAdministration(r)})
}
