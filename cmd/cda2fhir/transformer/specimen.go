package transformer

import (
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// Sentinels of the specimen table.
const (
	InitialSpecimen = "initial specimen"
	NotSpecified    = "not specified"
)

// SpecimenBundle is the Specimen family output for one specimen. BodyStructure
// and Observation are nil when their source fields are absent.
type SpecimenBundle struct {
	Specimen      fhir.Specimen
	BodyStructure *fhir.BodyStructure
	Observation   *fhir.Observation
}

// SpecimenStudies references the studies of a specimen's associated_project
// list, falling back to the given studies when the list is empty.
func SpecimenStudies(s cda.Specimen, fallback []fhir.Reference) []fhir.Reference {
	codes := SplitProjects(util.Deref(s.AssociatedProject))
	if len(codes) == 0 {
		return DedupeReferences(fallback)
	}
	refs := make([]fhir.Reference, 0, len(codes))
	for _, code := range codes {
		refs = append(refs, StudyReference(code))
	}
	return DedupeReferences(refs)
}

// ParentSpecimenID returns the business id of the parent specimen, or "" for
// an initial specimen or a self reference.
func ParentSpecimenID(s cda.Specimen) string {
	parent := util.Deref(s.DerivedFromSpecimen)
	trimmed := strings.TrimSpace(parent)
	if trimmed == "" || strings.EqualFold(trimmed, InitialSpecimen) || parent == s.ID {
		return ""
	}
	return parent
}

// BodySites decomposes the anatomical site. nil means no BodyStructure.
func BodySites(s cda.Specimen) []string {
	site := strings.TrimSpace(util.Deref(s.AnatomicalSite))
	if site == "" || strings.EqualFold(site, NotSpecified) {
		return nil
	}
	return Decompose(site, SiteSeparator)
}

// Specimen maps a specimen row. parent is the already resolved parent
// Specimen reference, or nil. Specimen, BodyStructure and summary
// Observation share one part-of-study list.
func (t *Transformer) Specimen(s cda.Specimen, subjectID string, parent *fhir.Reference, fallbackStudies []fhir.Reference) (*SpecimenBundle, error) {
	specimenID := s.ID
	if strings.TrimSpace(specimenID) == "" {
		return nil, skip("specimen has no id")
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, skip("specimen %s has no subject", specimenID)
	}

	official := identifier.Official(identifier.SystemSpecimen, specimenID)
	id := identifier.Mint("Specimen", official)
	ref := identifier.Reference("Specimen", id)
	patient := PatientReference(subjectID)
	partOf := PartOfStudy(SpecimenStudies(s, fallbackStudies))

	specimen := fhir.Specimen{
		Id:         util.StringPtr(id),
		Extension:  partOf,
		Identifier: []fhir.Identifier{official},
		Subject:    &patient,
	}
	switch {
	case util.NonEmpty(s.SourceMaterialType):
		specimen.Type = textConcept("source_material_type", strings.TrimSpace(*s.SourceMaterialType))
	case util.NonEmpty(s.SpecimenType):
		specimen.Type = textConcept("specimen_type", strings.TrimSpace(*s.SpecimenType))
	}
	if parent != nil && util.Deref(parent.Reference) != util.Deref(ref.Reference) {
		specimen.Parent = []fhir.Reference{*parent}
	}

	bundle := &SpecimenBundle{Specimen: specimen}

	if sites := BodySites(s); len(sites) > 0 {
		bsIdentifier := identifier.Official(identifier.SystemBodyStructure, specimenID)
		bodyStructure := fhir.BodyStructure{
			Id:         util.StringPtr(identifier.Mint("BodyStructure", bsIdentifier)),
			Extension:  partOf,
			Identifier: []fhir.Identifier{bsIdentifier},
			Patient:    patient,
		}
		for _, site := range sites {
			bodyStructure.IncludedStructure = append(bodyStructure.IncludedStructure, fhir.BodyStructureIncludedStructure{
				Structure: *textConcept("anatomical_site", site),
			})
		}
		bsRef := identifier.Reference("BodyStructure", *bodyStructure.Id)
		bundle.BodyStructure = &bodyStructure
		bundle.Specimen.Collection = &fhir.SpecimenCollection{
			BodySite: &fhir.CodeableReference{
				Concept:   &fhir.CodeableConcept{Text: util.StringPtr(strings.TrimSpace(*s.AnatomicalSite))},
				Reference: &bsRef,
			},
		}
	}

	if components := specimenComponents(s); len(components) > 0 {
		obsIdentifier := identifier.Official(identifier.SystemSpecimenSummary, specimenID)
		bundle.Observation = &fhir.Observation{
			Id:         util.StringPtr(identifier.Mint("Observation", obsIdentifier)),
			Extension:  partOf,
			Identifier: []fhir.Identifier{obsIdentifier},
			Status:     "final",
			Category:   observationCategory("laboratory", "Laboratory"),
			Code:       *concept(SystemLOINC, "68992-7", "Specimen-related information panel"),
			Subject:    &patient,
			Focus:      []fhir.Reference{ref},
			Specimen:   &ref,
			Component:  components,
		}
	}

	return bundle, nil
}

// specimenComponents types each summary field by its column type.
func specimenComponents(s cda.Specimen) []fhir.ObservationComponent {
	var components []fhir.ObservationComponent
	if s.DaysToCollection != nil {
		components = append(components, fhir.ObservationComponent{
			Code:         *concept(identifier.BaseSystem, "days_to_collection", "days_to_collection"),
			ValueInteger: util.Int64Ptr(*s.DaysToCollection),
		})
	}
	if util.NonEmpty(s.SpecimenType) {
		components = append(components, fhir.ObservationComponent{
			Code:        *concept(identifier.BaseSystem, "specimen_type", "specimen_type"),
			ValueString: util.StringPtr(strings.TrimSpace(*s.SpecimenType)),
		})
	}
	if util.NonEmpty(s.PrimaryDiseaseType) {
		components = append(components, fhir.ObservationComponent{
			Code:        *concept(identifier.BaseSystem, "primary_disease_type", "primary_disease_type"),
			ValueString: util.StringPtr(strings.TrimSpace(*s.PrimaryDiseaseType)),
		})
	}
	return components
}
