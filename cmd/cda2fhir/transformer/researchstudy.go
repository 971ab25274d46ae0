package transformer

import (
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// StudyStatus is the status of every emitted ResearchStudy.
const StudyStatus = "active"

// ResearchStudy maps a project code to its ResearchStudy. dbGap accessions
// become secondary identifiers; partOf points at the parent program studies.
func (t *Transformer) ResearchStudy(code string, dbGap []string, partOf []fhir.Reference) (fhir.ResearchStudy, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return fhir.ResearchStudy{}, skip("project code is empty")
	}
	return study(identifier.SystemProject, code, dbGap, partOf), nil
}

// ProgramStudy maps a program, sub-program or data commons name to the
// ResearchStudy that project studies point at through partOf.
func (t *Transformer) ProgramStudy(name string, dbGap []string, partOf []fhir.Reference) (fhir.ResearchStudy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fhir.ResearchStudy{}, skip("program name is empty")
	}
	return study(identifier.SystemProgram, name, dbGap, partOf), nil
}

func study(system, name string, dbGap []string, partOf []fhir.Reference) fhir.ResearchStudy {
	official := identifier.Official(system, name)
	studyID := identifier.Mint("ResearchStudy", official)

	identifiers := []fhir.Identifier{official}
	seen := make(map[string]struct{}, len(dbGap))
	for _, accession := range dbGap {
		accession = strings.TrimSpace(accession)
		if accession == "" {
			continue
		}
		if _, ok := seen[accession]; ok {
			continue
		}
		seen[accession] = struct{}{}
		identifiers = append(identifiers, identifier.Secondary(identifier.SystemDbGap, accession))
	}

	// A study never lists itself as its own parent.
	self := "ResearchStudy/" + studyID
	var parents []fhir.Reference
	for _, ref := range DedupeReferences(partOf) {
		if util.Deref(ref.Reference) != self {
			parents = append(parents, ref)
		}
	}

	return fhir.ResearchStudy{
		Id:         util.StringPtr(studyID),
		Identifier: identifiers,
		Name:       util.StringPtr(name),
		Title:      util.StringPtr(name),
		PartOf:     parents,
		Status:     StudyStatus,
	}
}
