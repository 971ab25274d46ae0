package transformer

import (
	"strings"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/identifier"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// ResearchSubject links the Patient of subjectID to the ResearchStudy of the
// research subject's project. The part-of-study entries of the Patient are
// copied as they are; nothing is added.
func (t *Transformer) ResearchSubject(rs cda.ResearchSubject, subjectID string, patient *fhir.Patient) (fhir.ResearchSubject, error) {
	rsID := rs.ID
	if strings.TrimSpace(rsID) == "" {
		return fhir.ResearchSubject{}, skip("research subject has no id")
	}
	codes := SplitProjects(util.Deref(rs.MemberOfResearchProject))
	if len(codes) == 0 {
		return fhir.ResearchSubject{}, skip("research subject %s has no project", rsID)
	}
	if strings.TrimSpace(subjectID) == "" {
		return fhir.ResearchSubject{}, skip("research subject %s has no subject", rsID)
	}

	official := identifier.Official(identifier.SystemResearchSubject, rsID)
	out := fhir.ResearchSubject{
		Id:         util.StringPtr(identifier.Mint("ResearchSubject", official)),
		Identifier: []fhir.Identifier{official},
		Status:     StudyStatus,
		Study:      StudyReference(codes[0]),
		Subject:    PatientReference(subjectID),
	}
	if patient != nil {
		out.Extension = PartOfStudyExtensions(patient.Extension)
	}
	return out, nil
}
