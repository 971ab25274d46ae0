// Package identifier mints the deterministic resource ids every other
// component references.
package identifier

import (
	"fmt"

	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
	"github.com/google/uuid"
)

// ProjectTag prefixes every minted key.
const ProjectTag = "CDA"

// Domain seeds Namespace.
const Domain = "cda.readthedocs.io"

// BaseSystem is the root of all CDA identifier systems.
const BaseSystem = "https://cda.readthedocs.io/"

// Identifier systems. Changing any of these changes every id minted from it.
const (
	SystemSubject          = BaseSystem + "subject_id"
	SystemResearchSubject  = BaseSystem + "researchsubject_id"
	SystemProject          = BaseSystem + "associated_project"
	SystemProgram          = BaseSystem + "program"
	SystemDiagnosis        = BaseSystem + "diagnosis_id"
	SystemStage            = BaseSystem + "stage"
	SystemSpecimen         = BaseSystem + "specimen_id"
	SystemBodyStructure    = BaseSystem + "body_structure"
	SystemSpecimenSummary  = BaseSystem + "specimen_observation"
	SystemFile             = BaseSystem + "file_id"
	SystemGroup            = BaseSystem + "group"
	SystemTreatment        = BaseSystem + "treatment_id"
	SystemTherapeuticAgent = BaseSystem + "therapeutic_agent"
	SystemMutation         = BaseSystem + "mutation_id"
	SystemCauseOfDeath     = BaseSystem + "cause_of_death"
	SystemDaysToDeath      = BaseSystem + "days_to_death"
	SystemDaysToBirth      = BaseSystem + "days_to_birth"
	SystemDbGap            = "https://www.ncbi.nlm.nih.gov/dbgap_accession_number"
	SystemPubChemCompound  = "https://pubchem.ncbi.nlm.nih.gov/compound"
)

// Namespace is the name-based (MD5) UUID of Domain in the DNS namespace.
var Namespace = uuid.NewMD5(uuid.NameSpaceDNS, []byte(Domain))

// MintKey hashes ProjectTag + "/" + key into a SHA-1 name-based UUID. The key
// is used verbatim.
func MintKey(key string) string {
	return uuid.NewSHA1(Namespace, []byte(ProjectTag+"/"+key)).String()
}

// Key renders the composite business key of an identifier for resourceType.
func Key(resourceType string, id fhir.Identifier) string {
	return fmt.Sprintf("%s/%s|%s", resourceType, util.Deref(id.System), util.Deref(id.Value))
}

// Mint derives the id of a resourceType instance from its official identifier.
func Mint(resourceType string, id fhir.Identifier) string {
	return MintKey(Key(resourceType, id))
}

// Official builds an identifier with use "official".
func Official(system, value string) fhir.Identifier {
	return fhir.Identifier{
		Use:    util.StringPtr(fhir.IdentifierUseOfficial),
		System: util.StringPtr(system),
		Value:  util.StringPtr(value),
	}
}

// Secondary builds an informational identifier that never feeds minting.
func Secondary(system, value string) fhir.Identifier {
	return fhir.Identifier{
		Use:    util.StringPtr(fhir.IdentifierUseSecondary),
		System: util.StringPtr(system),
		Value:  util.StringPtr(value),
	}
}

// Reference builds a literal "Type/id" reference.
func Reference(resourceType, id string) fhir.Reference {
	return fhir.Reference{Reference: util.StringPtr(resourceType + "/" + id)}
}

// MintReference mints the id for system|value and returns a reference to it.
func MintReference(resourceType, system, value string) fhir.Reference {
	return Reference(resourceType, Mint(resourceType, Official(system, value)))
}
