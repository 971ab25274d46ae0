package transformer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/fhir/conceptmap"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
	"github.com/rs/zerolog"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	repo := conceptmap.NewEmbeddedConceptMapRepository(zerolog.Nop())
	if err := repo.LoadConceptMaps(); err != nil {
		t.Fatalf("LoadConceptMaps() error = %v", err)
	}
	return NewTransformer(conceptmap.NewConceptMapService(repo, zerolog.Nop()), zerolog.Nop())
}

func marshal(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return out
}

func partOfTargets(extensions []fhir.Extension) []string {
	var targets []string
	for _, ext := range extensions {
		if ext.Url == ExtensionPartOfStudy && ext.ValueReference != nil {
			targets = append(targets, util.Deref(ext.ValueReference.Reference))
		}
	}
	return targets
}

func TestPatientMinimal(t *testing.T) {
	tr := newTestTransformer(t)
	bundle, err := tr.Patient(cda.Subject{ID: "PROJ.001", Sex: util.StringPtr("Male")}, nil, nil)
	if err != nil {
		t.Fatalf("Patient() error = %v", err)
	}

	if got := util.Deref(bundle.Patient.Id); got != "a1c33b56-ee65-55aa-8526-a362d557d908" {
		t.Errorf("Patient id = %s", got)
	}
	if len(bundle.Observations) != 0 {
		t.Errorf("expected no observations, got %d", len(bundle.Observations))
	}

	if len(bundle.Patient.Extension) != 1 {
		t.Fatalf("expected only the birth sex extension, got %+v", bundle.Patient.Extension)
	}
	ext := bundle.Patient.Extension[0]
	if ext.Url != ExtensionBirthSex || util.Deref(ext.ValueCode) != "M" {
		t.Errorf("birth sex extension = %+v", ext)
	}

	doc := marshal(t, bundle.Patient)
	if doc["resourceType"] != "Patient" {
		t.Errorf("resourceType = %v", doc["resourceType"])
	}
	if _, ok := doc["deceasedBoolean"]; ok {
		t.Error("deceasedBoolean must be omitted")
	}
}

func TestDeceasedFromVitalStatus(t *testing.T) {
	tests := []struct {
		name  string
		input *string
		want  *bool
	}{
		{"dead", util.StringPtr("Dead"), util.BoolPtr(true)},
		{"alive", util.StringPtr("Alive"), util.BoolPtr(false)},
		{"lower case is not guessed", util.StringPtr("dead"), nil},
		{"unknown", util.StringPtr("Unknown"), nil},
		{"empty", util.StringPtr(""), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeceasedFromVitalStatus(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("DeceasedFromVitalStatus() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("DeceasedFromVitalStatus() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestPatientObservations(t *testing.T) {
	tr := newTestTransformer(t)
	subject := cda.Subject{
		ID:           "TCGA.TCGA-02-0001",
		VitalStatus:  util.StringPtr("Dead"),
		DaysToDeath:  util.Int64Ptr(358),
		DaysToBirth:  util.Int64Ptr(-16179),
		CauseOfDeath: util.StringPtr("Cancer Related"),
	}
	identifiers := []cda.SubjectIdentifier{
		{System: "GDC", FieldName: "case.submitter_id", Value: "TCGA-02-0001"},
		{System: "GDC", FieldName: "case.submitter_id", Value: "TCGA-02-0001"},
		{System: "PDC", FieldName: "case_submitter_id", Value: "TCGA-02-0001"},
	}
	studies := []fhir.Reference{StudyReference("TCGA-GBM"), StudyReference("TCGA-GBM")}

	bundle, err := tr.Patient(subject, identifiers, studies)
	if err != nil {
		t.Fatalf("Patient() error = %v", err)
	}
	if len(bundle.Patient.Identifier) != 3 {
		t.Errorf("expected official + 2 secondary identifiers, got %d", len(bundle.Patient.Identifier))
	}
	if got := util.Deref(bundle.Patient.Identifier[1].System); got != "https://cda.readthedocs.io/GDC/case.submitter_id" {
		t.Errorf("secondary system = %s", got)
	}
	if got := partOfTargets(bundle.Patient.Extension); len(got) != 1 {
		t.Errorf("expected one part-of-study extension, got %v", got)
	}
	if len(bundle.Observations) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(bundle.Observations))
	}

	patientRef := "Patient/" + util.Deref(bundle.Patient.Id)
	ids := map[string]bool{}
	for _, obs := range bundle.Observations {
		if util.Deref(obs.Subject.Reference) != patientRef {
			t.Errorf("observation subject = %s", util.Deref(obs.Subject.Reference))
		}
		value := util.Deref(obs.Identifier[0].Value)
		if !strings.HasPrefix(value, util.Deref(bundle.Patient.Id)) {
			t.Errorf("identifier value %s does not embed the patient id", value)
		}
		ids[util.Deref(obs.Id)] = true
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 distinct observation ids, got %d", len(ids))
	}
	if !*bundle.Patient.DeceasedBoolean {
		t.Error("expected deceasedBoolean true")
	}
}

func TestPatientWithoutIDIsSkipped(t *testing.T) {
	tr := newTestTransformer(t)
	if _, err := tr.Patient(cda.Subject{ID: "  "}, nil, nil); !errors.Is(err, ErrSkipRecord) {
		t.Fatalf("expected ErrSkipRecord, got %v", err)
	}
}

func TestBusinessIDsAreMintedVerbatim(t *testing.T) {
	tr := newTestTransformer(t)
	const padded = "PROJ.002 "

	bundle, err := tr.Patient(cda.Subject{ID: padded}, nil, nil)
	if err != nil {
		t.Fatalf("Patient() error = %v", err)
	}
	patientRef := "Patient/" + util.Deref(bundle.Patient.Id)
	if got := util.Deref(PatientReference(padded).Reference); got != patientRef {
		t.Errorf("PatientReference(%q) = %s, want %s", padded, got, patientRef)
	}
	if got := util.Deref(PatientReference("PROJ.002").Reference); got == patientRef {
		t.Error("trimmed and padded ids minted the same Patient")
	}

	specimen := cda.Specimen{ID: "spec-4 ", DerivedFromSpecimen: util.StringPtr("spec-1 ")}
	if got := ParentSpecimenID(specimen); got != "spec-1 " {
		t.Errorf("ParentSpecimenID() = %q, want %q", got, "spec-1 ")
	}
	sb, err := tr.Specimen(specimen, padded, nil, nil)
	if err != nil {
		t.Fatalf("Specimen() error = %v", err)
	}
	if got := util.Deref(SpecimenReference("spec-4 ").Reference); got != "Specimen/"+util.Deref(sb.Specimen.Id) {
		t.Errorf("SpecimenReference() = %s, want Specimen/%s", got, util.Deref(sb.Specimen.Id))
	}
	if got := util.Deref(sb.Specimen.Subject.Reference); got != patientRef {
		t.Errorf("specimen subject = %s, want %s", got, patientRef)
	}
}

func TestResearchStudy(t *testing.T) {
	tr := newTestTransformer(t)
	parents := []fhir.Reference{ProgramReference("TCGA"), ProgramReference("GDC"), ProgramReference("TCGA")}
	study, err := tr.ResearchStudy("TCGA-BRCA", []string{"phs000178", "phs000178", ""}, parents)
	if err != nil {
		t.Fatalf("ResearchStudy() error = %v", err)
	}
	if got := util.Deref(study.Id); got != "638f6162-e000-5167-8216-962d86b74a98" {
		t.Errorf("id = %s", got)
	}
	if len(study.Identifier) != 2 {
		t.Errorf("expected official + one dbGap identifier, got %d", len(study.Identifier))
	}
	if len(study.PartOf) != 2 {
		t.Errorf("expected partOf deduped to 2, got %d", len(study.PartOf))
	}
	if study.Status != StudyStatus {
		t.Errorf("status = %s", study.Status)
	}
}

func TestProgramStudyIsNotItsOwnParent(t *testing.T) {
	tr := newTestTransformer(t)
	study, err := tr.ProgramStudy("TCGA", nil, []fhir.Reference{ProgramReference("TCGA")})
	if err != nil {
		t.Fatalf("ProgramStudy() error = %v", err)
	}
	if len(study.PartOf) != 0 {
		t.Errorf("expected no partOf, got %+v", study.PartOf)
	}
}

func TestResearchSubjectCopiesPartOf(t *testing.T) {
	tr := newTestTransformer(t)
	patient, err := tr.Patient(cda.Subject{ID: "TCGA.X", Sex: util.StringPtr("female")}, nil, []fhir.Reference{StudyReference("TCGA-BRCA")})
	if err != nil {
		t.Fatalf("Patient() error = %v", err)
	}
	rs, err := tr.ResearchSubject(cda.ResearchSubject{ID: "GDC.TCGA-BRCA.X", MemberOfResearchProject: util.StringPtr("TCGA-BRCA")}, "TCGA.X", &patient.Patient)
	if err != nil {
		t.Fatalf("ResearchSubject() error = %v", err)
	}
	if len(rs.Extension) != 1 || rs.Extension[0].Url != ExtensionPartOfStudy {
		t.Errorf("extensions = %+v", rs.Extension)
	}
	if util.Deref(rs.Subject.Reference) != "Patient/"+util.Deref(patient.Patient.Id) {
		t.Errorf("subject = %s", util.Deref(rs.Subject.Reference))
	}
	if util.Deref(rs.Study.Reference) != "ResearchStudy/638f6162-e000-5167-8216-962d86b74a98" {
		t.Errorf("study = %s", util.Deref(rs.Study.Reference))
	}

	bare, err := tr.ResearchSubject(cda.ResearchSubject{ID: "RS2", MemberOfResearchProject: util.StringPtr("P")}, "S", nil)
	if err != nil {
		t.Fatalf("ResearchSubject() error = %v", err)
	}
	if len(bare.Extension) != 0 {
		t.Errorf("expected no extensions without a patient, got %+v", bare.Extension)
	}
}

func TestStagePriority(t *testing.T) {
	tests := []struct {
		name      string
		diagnosis cda.Diagnosis
		want      string
		wantValue string
	}{
		{
			"pathologic over grade",
			cda.Diagnosis{PathologicStage: util.StringPtr("Stage IIA"), Grade: util.StringPtr("G2")},
			"pathologic_stage", "Stage IIA",
		},
		{
			"pathologic N before grade",
			cda.Diagnosis{PathologicStageN: util.StringPtr("N1"), Grade: util.StringPtr("G2"), ClinicalStage: util.StringPtr("Stage I")},
			"pathologic_stage_n", "N1",
		},
		{
			"grade before clinical",
			cda.Diagnosis{Grade: util.StringPtr("G3"), ClinicalStage: util.StringPtr("Stage I")},
			"grade", "G3",
		},
		{
			"blank fields are skipped",
			cda.Diagnosis{PathologicStage: util.StringPtr("  "), ClinicalStageM: util.StringPtr("M0")},
			"clinical_stage_m", "M0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectStage(tt.diagnosis)
			if !ok {
				t.Fatal("expected a stage")
			}
			if got.Name != tt.want || got.Value != tt.wantValue {
				t.Errorf("SelectStage() = %+v, want %s=%s", got, tt.want, tt.wantValue)
			}
		})
	}

	if _, ok := SelectStage(cda.Diagnosis{}); ok {
		t.Error("expected no stage for an empty diagnosis")
	}
}

func TestConditionWithStage(t *testing.T) {
	tr := newTestTransformer(t)
	d := cda.Diagnosis{
		ID:               "diag-1",
		PrimaryDiagnosis: util.StringPtr("8500/3: Infiltrating duct carcinoma"),
		PathologicStage:  util.StringPtr("Stage IIA"),
		Grade:            util.StringPtr("G2"),
		AgeAtDiagnosis:   util.Int64Ptr(20000),
	}
	bundle, err := tr.Condition(d, "TCGA.X", []fhir.Reference{StudyReference("TCGA-BRCA")})
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	if bundle.Stage == nil {
		t.Fatal("expected a stage observation")
	}
	if len(bundle.Condition.Stage) != 1 {
		t.Fatalf("expected one stage, got %d", len(bundle.Condition.Stage))
	}
	stage := bundle.Condition.Stage[0]
	if util.Deref(stage.Summary.Text) != "Stage IIA" {
		t.Errorf("stage summary = %s", util.Deref(stage.Summary.Text))
	}
	if util.Deref(stage.Assessment[0].Reference) != "Observation/"+util.Deref(bundle.Stage.Id) {
		t.Errorf("assessment does not point at the stage observation")
	}
	if util.Deref(bundle.Stage.Focus[0].Reference) != "Condition/"+util.Deref(bundle.Condition.Id) {
		t.Errorf("stage focus does not point at the condition")
	}
	coding := bundle.Condition.Code.Coding[0]
	if util.Deref(coding.Code) != "8500/3" || util.Deref(coding.Display) != "Infiltrating duct carcinoma" {
		t.Errorf("code = %+v", coding)
	}
}

func TestConditionWithoutStage(t *testing.T) {
	tr := newTestTransformer(t)
	bundle, err := tr.Condition(cda.Diagnosis{ID: "d", PrimaryDiagnosis: util.StringPtr("Adenocarcinoma, NOS")}, "S", nil)
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	if bundle.Stage != nil || len(bundle.Condition.Stage) != 0 {
		t.Error("expected no stage")
	}
	if got := util.Deref(bundle.Condition.Code.Coding[0].Code); got != "Adenocarcinoma, NOS" {
		t.Errorf("code = %s", got)
	}
}

func TestConditionSkipsUnusableDiagnosis(t *testing.T) {
	tr := newTestTransformer(t)
	for _, text := range []*string{nil, util.StringPtr(""), util.StringPtr("   "), util.StringPtr(" : ")} {
		_, err := tr.Condition(cda.Diagnosis{ID: "d", PrimaryDiagnosis: text}, "S", nil)
		if !errors.Is(err, ErrSkipRecord) {
			t.Errorf("primary diagnosis %q: expected ErrSkipRecord, got %v", util.Deref(text), err)
		}
	}
}

func TestDiagnosisCodeOverride(t *testing.T) {
	cc := DiagnosisCode("Intrahepatic CHOLANGIOCARCINOMA: something")
	if got := util.Deref(cc.Coding[0].Code); got != "C4436" {
		t.Errorf("code = %s, want C4436", got)
	}
	if got := util.Deref(cc.Coding[0].System); got != SystemNCIt {
		t.Errorf("system = %s", got)
	}
}

func TestMultiProjectSpecimen(t *testing.T) {
	tr := newTestTransformer(t)
	s := cda.Specimen{
		ID:                 "spec-1",
		AssociatedProject:  util.StringPtr("TCGA-BRCA;CPTAC-3"),
		AnatomicalSite:     util.StringPtr("Breast, Lymph node"),
		DaysToCollection:   util.Int64Ptr(12),
		SpecimenType:       util.StringPtr("Tumor"),
		PrimaryDiseaseType: util.StringPtr("Breast Invasive Carcinoma"),
	}
	bundle, err := tr.Specimen(s, "TCGA.X", nil, nil)
	if err != nil {
		t.Fatalf("Specimen() error = %v", err)
	}
	if bundle.BodyStructure == nil || bundle.Observation == nil {
		t.Fatal("expected body structure and observation")
	}

	want := []string{
		"ResearchStudy/638f6162-e000-5167-8216-962d86b74a98",
		"ResearchStudy/6a9be761-bc6a-50cf-8ba3-4e103e63d261",
	}
	for name, extensions := range map[string][]fhir.Extension{
		"Specimen":      bundle.Specimen.Extension,
		"BodyStructure": bundle.BodyStructure.Extension,
		"Observation":   bundle.Observation.Extension,
	} {
		got := partOfTargets(extensions)
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("%s part-of-study = %v, want %v", name, got, want)
		}
	}

	if n := len(bundle.BodyStructure.IncludedStructure); n != 2 {
		t.Errorf("expected 2 included structures, got %d", n)
	}
	if n := len(bundle.Observation.Component); n != 3 {
		t.Errorf("expected 3 components, got %d", n)
	}
	if bundle.Observation.Component[0].ValueInteger == nil {
		t.Error("days_to_collection must be an integer component")
	}
}

func TestSpecimenOptionalParts(t *testing.T) {
	tr := newTestTransformer(t)
	parent := SpecimenReference("parent-1")

	tests := []struct {
		name        string
		specimen    cda.Specimen
		wantParent  bool
		wantBody    bool
		wantSummary bool
	}{
		{
			"initial specimen has no parent",
			cda.Specimen{ID: "a", DerivedFromSpecimen: util.StringPtr("Initial Specimen")},
			false, false, false,
		},
		{
			"not specified site",
			cda.Specimen{ID: "b", DerivedFromSpecimen: util.StringPtr("parent-1"), AnatomicalSite: util.StringPtr("Not specified")},
			true, false, false,
		},
		{
			"site kept whole with NOS",
			cda.Specimen{ID: "c", AnatomicalSite: util.StringPtr("Connective, subcutaneous and other soft tissues, NOS")},
			false, true, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref *fhir.Reference
			if ParentSpecimenID(tt.specimen) != "" {
				ref = &parent
			}
			bundle, err := tr.Specimen(tt.specimen, "S", ref, nil)
			if err != nil {
				t.Fatalf("Specimen() error = %v", err)
			}
			if got := len(bundle.Specimen.Parent) > 0; got != tt.wantParent {
				t.Errorf("parent = %v, want %v", got, tt.wantParent)
			}
			if got := bundle.BodyStructure != nil; got != tt.wantBody {
				t.Errorf("body structure = %v, want %v", got, tt.wantBody)
			}
			if got := bundle.Observation != nil; got != tt.wantSummary {
				t.Errorf("summary = %v, want %v", got, tt.wantSummary)
			}
			if tt.wantBody && len(bundle.BodyStructure.IncludedStructure) != 1 {
				t.Errorf("expected the NOS site to stay whole")
			}
		})
	}
}

func TestDocumentReferenceAttachment(t *testing.T) {
	tr := newTestTransformer(t)
	f := cda.File{
		ID:                   "file-1",
		Label:                util.StringPtr("sample.bam"),
		FileFormat:           util.StringPtr("BAM"),
		DrsURI:               util.StringPtr("drs://example/file-1"),
		ByteSize:             util.Int64Ptr(1024),
		Checksum:             util.StringPtr("abc123\n"),
		DataCategory:         util.StringPtr("Sequencing Reads"),
		DbgapAccessionNumber: util.StringPtr("phs000178"),
	}
	doc, err := tr.DocumentReference(f, SpecimenReference("spec-1"), nil)
	if err != nil {
		t.Fatalf("DocumentReference() error = %v", err)
	}
	a := doc.Content[0].Attachment
	if util.Deref(a.Hash) != "abc123" {
		t.Errorf("hash = %q", util.Deref(a.Hash))
	}
	if util.Deref(a.Title) != "sample.bam" || *a.Size != 1024 || util.Deref(a.Url) != "drs://example/file-1" {
		t.Errorf("attachment = %+v", a)
	}
	if len(doc.Identifier) != 2 || util.Deref(doc.Identifier[1].Use) != fhir.IdentifierUseSecondary {
		t.Errorf("identifiers = %+v", doc.Identifier)
	}

	if _, err := tr.DocumentReference(f, fhir.Reference{}, nil); !errors.Is(err, ErrSkipRecord) {
		t.Errorf("expected ErrSkipRecord without subject, got %v", err)
	}
}

func TestGroupIsOrderIndependent(t *testing.T) {
	tr := newTestTransformer(t)
	a := Member{BusinessID: "spec-a", Reference: SpecimenReference("spec-a")}
	b := Member{BusinessID: "spec-b", Reference: SpecimenReference("spec-b")}

	g1, err := tr.Group("file-1", GroupTagSpecimen, []Member{a, b}, nil)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	g2, err := tr.Group("file-1", GroupTagSpecimen, []Member{b, a}, nil)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if util.Deref(g1.Id) != util.Deref(g2.Id) {
		t.Errorf("member order changed the group id")
	}
	if got := util.Deref(g1.Identifier[0].Value); got != "file-1/specimen/spec-a,spec-b" {
		t.Errorf("group identifier = %s", got)
	}
	if g1.Type != "specimen" || len(g1.Member) != 2 {
		t.Errorf("group = %+v", g1)
	}

	patients, err := tr.Group("file-1", GroupTagPatient, []Member{{BusinessID: "S", Reference: PatientReference("S")}, {BusinessID: "T", Reference: PatientReference("T")}}, nil)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if patients.Type != "person" {
		t.Errorf("type = %s, want person", patients.Type)
	}
}

func TestTreatmentWithoutDrugMatch(t *testing.T) {
	tr := newTestTransformer(t)
	treatment := cda.Treatment{
		ID:               "treat-1",
		TherapeuticAgent: util.StringPtr("UNKNOWNDRUG123"),
	}
	if chain := tr.Medication("UNKNOWNDRUG123", nil); chain != nil {
		t.Fatalf("expected no chain without compound rows")
	}

	var admins []fhir.MedicationAdministration
	for _, subject := range []string{"S1", "S2"} {
		admin, err := tr.MedicationAdministration(treatment, subject, nil, nil)
		if err != nil {
			t.Fatalf("MedicationAdministration() error = %v", err)
		}
		admins = append(admins, admin)
	}
	if util.Deref(admins[0].Id) == util.Deref(admins[1].Id) {
		t.Error("expected one administration per subject")
	}

	admin := admins[0]
	if got := util.Deref(admin.Medication.Concept.Coding[0].Code); got != UnknownSubstanceCode {
		t.Errorf("medication code = %s", got)
	}
	if admin.Medication.Reference != nil {
		t.Error("expected no Medication reference")
	}
	if admin.Status != AdministrationInProgress {
		t.Errorf("status = %s", admin.Status)
	}
	bounds := admin.OccurenceTiming.Repeat.BoundsRange
	if *bounds.Low.Value != 0 || *bounds.High.Value != 1 {
		t.Errorf("bounds = %v..%v, want 0..1", *bounds.Low.Value, *bounds.High.Value)
	}
}

func TestMedicationChain(t *testing.T) {
	tr := newTestTransformer(t)
	rows := []cda.Compound{
		{CID: "2244", Name: "ASPIRIN", InChI: util.StringPtr("InChI=1S/C9H8O4"), SMILES: util.StringPtr("CC(=O)OC1=CC=CC=C1C(=O)O")},
		{CID: "2244", Name: "ASPIRIN"},
	}
	chain := tr.Medication("Aspirin ", rows)
	if chain == nil {
		t.Fatal("expected a chain")
	}
	if len(chain.SubstanceDefinitions) != 1 || len(chain.Substances) != 1 {
		t.Fatalf("expected duplicate CIDs to collapse, got %d/%d", len(chain.SubstanceDefinitions), len(chain.Substances))
	}
	if n := len(chain.SubstanceDefinitions[0].Structure.Representation); n != 2 {
		t.Errorf("expected InChI and SMILES, got %d", n)
	}
	if util.Deref(chain.Substances[0].Code.Reference.Reference) != "SubstanceDefinition/"+util.Deref(chain.SubstanceDefinitions[0].Id) {
		t.Error("substance does not reference its definition")
	}
	if util.Deref(chain.Medication.Ingredient[0].Item.Reference.Reference) != "Substance/"+util.Deref(chain.Substances[0].Id) {
		t.Error("medication does not reference its substance")
	}

	treatment := cda.Treatment{
		ID:                   "treat-2",
		TherapeuticAgent:     util.StringPtr("Aspirin"),
		DaysToTreatmentStart: util.Int64Ptr(5),
		DaysToTreatmentEnd:   util.Int64Ptr(30),
	}
	admin, err := tr.MedicationAdministration(treatment, "S1", chain, nil)
	if err != nil {
		t.Fatalf("MedicationAdministration() error = %v", err)
	}
	if admin.Status != AdministrationCompleted {
		t.Errorf("status = %s", admin.Status)
	}
	if util.Deref(admin.Medication.Reference.Reference) != "Medication/"+util.Deref(chain.Medication.Id) {
		t.Error("administration does not reference the medication")
	}
	if chain.Substances[0].Code.Concept.Text != nil {
		t.Error("administration must not modify the substance concept")
	}
}

func TestMutationComponents(t *testing.T) {
	m := cda.Mutation{
		ID:             "mut-1",
		IntegerIDAlias: util.Int64Ptr(7),
		HugoSymbol:     util.StringPtr("TP53"),
		Hotspot:        util.BoolPtr(true),
		Chromosome:     util.StringPtr(" "),
	}
	components := MutationComponents(m)
	if len(components) != 2 {
		t.Fatalf("expected 2 components, got %d: %+v", len(components), components)
	}
	byCode := map[string]fhir.ObservationComponent{}
	for _, c := range components {
		byCode[util.Deref(c.Code.Coding[0].Code)] = c
	}
	if _, ok := byCode["integer_id_alias"]; ok {
		t.Error("integer_id_alias must not be a component")
	}
	if util.Deref(byCode["hugo_symbol"].ValueString) != "TP53" {
		t.Errorf("hugo_symbol = %+v", byCode["hugo_symbol"])
	}
	if v := byCode["hotspot"].ValueBoolean; v == nil || !*v {
		t.Errorf("hotspot = %+v", byCode["hotspot"])
	}

	tr := newTestTransformer(t)
	obs, err := tr.MutationObservation(m, "S1", nil)
	if err != nil {
		t.Fatalf("MutationObservation() error = %v", err)
	}
	if util.Deref(obs.Subject.Reference) != util.Deref(PatientReference("S1").Reference) {
		t.Errorf("subject = %s", util.Deref(obs.Subject.Reference))
	}
}
