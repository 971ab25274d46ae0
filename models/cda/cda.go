// Package cda holds the row shapes of the CDA staging database.
package cda

type Subject struct {
	ID             string  `db:"id" json:"id"`
	Species        *string `db:"species" json:"species,omitempty"`
	Sex            *string `db:"sex" json:"sex,omitempty"`
	Race           *string `db:"race" json:"race,omitempty"`
	Ethnicity      *string `db:"ethnicity" json:"ethnicity,omitempty"`
	DaysToBirth    *int64  `db:"days_to_birth" json:"days_to_birth,omitempty"`
	VitalStatus    *string `db:"vital_status" json:"vital_status,omitempty"`
	DaysToDeath    *int64  `db:"days_to_death" json:"days_to_death,omitempty"`
	CauseOfDeath   *string `db:"cause_of_death" json:"cause_of_death,omitempty"`
	IntegerIDAlias *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

type SubjectIdentifier struct {
	SubjectAlias int64  `db:"subject_alias" json:"subject_alias"`
	System       string `db:"system" json:"system"`
	FieldName    string `db:"field_name" json:"field_name"`
	Value        string `db:"value" json:"value"`
}

type ResearchSubject struct {
	ID                        string  `db:"id" json:"id"`
	MemberOfResearchProject   *string `db:"member_of_research_project" json:"member_of_research_project,omitempty"`
	PrimaryDiagnosisCondition *string `db:"primary_diagnosis_condition" json:"primary_diagnosis_condition,omitempty"`
	PrimaryDiagnosisSite      *string `db:"primary_diagnosis_site" json:"primary_diagnosis_site,omitempty"`
	IntegerIDAlias            *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

type Diagnosis struct {
	ID                string  `db:"id" json:"id"`
	PrimaryDiagnosis  *string `db:"primary_diagnosis" json:"primary_diagnosis,omitempty"`
	AgeAtDiagnosis    *int64  `db:"age_at_diagnosis" json:"age_at_diagnosis,omitempty"`
	Morphology        *string `db:"morphology" json:"morphology,omitempty"`
	PathologicStage   *string `db:"pathologic_stage" json:"pathologic_stage,omitempty"`
	PathologicStageT  *string `db:"pathologic_stage_t" json:"pathologic_stage_t,omitempty"`
	PathologicStageN  *string `db:"pathologic_stage_n" json:"pathologic_stage_n,omitempty"`
	PathologicStageM  *string `db:"pathologic_stage_m" json:"pathologic_stage_m,omitempty"`
	ClinicalStage     *string `db:"clinical_stage" json:"clinical_stage,omitempty"`
	ClinicalStageT    *string `db:"clinical_stage_t" json:"clinical_stage_t,omitempty"`
	ClinicalStageN    *string `db:"clinical_stage_n" json:"clinical_stage_n,omitempty"`
	ClinicalStageM    *string `db:"clinical_stage_m" json:"clinical_stage_m,omitempty"`
	Grade             *string `db:"grade" json:"grade,omitempty"`
	MethodOfDiagnosis *string `db:"method_of_diagnosis" json:"method_of_diagnosis,omitempty"`
	IntegerIDAlias    *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

type Treatment struct {
	ID                    string  `db:"id" json:"id"`
	TreatmentType         *string `db:"treatment_type" json:"treatment_type,omitempty"`
	TreatmentOutcome      *string `db:"treatment_outcome" json:"treatment_outcome,omitempty"`
	DaysToTreatmentStart  *int64  `db:"days_to_treatment_start" json:"days_to_treatment_start,omitempty"`
	DaysToTreatmentEnd    *int64  `db:"days_to_treatment_end" json:"days_to_treatment_end,omitempty"`
	TherapeuticAgent      *string `db:"therapeutic_agent" json:"therapeutic_agent,omitempty"`
	TreatmentAnatomicSite *string `db:"treatment_anatomic_site" json:"treatment_anatomic_site,omitempty"`
	TreatmentEffect       *string `db:"treatment_effect" json:"treatment_effect,omitempty"`
	TreatmentEndReason    *string `db:"treatment_end_reason" json:"treatment_end_reason,omitempty"`
	NumberOfCycles        *int64  `db:"number_of_cycles" json:"number_of_cycles,omitempty"`
	IntegerIDAlias        *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

type Specimen struct {
	ID                  string  `db:"id" json:"id"`
	AssociatedProject   *string `db:"associated_project" json:"associated_project,omitempty"`
	DaysToCollection    *int64  `db:"days_to_collection" json:"days_to_collection,omitempty"`
	PrimaryDiseaseType  *string `db:"primary_disease_type" json:"primary_disease_type,omitempty"`
	AnatomicalSite      *string `db:"anatomical_site" json:"anatomical_site,omitempty"`
	SourceMaterialType  *string `db:"source_material_type" json:"source_material_type,omitempty"`
	SpecimenType        *string `db:"specimen_type" json:"specimen_type,omitempty"`
	DerivedFromSpecimen *string `db:"derived_from_specimen" json:"derived_from_specimen,omitempty"`
	DerivedFromSubject  *string `db:"derived_from_subject" json:"derived_from_subject,omitempty"`
	IntegerIDAlias      *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

type File struct {
	ID                   string  `db:"id" json:"id"`
	Label                *string `db:"label" json:"label,omitempty"`
	DataCategory         *string `db:"data_category" json:"data_category,omitempty"`
	DataType             *string `db:"data_type" json:"data_type,omitempty"`
	FileFormat           *string `db:"file_format" json:"file_format,omitempty"`
	DrsURI               *string `db:"drs_uri" json:"drs_uri,omitempty"`
	ByteSize             *int64  `db:"byte_size" json:"byte_size,omitempty"`
	Checksum             *string `db:"checksum" json:"checksum,omitempty"`
	DataModality         *string `db:"data_modality" json:"data_modality,omitempty"`
	ImagingModality      *string `db:"imaging_modality" json:"imaging_modality,omitempty"`
	DbgapAccessionNumber *string `db:"dbgap_accession_number" json:"dbgap_accession_number,omitempty"`
	ImagingSeries        *string `db:"imaging_series" json:"imaging_series,omitempty"`
	IntegerIDAlias       *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
}

// Mutation is one variant call. Every column except id and
// integer_id_alias becomes an Observation component.
type Mutation struct {
	ID                     string  `db:"id" json:"id"`
	IntegerIDAlias         *int64  `db:"integer_id_alias" json:"integer_id_alias,omitempty"`
	ProjectShortName       *string `db:"project_short_name" json:"project_short_name,omitempty"`
	HugoSymbol             *string `db:"hugo_symbol" json:"hugo_symbol,omitempty"`
	EntrezGeneID           *string `db:"entrez_gene_id" json:"entrez_gene_id,omitempty"`
	Hotspot                *bool   `db:"hotspot" json:"hotspot,omitempty"`
	NcbiBuild              *string `db:"ncbi_build" json:"ncbi_build,omitempty"`
	Chromosome             *string `db:"chromosome" json:"chromosome,omitempty"`
	VariantType            *string `db:"variant_type" json:"variant_type,omitempty"`
	VariantClass           *string `db:"variant_class" json:"variant_class,omitempty"`
	ReferenceAllele        *string `db:"reference_allele" json:"reference_allele,omitempty"`
	MatchNormSeqAllele1    *string `db:"match_norm_seq_allele1" json:"match_norm_seq_allele1,omitempty"`
	MatchNormSeqAllele2    *string `db:"match_norm_seq_allele2" json:"match_norm_seq_allele2,omitempty"`
	TumorSeqAllele1        *string `db:"tumor_seq_allele1" json:"tumor_seq_allele1,omitempty"`
	TumorSeqAllele2        *string `db:"tumor_seq_allele2" json:"tumor_seq_allele2,omitempty"`
	DbsnpRS                *string `db:"dbsnp_rs" json:"dbsnp_rs,omitempty"`
	MutationStatus         *string `db:"mutation_status" json:"mutation_status,omitempty"`
	TranscriptID           *string `db:"transcript_id" json:"transcript_id,omitempty"`
	Gene                   *string `db:"gene" json:"gene,omitempty"`
	OneConsequence         *string `db:"one_consequence" json:"one_consequence,omitempty"`
	HgncID                 *string `db:"hgnc_id" json:"hgnc_id,omitempty"`
	PrimarySite            *string `db:"primary_site" json:"primary_site,omitempty"`
	CaseBarcode            *string `db:"case_barcode" json:"case_barcode,omitempty"`
	CaseID                 *string `db:"case_id" json:"case_id,omitempty"`
	SampleBarcodeTumor     *string `db:"sample_barcode_tumor" json:"sample_barcode_tumor,omitempty"`
	TumorSubmitterUUID     *string `db:"tumor_submitter_uuid" json:"tumor_submitter_uuid,omitempty"`
	SampleBarcodeNormal    *string `db:"sample_barcode_normal" json:"sample_barcode_normal,omitempty"`
	NormalSubmitterUUID    *string `db:"normal_submitter_uuid" json:"normal_submitter_uuid,omitempty"`
	AliquotBarcodeTumor    *string `db:"aliquot_barcode_tumor" json:"aliquot_barcode_tumor,omitempty"`
	TumorAliquotUUID       *string `db:"tumor_aliquot_uuid" json:"tumor_aliquot_uuid,omitempty"`
	AliquotBarcodeNormal   *string `db:"aliquot_barcode_normal" json:"aliquot_barcode_normal,omitempty"`
	MatchedNormAliquotUUID *string `db:"matched_norm_aliquot_uuid" json:"matched_norm_aliquot_uuid,omitempty"`
}

// ProjectRelation maps a project code in one of the sibling data commons to
// its program and sub-program.
type ProjectRelation struct {
	Program     *string `db:"program" json:"program,omitempty"`
	SubProgram  *string `db:"sub_program" json:"sub_program,omitempty"`
	ProjectGDC  *string `db:"project_gdc" json:"project_gdc,omitempty"`
	ProjectPDC  *string `db:"project_pdc" json:"project_pdc,omitempty"`
	ProjectIDC  *string `db:"project_idc" json:"project_idc,omitempty"`
	ProjectCDS  *string `db:"project_cds" json:"project_cds,omitempty"`
	ProjectICDC *string `db:"project_icdc" json:"project_icdc,omitempty"`
}

// MatchedSystem returns the data commons whose column holds code, checked in
// GDC, PDC, IDC, CDS, ICDC order.
func (r ProjectRelation) MatchedSystem(code string) string {
	columns := []struct {
		system string
		value  *string
	}{
		{"GDC", r.ProjectGDC},
		{"PDC", r.ProjectPDC},
		{"IDC", r.ProjectIDC},
		{"CDS", r.ProjectCDS},
		{"ICDC", r.ProjectICDC},
	}
	for _, c := range columns {
		if c.value != nil && *c.value == code {
			return c.system
		}
	}
	return ""
}

// Compound is one row of the local compound reference dataset.
type Compound struct {
	CID    string  `db:"cid" gorm:"column:cid" json:"cid"`
	Name   string  `db:"name" gorm:"column:name" json:"name"`
	InChI  *string `db:"inchi" gorm:"column:inchi" json:"inchi,omitempty"`
	SMILES *string `db:"smiles" gorm:"column:smiles" json:"smiles,omitempty"`
}
