// Package datasourcetest builds throwaway staging databases for tests.
package datasourcetest

import (
	"context"
	"testing"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/datasource"
	"github.com/rs/zerolog"
)

// New opens an in-memory sqlite staging store with the schema applied and
// the given statements executed in order.
func New(t *testing.T, statements ...string) *datasource.DataSourceService {
	t.Helper()
	ctx := context.Background()

	db, err := datasource.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := datasource.NewDataSourceService(db, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDataSourceService() error = %v", err)
	}
	if err := svc.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return svc
}

// Fixture is a small staging data set covering every relation the
// transformer follows: two human subjects and one mouse, a file with two
// specimens, a file with one subject, a file with nothing, diagnoses with
// and without stage, a treatment without compound match and one with, and
// one mutation.
var Fixture = []string{
	`INSERT INTO subject (id, species, sex, race, ethnicity, vital_status, days_to_death, cause_of_death, integer_id_alias) VALUES
		('TCGA.TCGA-02-0001', 'Homo sapiens', 'female', 'white', 'not hispanic or latino', 'Dead', 358, 'Cancer Related', 1),
		('PROJ.001', NULL, 'Male', NULL, NULL, NULL, NULL, NULL, 2),
		('MOUSE.1', 'Mus musculus', 'male', NULL, NULL, NULL, NULL, NULL, 3)`,
	`INSERT INTO subject_identifier (subject_alias, system, field_name, value) VALUES
		(1, 'GDC', 'case.submitter_id', 'TCGA-02-0001'),
		(1, 'PDC', 'case_submitter_id', 'TCGA-02-0001')`,
	`INSERT INTO subject_project (subject_alias, associated_project) VALUES (1, 'TCGA-GBM')`,
	`INSERT INTO researchsubject (id, member_of_research_project, primary_diagnosis_condition, integer_id_alias) VALUES
		('GDC.TCGA-GBM.TCGA-02-0001', 'TCGA-GBM', 'Glioblastoma', 10),
		('PDC.PROJ.001', 'PROJ', 'Adenocarcinoma', 11)`,
	`INSERT INTO subject_researchsubject (subject_alias, researchsubject_alias) VALUES (1, 10), (2, 11)`,
	`INSERT INTO diagnosis (id, primary_diagnosis, age_at_diagnosis, pathologic_stage, grade, integer_id_alias) VALUES
		('diag-1', '9440/3: Glioblastoma', 16179, 'Stage IV', 'G4', 20),
		('diag-2', 'Adenocarcinoma, NOS', NULL, NULL, NULL, 21),
		('diag-3', '   ', NULL, NULL, NULL, 22)`,
	`INSERT INTO researchsubject_diagnosis (researchsubject_alias, diagnosis_alias) VALUES (10, 20), (11, 21), (11, 22)`,
	`INSERT INTO treatment (id, treatment_type, therapeutic_agent, days_to_treatment_start, days_to_treatment_end, number_of_cycles, integer_id_alias) VALUES
		('treat-1', 'Pharmaceutical Therapy, NOS', 'UNKNOWNDRUG123', NULL, NULL, NULL, 30),
		('treat-2', 'Chemotherapy', 'Temozolomide', 10, 100, 6, 31)`,
	`INSERT INTO researchsubject_treatment (researchsubject_alias, treatment_alias) VALUES (10, 30), (11, 30), (10, 31)`,
	`INSERT INTO compound (cid, name, inchi, smiles) VALUES
		('5394', 'TEMOZOLOMIDE', 'InChI=1S/C6H6N6O2', 'CN1C(=O)N2C=NC(=C2N=N1)C(=O)N')`,
	`INSERT INTO specimen (id, associated_project, days_to_collection, primary_disease_type, anatomical_site, source_material_type, specimen_type, derived_from_specimen, derived_from_subject, integer_id_alias) VALUES
		('spec-1', 'TCGA-GBM;CPTAC-3', 0, 'Gliomas', 'Brain, Cerebrum', 'Primary Tumor', 'sample', 'Initial specimen', 'TCGA.TCGA-02-0001', 40),
		('spec-2', 'TCGA-GBM', NULL, NULL, 'Not specified', NULL, 'aliquot', 'spec-1', 'TCGA.TCGA-02-0001', 41),
		('spec-3', 'TCGA-GBM', NULL, NULL, NULL, NULL, 'aliquot', 'spec-missing', 'TCGA.TCGA-02-0001', 42),
		('spec-mouse', 'MOUSE', NULL, NULL, NULL, NULL, 'sample', 'Initial specimen', 'MOUSE.1', 43)`,
	`INSERT INTO researchsubject_specimen (researchsubject_alias, specimen_alias) VALUES (10, 40), (10, 41)`,
	`INSERT INTO cda_file (id, label, data_category, data_type, file_format, drs_uri, byte_size, checksum, dbgap_accession_number, integer_id_alias) VALUES
		('file-two', 'two.bam', 'Sequencing Reads', 'Aligned Reads', 'BAM', 'drs://example/file-two', 100, 'abc
', 'phs000178', 50),
		('file-one', 'one.maf', 'Simple Nucleotide Variation', NULL, 'MAF', 'drs://example/file-one', 10, 'def', NULL, 51),
		('file-none', 'none.txt', NULL, NULL, 'TXT', 'drs://example/file-none', 1, 'ghi', NULL, 52)`,
	`INSERT INTO file_specimen (file_alias, specimen_alias) VALUES (50, 40), (50, 41)`,
	`INSERT INTO file_subject (file_alias, subject_alias) VALUES (50, 1), (51, 2), (52, 3)`,
	`INSERT INTO mutation (id, integer_id_alias, project_short_name, hugo_symbol, hotspot, chromosome) VALUES
		('mut-1', 60, 'TCGA-GBM', 'TP53', 1, 'chr17')`,
	`INSERT INTO subject_mutation (subject_alias, mutation_alias) VALUES (1, 60)`,
	`INSERT INTO project_program_relation (program, sub_program, project_gdc, project_pdc, project_idc, project_cds, project_icdc) VALUES
		('TCGA', NULL, 'TCGA-GBM', NULL, 'tcga_gbm', NULL, NULL),
		('TCGA', 'TCGA-Glioma', 'TCGA-GBM', NULL, NULL, NULL, NULL),
		('CPTAC', NULL, NULL, 'CPTAC-3', NULL, NULL, NULL)`,
	`INSERT INTO project_dbgap (gdc_project_id, dbgap_study_accession) VALUES ('TCGA-GBM', 'phs000178')`,
	`INSERT INTO gdc_program_dbgap (gdc_program_name, dbgap_study_accession) VALUES ('TCGA', 'phs000178'), ('CPTAC', 'phs001287')`,
}
