package datasource

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/SanteonNL/cda2fhir/models/cda"
)

//go:embed queries/*.sql
var embeddedQueries embed.FS

//go:embed schema.sql
var schemaDDL string

// Query names, one per file under queries/.
const (
	QuerySubjectsPage              = "subjects_page"
	QuerySubjectByID               = "subject_by_id"
	QuerySubjectProjects           = "subject_projects"
	QuerySubjectIdentifiers        = "subject_identifiers"
	QuerySubjectsByResearchSubject = "subjects_by_researchsubject"
	QuerySubjectsByDiagnosis       = "subjects_by_diagnosis"
	QuerySubjectsByTreatment       = "subjects_by_treatment"
	QuerySubjectsByFile            = "subjects_by_file"
	QuerySubjectsByMutation        = "subjects_by_mutation"
	QueryResearchSubjectsPage      = "researchsubjects_page"
	QueryResearchSubjectsBySubject = "researchsubjects_by_subject"
	QueryDiagnosesPage             = "diagnoses_page"
	QueryTreatmentsPage            = "treatments_page"
	QuerySpecimensPage             = "specimens_page"
	QuerySpecimenByID              = "specimen_by_id"
	QuerySpecimensByFile           = "specimens_by_file"
	QueryFilesPage                 = "files_page"
	QueryMutationsPage             = "mutations_page"
	QueryProjectCodes              = "project_codes"
	QueryProjectRelations          = "project_relations"
	QueryProjectDbGap              = "project_dbgap"
	QueryProgramDbGap              = "program_dbgap"
)

// DataSourceService gives read-only typed access to the staging store.
type DataSourceService struct {
	db      *sqlx.DB
	queries map[string]string // query name -> SQL with ? placeholders
	log     zerolog.Logger
}

// NewDataSourceService creates a DataSourceService with the embedded queries loaded.
func NewDataSourceService(db *sqlx.DB, log zerolog.Logger) (*DataSourceService, error) {
	svc := &DataSourceService{
		db:      db,
		queries: make(map[string]string),
		log:     log.With().Str("component", "datasource").Logger(),
	}
	if err := svc.LoadQueryDirectory(embeddedQueries, "queries"); err != nil {
		return nil, err
	}
	return svc, nil
}

// Open connects to the staging store. driver is one of sqlite, postgres or pgx.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// DB returns the underlying connection pool.
func (svc *DataSourceService) DB() *sqlx.DB {
	return svc.db
}

// LoadQueryFile loads a single query file. The query name is the file name
// without extension.
func (svc *DataSourceService) LoadQueryFile(fsys fs.FS, filePath string) error {
	name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))

	query, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return fmt.Errorf("failed to read query file %s: %w", filePath, err)
	}

	svc.queries[name] = string(query)
	svc.log.Debug().
		Str("query", name).
		Str("file", filePath).
		Msg("Loaded query file")

	return nil
}

// LoadQueryDirectory loads all SQL files from a directory
func (svc *DataSourceService) LoadQueryDirectory(fsys fs.FS, dirPath string) error {
	files, err := fs.ReadDir(fsys, dirPath)
	if err != nil {
		return fmt.Errorf("failed to read query directory %s: %w", dirPath, err)
	}

	var loadErrors []error
	loaded := 0

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		if err := svc.LoadQueryFile(fsys, path.Join(dirPath, file.Name())); err != nil {
			loadErrors = append(loadErrors, err)
			svc.log.Error().Err(err).
				Str("file", file.Name()).
				Msg("Failed to load query file")
			continue
		}
		loaded++
	}

	svc.log.Debug().
		Int("total_files", len(files)).
		Int("loaded", loaded).
		Int("errors", len(loadErrors)).
		Str("directory", dirPath).
		Msg("Completed loading query files")

	if len(loadErrors) > 0 {
		return fmt.Errorf("encountered %d errors while loading query files: %w", len(loadErrors), errors.Join(loadErrors...))
	}

	return nil
}

// GetQuery returns a named query rebound to the driver's placeholder style.
func (svc *DataSourceService) GetQuery(name string) (string, error) {
	query, exists := svc.queries[name]
	if !exists {
		return "", fmt.Errorf("no query found with name: %s", name)
	}
	return svc.db.Rebind(query), nil
}

// EnsureSchema creates the staging tables when they do not exist yet.
func (svc *DataSourceService) EnsureSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := svc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create staging schema: %w", err)
		}
	}
	svc.log.Debug().Msg("Ensured staging schema")
	return nil
}

func splitStatements(ddl string) []string {
	var lines []string
	for _, line := range strings.Split(ddl, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			lines = append(lines, line)
		}
	}
	var statements []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func (svc *DataSourceService) selectNamed(ctx context.Context, dest any, name string, args ...any) error {
	query, err := svc.GetQuery(name)
	if err != nil {
		return err
	}
	if err := svc.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("failed to execute query %s: %w", name, err)
	}
	return nil
}

// getNamed returns false when the query matched no row.
func (svc *DataSourceService) getNamed(ctx context.Context, dest any, name string, args ...any) (bool, error) {
	query, err := svc.GetQuery(name)
	if err != nil {
		return false, err
	}
	if err := svc.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to execute query %s: %w", name, err)
	}
	return true, nil
}

// Subjects returns up to limit human subjects with an id greater than after.
func (svc *DataSourceService) Subjects(ctx context.Context, after string, limit int) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// SubjectByID returns nil when the subject does not exist or is not human.
func (svc *DataSourceService) SubjectByID(ctx context.Context, id string) (*cda.Subject, error) {
	var row cda.Subject
	found, err := svc.getNamed(ctx, &row, QuerySubjectByID, id)
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

func (svc *DataSourceService) SubjectProjects(ctx context.Context, alias int64) ([]string, error) {
	var rows []string
	if err := svc.selectNamed(ctx, &rows, QuerySubjectProjects, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectIdentifiers(ctx context.Context, alias int64) ([]cda.SubjectIdentifier, error) {
	var rows []cda.SubjectIdentifier
	if err := svc.selectNamed(ctx, &rows, QuerySubjectIdentifiers, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectsByResearchSubject(ctx context.Context, alias int64) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsByResearchSubject, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectsByDiagnosis(ctx context.Context, alias int64) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsByDiagnosis, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectsByTreatment(ctx context.Context, alias int64) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsByTreatment, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectsByFile(ctx context.Context, alias int64) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsByFile, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) SubjectsByMutation(ctx context.Context, alias int64) ([]cda.Subject, error) {
	var rows []cda.Subject
	if err := svc.selectNamed(ctx, &rows, QuerySubjectsByMutation, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) ResearchSubjects(ctx context.Context, after string, limit int) ([]cda.ResearchSubject, error) {
	var rows []cda.ResearchSubject
	if err := svc.selectNamed(ctx, &rows, QueryResearchSubjectsPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) ResearchSubjectsBySubject(ctx context.Context, alias int64) ([]cda.ResearchSubject, error) {
	var rows []cda.ResearchSubject
	if err := svc.selectNamed(ctx, &rows, QueryResearchSubjectsBySubject, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) Diagnoses(ctx context.Context, after string, limit int) ([]cda.Diagnosis, error) {
	var rows []cda.Diagnosis
	if err := svc.selectNamed(ctx, &rows, QueryDiagnosesPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) Treatments(ctx context.Context, after string, limit int) ([]cda.Treatment, error) {
	var rows []cda.Treatment
	if err := svc.selectNamed(ctx, &rows, QueryTreatmentsPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) Specimens(ctx context.Context, after string, limit int) ([]cda.Specimen, error) {
	var rows []cda.Specimen
	if err := svc.selectNamed(ctx, &rows, QuerySpecimensPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// SpecimenByID returns nil when the specimen does not exist.
func (svc *DataSourceService) SpecimenByID(ctx context.Context, id string) (*cda.Specimen, error) {
	var row cda.Specimen
	found, err := svc.getNamed(ctx, &row, QuerySpecimenByID, id)
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

func (svc *DataSourceService) SpecimensByFile(ctx context.Context, alias int64) ([]cda.Specimen, error) {
	var rows []cda.Specimen
	if err := svc.selectNamed(ctx, &rows, QuerySpecimensByFile, alias); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) Files(ctx context.Context, after string, limit int) ([]cda.File, error) {
	var rows []cda.File
	if err := svc.selectNamed(ctx, &rows, QueryFilesPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) Mutations(ctx context.Context, after string, limit int) ([]cda.Mutation, error) {
	var rows []cda.Mutation
	if err := svc.selectNamed(ctx, &rows, QueryMutationsPage, after, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProjectCodes returns the distinct raw project values of subject_project,
// researchsubject and specimen. Values may still need splitting.
func (svc *DataSourceService) ProjectCodes(ctx context.Context) ([]string, error) {
	var rows []string
	if err := svc.selectNamed(ctx, &rows, QueryProjectCodes); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProjectRelations returns the relation rows where code appears in any of the
// data commons columns.
func (svc *DataSourceService) ProjectRelations(ctx context.Context, code string) ([]cda.ProjectRelation, error) {
	var rows []cda.ProjectRelation
	if err := svc.selectNamed(ctx, &rows, QueryProjectRelations, code, code, code, code, code); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *DataSourceService) ProjectDbGap(ctx context.Context, code string) ([]string, error) {
	var rows []string
	if err := svc.selectNamed(ctx, &rows, QueryProjectDbGap, code); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProgramDbGap returns the accessions of any of the given program names.
func (svc *DataSourceService) ProgramDbGap(ctx context.Context, programs []string) ([]string, error) {
	if len(programs) == 0 {
		return nil, nil
	}
	raw, ok := svc.queries[QueryProgramDbGap]
	if !ok {
		return nil, fmt.Errorf("no query found with name: %s", QueryProgramDbGap)
	}
	query, args, err := sqlx.In(raw, programs)
	if err != nil {
		return nil, fmt.Errorf("failed to expand query %s: %w", QueryProgramDbGap, err)
	}

	var rows []string
	if err := svc.db.SelectContext(ctx, &rows, svc.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to execute query %s: %w", QueryProgramDbGap, err)
	}
	return rows, nil
}
