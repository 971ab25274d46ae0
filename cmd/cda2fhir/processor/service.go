package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/cache"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/compound"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/metrics"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/output"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/resolver"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/transformer"
	"github.com/SanteonNL/cda2fhir/models/cda"
)

// DefaultBatchSize bounds the source rows held per batch.
const DefaultBatchSize = 1000

// ErrNoSourceRecords fails a family whose source table must not be empty.
var ErrNoSourceRecords = errors.New("no source records")

// Store is the staging data the processor pages through.
type Store interface {
	resolver.Source

	Subjects(ctx context.Context, after string, limit int) ([]cda.Subject, error)
	SubjectsByResearchSubject(ctx context.Context, alias int64) ([]cda.Subject, error)
	SubjectsByDiagnosis(ctx context.Context, alias int64) ([]cda.Subject, error)
	SubjectsByTreatment(ctx context.Context, alias int64) ([]cda.Subject, error)
	SubjectsByMutation(ctx context.Context, alias int64) ([]cda.Subject, error)

	ResearchSubjects(ctx context.Context, after string, limit int) ([]cda.ResearchSubject, error)
	Diagnoses(ctx context.Context, after string, limit int) ([]cda.Diagnosis, error)
	Treatments(ctx context.Context, after string, limit int) ([]cda.Treatment, error)
	Specimens(ctx context.Context, after string, limit int) ([]cda.Specimen, error)
	Files(ctx context.Context, after string, limit int) ([]cda.File, error)
	Mutations(ctx context.Context, after string, limit int) ([]cda.Mutation, error)

	ProjectCodes(ctx context.Context) ([]string, error)
	ProjectDbGap(ctx context.Context, code string) ([]string, error)
	ProgramDbGap(ctx context.Context, programs []string) ([]string, error)
}

// Options select what a run does.
type Options struct {
	// BatchSize is the page size of every family; DefaultBatchSize when 0.
	BatchSize int
	// Families to run; all when empty.
	Families []Family
	// UpdateExisting makes a repeated id replace the stored resource
	// instead of keeping the first one.
	UpdateExisting bool
	// SampleLimits caps the source records read per family, for
	// development runs.
	SampleLimits map[Family]int
	// CompoundLimit bounds the compound rows per therapeutic agent.
	CompoundLimit int
}

type ProcessorService struct {
	log           zerolog.Logger
	store         Store
	transformer   *transformer.Transformer
	resolver      *resolver.ResolverService
	compounds     compound.Lookup
	outputManager *output.OutputManager
	metrics       *metrics.Recorder
	options       Options

	medications      *cache.BatchCache[string, *transformer.MedicationChain]
	mutationSubjects *cache.BatchCache[int64, []cda.Subject]
}

// ProcessorConfig holds all the configuration needed to create a new processor
type ProcessorConfig struct {
	Log           zerolog.Logger
	Store         Store
	Transformer   *transformer.Transformer
	Compounds     compound.Lookup
	OutputManager *output.OutputManager
	Metrics       *metrics.Recorder
	CacheConfig   *cache.CacheConfig
	Options       Options
}

// NewProcessorService creates a new processor service with all required dependencies
func NewProcessorService(config ProcessorConfig) (*ProcessorService, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if config.Compounds == nil {
		return nil, fmt.Errorf("compounds is required")
	}
	if config.OutputManager == nil {
		return nil, fmt.Errorf("outputManager is required")
	}
	if config.Options.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must not be negative, got %d", config.Options.BatchSize)
	}

	options := config.Options
	if options.BatchSize == 0 {
		options.BatchSize = DefaultBatchSize
	}
	recorder := config.Metrics
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	cacheConfig := config.CacheConfig
	if cacheConfig == nil {
		cacheConfig = cache.DefaultCacheConfig()
	}

	log := config.Log.With().Str("component", "processor").Logger()
	return &ProcessorService{
		log:              log,
		store:            config.Store,
		transformer:      config.Transformer,
		resolver:         resolver.NewResolverService(config.Store, config.Transformer, *cacheConfig, config.Log),
		compounds:        config.Compounds,
		outputManager:    config.OutputManager,
		metrics:          recorder,
		options:          options,
		medications:      cache.NewBatchCache[string, *transformer.MedicationChain]("medications", *cacheConfig, config.Log),
		mutationSubjects: cache.NewBatchCache[int64, []cda.Subject]("mutation_subjects", *cacheConfig, config.Log),
	}, nil
}

// Metrics returns the recorder the run counts into.
func (p *ProcessorService) Metrics() *metrics.Recorder {
	return p.metrics
}

// Enabled reports whether family f is part of the run.
func (p *ProcessorService) Enabled(f Family) bool {
	if len(p.options.Families) == 0 {
		return true
	}
	for _, enabled := range p.options.Families {
		if enabled == f {
			return true
		}
	}
	return false
}

// Run processes every enabled family in order. A failing family does not
// stop the others; the returned error joins all family failures.
func (p *ProcessorService) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	var errs []error

	for _, family := range Families {
		if !p.Enabled(family) {
			p.log.Info().Str("family", string(family)).Msg("Family not enabled, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		fr := p.runFamily(ctx, family)
		report.Families = append(report.Families, fr)
		if fr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", family, fr.Err))
		}
	}

	return report, errors.Join(errs...)
}

func (p *ProcessorService) runFamily(ctx context.Context, family Family) FamilyReport {
	started := time.Now()
	run := p.newFamilyRun(family)
	p.log.Info().Str("family", string(family)).Msg("Processing family")

	var err error
	switch family {
	case FamilyResearchStudy:
		err = p.researchStudies(ctx, run)
	case FamilyPatient:
		err = p.patients(ctx, run)
	case FamilyResearchSubject:
		err = p.researchSubjects(ctx, run)
	case FamilySpecimen:
		err = p.specimens(ctx, run)
	case FamilyCondition:
		err = p.conditions(ctx, run)
	case FamilyMedicationAdministration:
		err = p.medicationAdministrations(ctx, run)
	case FamilyDocumentReference:
		err = p.documentReferences(ctx, run)
	case FamilyMutation:
		err = p.mutations(ctx, run)
	default:
		err = fmt.Errorf("unsupported family %s", family)
	}
	if err == nil {
		err = run.finish()
	}
	run.close()

	run.report.Duration = time.Since(started)
	if err != nil {
		run.report.Err = err
		run.transition(StateFailed)
		p.metrics.Failed(string(family))
		p.log.Error().Err(err).
			Str("family", string(family)).
			Int("records", run.report.Records).
			Msg("Family failed")
		return *run.report
	}

	run.transition(StateDone)
	p.log.Info().
		Str("family", string(family)).
		Int("batches", run.report.Batches).
		Int("records", run.report.Records).
		Int("skipped", run.report.Skipped).
		Dur("duration", run.report.Duration).
		Msg("Family done")
	return *run.report
}

// releaseBatch drops every lookup memoized during the current batch.
func (p *ProcessorService) releaseBatch() {
	p.resolver.Reset()
	p.medications.Reset()
	p.mutationSubjects.Reset()
}
