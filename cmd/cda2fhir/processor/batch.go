package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/metrics"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/output"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/resolver"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/transformer"
	"github.com/SanteonNL/cda2fhir/models/fhir"
)

// mergeTypes accumulate contributions of several families. Each batch is
// spooled to disk and the family's spool is merged into the file once when
// the family completes. All other types are collected in memory for the
// whole family and written once.
var mergeTypes = map[string]bool{
	"Observation":       true,
	"DocumentReference": true,
	"Group":             true,
}

// setTypes are the whole-file types each family owns. A family that
// completes without emitting one of them clears the file of an earlier run.
var setTypes = map[Family][]string{
	FamilyResearchStudy:            {"ResearchStudy"},
	FamilyPatient:                  {"Patient"},
	FamilyResearchSubject:          {"ResearchSubject"},
	FamilySpecimen:                 {"BodyStructure", "Specimen"},
	FamilyCondition:                {"Condition"},
	FamilyMedicationAdministration: {"Medication", "MedicationAdministration", "Substance", "SubstanceDefinition"},
}

// Skip reasons used as metric labels.
const (
	reasonInvalid      = "invalid"
	reasonNoCandidates = "no_candidates"
	reasonLookup       = "lookup_error"
)

func skipf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", transformer.ErrSkipRecord, fmt.Sprintf(format, args...))
}

type familyRun struct {
	family         Family
	state          State
	log            zerolog.Logger
	report         *FamilyReport
	om             *output.OutputManager
	metrics        *metrics.Recorder
	updateExisting bool
	sample         int

	sets     map[string]*output.ResourceSet
	pending  map[string][]fhir.Resource
	spools   map[string]*output.Spool
	requires bool
}

func (p *ProcessorService) newFamilyRun(family Family) *familyRun {
	run := &familyRun{
		family:         family,
		state:          StateNotStarted,
		log:            p.log.With().Str("family", string(family)).Logger(),
		report:         &FamilyReport{Family: family, State: StateNotStarted, Emitted: make(map[string]int)},
		om:             p.outputManager,
		metrics:        p.metrics,
		updateExisting: p.options.UpdateExisting,
		sample:         p.options.SampleLimits[family],
		sets:           make(map[string]*output.ResourceSet),
		pending:        make(map[string][]fhir.Resource),
		spools:         make(map[string]*output.Spool),
	}
	for _, resourceType := range setTypes[family] {
		run.sets[resourceType] = output.NewResourceSet(resourceType, run.updateExisting)
	}
	return run
}

func (r *familyRun) transition(next State) {
	if r.state == next {
		return
	}
	r.log.Debug().
		Str("from", r.state.String()).
		Str("to", next.String()).
		Int("batch", r.report.Batches).
		Msg("Family state")
	r.state = next
	r.report.State = next
}

// nextLimit is the page size of the next batch, 0 once the sample is used up.
func (r *familyRun) nextLimit(batchSize int) int {
	if r.sample <= 0 {
		return batchSize
	}
	left := r.sample - r.report.Records
	if left <= 0 {
		return 0
	}
	if left < batchSize {
		return left
	}
	return batchSize
}

// emit hands finished resources to the writer of their type.
func (r *familyRun) emit(resources ...fhir.Resource) error {
	for _, res := range resources {
		resourceType := res.ResourceType()
		if mergeTypes[resourceType] {
			if res.ResourceID() == "" {
				return fmt.Errorf("%s without id", resourceType)
			}
			r.pending[resourceType] = append(r.pending[resourceType], res)
		} else {
			set, ok := r.sets[resourceType]
			if !ok {
				set = output.NewResourceSet(resourceType, r.updateExisting)
				r.sets[resourceType] = set
			}
			if _, err := set.Add(res); err != nil {
				return err
			}
		}
		r.report.Emitted[resourceType]++
		r.metrics.Emitted(string(r.family), resourceType, 1)
	}
	return nil
}

// skipped counts and logs a dropped source record under the reason its
// error maps to.
func (r *familyRun) skipped(recordID string, err error) {
	reason := reasonLookup
	switch {
	case errors.Is(err, transformer.ErrSkipRecord):
		reason = reasonInvalid
	case errors.Is(err, resolver.ErrNoCandidates):
		reason = reasonNoCandidates
	}
	r.report.Skipped++
	r.metrics.Skipped(string(r.family), reason)
	r.log.Warn().Err(err).
		Str("record", recordID).
		Str("reason", reason).
		Msg("Skipping record")
}

// flush appends the batch's merge-mode resources to the family spools.
func (r *familyRun) flush() error {
	for resourceType, resources := range r.pending {
		spool, ok := r.spools[resourceType]
		if !ok {
			var err error
			if spool, err = r.om.NewSpool(resourceType, r.updateExisting); err != nil {
				return err
			}
			r.spools[resourceType] = spool
		}
		for _, res := range resources {
			if _, err := spool.Add(res); err != nil {
				return err
			}
		}
	}
	r.pending = make(map[string][]fhir.Resource)
	return nil
}

// finish merges the family spools and writes the family's resource sets. It
// is not called for a failed family, so a failure never touches a previously
// complete file.
func (r *familyRun) finish() error {
	spooled := make([]string, 0, len(r.spools))
	for resourceType := range r.spools {
		spooled = append(spooled, resourceType)
	}
	sort.Strings(spooled)

	for _, resourceType := range spooled {
		stats, err := r.om.MergeSpool(r.spools[resourceType])
		if err != nil {
			return err
		}
		r.log.Info().
			Str("resourceType", resourceType).
			Int("added", stats.Added).
			Int("replaced", stats.Replaced).
			Int("kept", stats.Kept).
			Msg("Merged resources")
	}

	types := make([]string, 0, len(r.sets))
	for resourceType := range r.sets {
		types = append(types, resourceType)
	}
	sort.Strings(types)

	for _, resourceType := range types {
		written, err := r.om.WriteSet(r.sets[resourceType])
		if err != nil {
			return err
		}
		r.log.Info().Str("resourceType", resourceType).Int("resources", written).Msg("Wrote resources")
	}
	r.sets = make(map[string]*output.ResourceSet)
	return nil
}

// close removes the family spools, merged or not.
func (r *familyRun) close() {
	for resourceType, spool := range r.spools {
		if err := spool.Close(); err != nil {
			r.log.Warn().Err(err).Str("resourceType", resourceType).Msg("Failed to remove spool")
		}
	}
	r.spools = make(map[string]*output.Spool)
}

// pageFamily drives the batch loop of one family: load a page keyed after
// the last business id, transform every record, then release the batch
// caches and flush. Records whose transform fails are skipped.
func pageFamily[T any](
	ctx context.Context,
	p *ProcessorService,
	run *familyRun,
	load func(ctx context.Context, after string, limit int) ([]T, error),
	key func(T) string,
	transform func(ctx context.Context, record T) error,
) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		run.transition(StateLoadingBatch)
		limit := run.nextLimit(p.options.BatchSize)
		if limit == 0 {
			run.log.Info().Int("sample", run.sample).Msg("Sample limit reached")
			return nil
		}

		records, err := load(ctx, after, limit)
		if err != nil {
			return fmt.Errorf("failed to load batch after %q: %w", after, err)
		}
		if len(records) == 0 {
			if run.report.Records == 0 && run.requires {
				return fmt.Errorf("%w for family %s", ErrNoSourceRecords, run.family)
			}
			return nil
		}
		run.report.Batches++
		p.metrics.Batch(string(run.family))

		run.transition(StateTransforming)
		for _, record := range records {
			run.report.Records++
			if err := transform(ctx, record); err != nil {
				run.skipped(key(record), err)
			}
		}

		run.transition(StateWriting)
		p.releaseBatch()
		if err := run.flush(); err != nil {
			return err
		}

		if len(records) < limit {
			return nil
		}
		after = key(records[len(records)-1])
	}
}
