// Package resolver links source records to the references other resources
// point at: project studies, parent specimens, file subjects and Groups.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/cache"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/transformer"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

// ErrNoCandidates is returned when nothing valid is left to reference.
var ErrNoCandidates = errors.New("no resolvable candidates")

// beatAMLPrefix is the one project whose ids contain a "." inside the
// project part.
const beatAMLPrefix = "BEATAML1.0"

// Source is the part of the staging store the resolver reads.
type Source interface {
	SubjectByID(ctx context.Context, id string) (*cda.Subject, error)
	SubjectProjects(ctx context.Context, alias int64) ([]string, error)
	SubjectIdentifiers(ctx context.Context, alias int64) ([]cda.SubjectIdentifier, error)
	ResearchSubjectsBySubject(ctx context.Context, alias int64) ([]cda.ResearchSubject, error)
	SpecimenByID(ctx context.Context, id string) (*cda.Specimen, error)
	SpecimensByFile(ctx context.Context, alias int64) ([]cda.Specimen, error)
	SubjectsByFile(ctx context.Context, alias int64) ([]cda.Subject, error)
	ProjectRelations(ctx context.Context, code string) ([]cda.ProjectRelation, error)
}

// Resolution is the outcome of ReferenceOrGroup. Group is nil when Reference
// points at a single candidate.
type Resolution struct {
	Reference fhir.Reference
	Group     *fhir.Group
}

type ResolverService struct {
	src Source
	tr  *transformer.Transformer
	log zerolog.Logger

	subjects     *cache.BatchCache[string, *cda.Subject]
	subjectCodes *cache.BatchCache[string, []string]
	programs     *cache.BatchCache[string, []string]
}

// NewResolverService creates a resolver whose lookups are memoized until Reset.
func NewResolverService(src Source, tr *transformer.Transformer, cacheConfig cache.CacheConfig, log zerolog.Logger) *ResolverService {
	return &ResolverService{
		src:          src,
		tr:           tr,
		log:          log.With().Str("component", "resolver").Logger(),
		subjects:     cache.NewBatchCache[string, *cda.Subject]("subjects", cacheConfig, log),
		subjectCodes: cache.NewBatchCache[string, []string]("subject_projects", cacheConfig, log),
		programs:     cache.NewBatchCache[string, []string]("project_programs", cacheConfig, log),
	}
}

// Reset releases everything memoized during the current batch.
func (r *ResolverService) Reset() {
	r.subjects.Reset()
	r.subjectCodes.Reset()
	r.programs.Reset()
}

// ReferenceOrGroup applies the zero/one/many policy to the candidates of
// ownerID. Duplicates by reference are dropped first. With more than one
// candidate a Group of kind tag is built and referenced instead.
func (r *ResolverService) ReferenceOrGroup(ownerID, tag string, candidates []transformer.Member, studies []fhir.Reference) (Resolution, error) {
	seen := make(map[string]struct{}, len(candidates))
	var unique []transformer.Member
	for _, c := range candidates {
		target := util.Deref(c.Reference.Reference)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		unique = append(unique, c)
	}

	switch len(unique) {
	case 0:
		return Resolution{}, fmt.Errorf("%w for %s", ErrNoCandidates, ownerID)
	case 1:
		return Resolution{Reference: unique[0].Reference}, nil
	}

	group, err := r.tr.Group(ownerID, tag, unique, studies)
	if err != nil {
		return Resolution{}, err
	}
	r.log.Debug().
		Str("owner", ownerID).
		Str("tag", tag).
		Int("members", len(unique)).
		Msg("Resolved candidates to a group")
	return Resolution{Reference: fhir.Reference{Reference: util.StringPtr("Group/" + util.Deref(group.Id))}, Group: &group}, nil
}

// ProjectPrograms returns the program, matched data commons and sub-program
// names of a project, deduplicated in first-seen order.
func (r *ResolverService) ProjectPrograms(ctx context.Context, code string) ([]string, error) {
	return r.programs.GetOrLoad(code, func() ([]string, error) {
		relations, err := r.src.ProjectRelations(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to read relations of project %s: %w", code, err)
		}
		var names []string
		for _, rel := range relations {
			for _, name := range []string{util.Deref(rel.Program), rel.MatchedSystem(code), util.Deref(rel.SubProgram)} {
				if name = strings.TrimSpace(name); name != "" && !slices.Contains(names, name) {
					names = append(names, name)
				}
			}
		}
		return names, nil
	})
}

// ProjectPartOf references the program studies of a project, one per target.
func (r *ResolverService) ProjectPartOf(ctx context.Context, code string) ([]fhir.Reference, error) {
	names, err := r.ProjectPrograms(ctx, code)
	if err != nil {
		return nil, err
	}
	refs := make([]fhir.Reference, 0, len(names))
	for _, name := range names {
		refs = append(refs, transformer.ProgramReference(name))
	}
	return transformer.DedupeReferences(refs), nil
}

// SubjectProjectCodes returns the project codes of a subject. Each step of
// the chain runs only when the previous one found nothing: subject_project
// rows, then the projects of the subject's research subjects, then the id
// prefix.
func (r *ResolverService) SubjectProjectCodes(ctx context.Context, subject cda.Subject) ([]string, error) {
	return r.subjectCodes.GetOrLoad(subject.ID, func() ([]string, error) {
		if subject.IntegerIDAlias != nil {
			alias := *subject.IntegerIDAlias

			direct, err := r.src.SubjectProjects(ctx, alias)
			if err != nil {
				return nil, fmt.Errorf("failed to read projects of subject %s: %w", subject.ID, err)
			}
			if codes := splitAll(direct); len(codes) > 0 {
				return codes, nil
			}

			researchSubjects, err := r.src.ResearchSubjectsBySubject(ctx, alias)
			if err != nil {
				return nil, fmt.Errorf("failed to read research subjects of subject %s: %w", subject.ID, err)
			}
			var members []string
			for _, rs := range researchSubjects {
				members = append(members, util.Deref(rs.MemberOfResearchProject))
			}
			if codes := splitAll(members); len(codes) > 0 {
				return codes, nil
			}
		}

		prefix := ProjectPrefix(subject.ID)
		if prefix == "" {
			return nil, nil
		}
		r.log.Warn().
			Str("subject", subject.ID).
			Str("project", prefix).
			Msg("Derived project from subject id prefix")
		return []string{prefix}, nil
	})
}

// SubjectStudies references the project studies of a subject.
func (r *ResolverService) SubjectStudies(ctx context.Context, subject cda.Subject) ([]fhir.Reference, error) {
	codes, err := r.SubjectProjectCodes(ctx, subject)
	if err != nil {
		return nil, err
	}
	refs := make([]fhir.Reference, 0, len(codes))
	for _, code := range codes {
		refs = append(refs, transformer.StudyReference(code))
	}
	return transformer.DedupeReferences(refs), nil
}

// SubjectSystems returns the data commons whose identifier of the subject
// equals the value part of the subject id.
func SubjectSystems(subject cda.Subject, identifiers []cda.SubjectIdentifier) []string {
	value := SubjectIDValue(subject.ID)
	if value == "" {
		return nil
	}
	var systems []string
	for _, row := range identifiers {
		system := strings.TrimSpace(row.System)
		if system != "" && row.Value == value && !slices.Contains(systems, system) {
			systems = append(systems, system)
		}
	}
	return systems
}

// Subject returns the human subject with business id id, or nil. The id is
// matched verbatim.
func (r *ResolverService) Subject(ctx context.Context, id string) (*cda.Subject, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return r.subjects.GetOrLoad(id, func() (*cda.Subject, error) {
		subject, err := r.src.SubjectByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read subject %s: %w", id, err)
		}
		return subject, nil
	})
}

// SpecimenSubject returns the subject a specimen was derived from, or nil.
func (r *ResolverService) SpecimenSubject(ctx context.Context, specimen cda.Specimen) (*cda.Subject, error) {
	return r.Subject(ctx, util.Deref(specimen.DerivedFromSubject))
}

// ParentSpecimen references the parent of a specimen. The parent is looked up
// by business id and only referenced when it exists and has a subject, which
// is exactly when the Specimen family emits it.
func (r *ResolverService) ParentSpecimen(ctx context.Context, specimen cda.Specimen) (*fhir.Reference, error) {
	parentID := transformer.ParentSpecimenID(specimen)
	if parentID == "" {
		return nil, nil
	}
	parent, err := r.src.SpecimenByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read parent specimen %s: %w", parentID, err)
	}
	if parent == nil {
		r.log.Debug().Str("specimen", specimen.ID).Str("parent", parentID).Msg("Parent specimen not found")
		return nil, nil
	}
	subject, err := r.SpecimenSubject(ctx, *parent)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, nil
	}
	ref := transformer.SpecimenReference(parent.ID)
	return &ref, nil
}

// SpecimenCandidate is a file specimen together with its subject.
type SpecimenCandidate struct {
	Specimen cda.Specimen
	Subject  cda.Subject
}

// SpecimenCandidates returns the specimens of a file that the Specimen family
// emits, sorted by business id.
func (r *ResolverService) SpecimenCandidates(ctx context.Context, file cda.File) ([]SpecimenCandidate, error) {
	if file.IntegerIDAlias == nil {
		return nil, nil
	}
	specimens, err := r.src.SpecimensByFile(ctx, *file.IntegerIDAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to read specimens of file %s: %w", file.ID, err)
	}
	var out []SpecimenCandidate
	for _, s := range specimens {
		subject, err := r.SpecimenSubject(ctx, s)
		if err != nil {
			return nil, err
		}
		if subject == nil || strings.TrimSpace(s.ID) == "" {
			continue
		}
		out = append(out, SpecimenCandidate{Specimen: s, Subject: *subject})
	}
	slices.SortStableFunc(out, func(a, b SpecimenCandidate) int { return strings.Compare(a.Specimen.ID, b.Specimen.ID) })
	return out, nil
}

// SubjectCandidates returns the human subjects of a file sorted by business id.
func (r *ResolverService) SubjectCandidates(ctx context.Context, file cda.File) ([]cda.Subject, error) {
	if file.IntegerIDAlias == nil {
		return nil, nil
	}
	subjects, err := r.src.SubjectsByFile(ctx, *file.IntegerIDAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to read subjects of file %s: %w", file.ID, err)
	}
	slices.SortStableFunc(subjects, func(a, b cda.Subject) int { return strings.Compare(a.ID, b.ID) })
	return subjects, nil
}

// ProjectPrefix derives a project code from a subject id: the part before the
// first ".", except for BEATAML1.0 whose prefix contains a ".".
func ProjectPrefix(subjectID string) string {
	subjectID = strings.TrimSpace(subjectID)
	if strings.HasPrefix(subjectID, beatAMLPrefix+".") {
		return beatAMLPrefix
	}
	prefix, _, found := strings.Cut(subjectID, ".")
	if !found {
		return ""
	}
	return strings.TrimSpace(prefix)
}

// SubjectIDValue is the subject id without its project prefix.
func SubjectIDValue(subjectID string) string {
	subjectID = strings.TrimSpace(subjectID)
	if strings.HasPrefix(subjectID, beatAMLPrefix+".") {
		return strings.TrimPrefix(subjectID, beatAMLPrefix+".")
	}
	parts := strings.Split(subjectID, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func splitAll(values []string) []string {
	var codes []string
	for _, value := range values {
		for _, code := range transformer.SplitProjects(value) {
			if !slices.Contains(codes, code) {
				codes = append(codes, code)
			}
		}
	}
	return codes
}
