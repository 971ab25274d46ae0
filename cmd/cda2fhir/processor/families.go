package processor

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/resolver"
	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/transformer"
	"github.com/SanteonNL/cda2fhir/models/cda"
	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/SanteonNL/cda2fhir/util"
)

func subjectKey(s cda.Subject) string                 { return s.ID }
func researchSubjectKey(rs cda.ResearchSubject) string { return rs.ID }
func diagnosisKey(d cda.Diagnosis) string              { return d.ID }
func treatmentKey(tr cda.Treatment) string             { return tr.ID }
func specimenKey(s cda.Specimen) string                { return s.ID }
func fileKey(f cda.File) string                        { return f.ID }
func mutationKey(m cda.Mutation) string                { return m.ID }

// projectIndex collects project codes in first-seen order together with
// the data commons systems their subjects were found in.
type projectIndex struct {
	codes   []string
	systems map[string][]string
}

func (ix *projectIndex) add(code string, systems ...string) {
	if ix.systems == nil {
		ix.systems = make(map[string][]string)
	}
	if _, ok := ix.systems[code]; !ok {
		ix.codes = append(ix.codes, code)
		ix.systems[code] = nil
	}
	for _, system := range systems {
		if !slices.Contains(ix.systems[code], system) {
			ix.systems[code] = append(ix.systems[code], system)
		}
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// researchStudies emits one ResearchStudy per project code and one per
// program, sub-program or data commons a project is part of. Codes come
// from the project columns of the staging tables and from every subject's
// project chain, so every study a later family references exists.
func (p *ProcessorService) researchStudies(ctx context.Context, run *familyRun) error {
	var index projectIndex

	raw, err := p.store.ProjectCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read project codes: %w", err)
	}
	for _, value := range raw {
		for _, code := range transformer.SplitProjects(value) {
			index.add(code)
		}
	}

	err = pageFamily(ctx, p, run, p.store.Subjects, subjectKey, func(ctx context.Context, subject cda.Subject) error {
		codes, err := p.resolver.SubjectProjectCodes(ctx, subject)
		if err != nil {
			return err
		}
		var identifiers []cda.SubjectIdentifier
		if subject.IntegerIDAlias != nil {
			if identifiers, err = p.store.SubjectIdentifiers(ctx, *subject.IntegerIDAlias); err != nil {
				return err
			}
		}
		systems := resolver.SubjectSystems(subject, identifiers)
		for _, code := range codes {
			index.add(code, systems...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.transition(StateTransforming)
	var programs []string
	for _, code := range index.codes {
		names, err := p.resolver.ProjectPrograms(ctx, code)
		if err != nil {
			return err
		}
		partOf, err := p.resolver.ProjectPartOf(ctx, code)
		if err != nil {
			return err
		}
		for _, system := range index.systems[code] {
			partOf = append(partOf, transformer.ProgramReference(system))
		}
		programs = appendUnique(programs, names...)
		programs = appendUnique(programs, index.systems[code]...)

		dbGap, err := p.store.ProjectDbGap(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to read dbGap accessions of project %s: %w", code, err)
		}
		if len(names) > 0 {
			programDbGap, err := p.store.ProgramDbGap(ctx, names)
			if err != nil {
				return fmt.Errorf("failed to read program dbGap accessions of project %s: %w", code, err)
			}
			dbGap = append(dbGap, programDbGap...)
		}

		study, err := p.transformer.ResearchStudy(code, dbGap, partOf)
		if err != nil {
			run.skipped(code, err)
			continue
		}
		if err := run.emit(study); err != nil {
			return err
		}
	}

	for _, name := range programs {
		dbGap, err := p.store.ProgramDbGap(ctx, []string{name})
		if err != nil {
			return fmt.Errorf("failed to read dbGap accessions of program %s: %w", name, err)
		}
		study, err := p.transformer.ProgramStudy(name, dbGap, nil)
		if err != nil {
			run.skipped(name, err)
			continue
		}
		if err := run.emit(study); err != nil {
			return err
		}
	}

	run.transition(StateWriting)
	p.releaseBatch()
	return run.flush()
}

func (p *ProcessorService) patients(ctx context.Context, run *familyRun) error {
	return pageFamily(ctx, p, run, p.store.Subjects, subjectKey, func(ctx context.Context, subject cda.Subject) error {
		var identifiers []cda.SubjectIdentifier
		if subject.IntegerIDAlias != nil {
			var err error
			if identifiers, err = p.store.SubjectIdentifiers(ctx, *subject.IntegerIDAlias); err != nil {
				return err
			}
		}
		studies, err := p.resolver.SubjectStudies(ctx, subject)
		if err != nil {
			return err
		}
		bundle, err := p.transformer.Patient(subject, identifiers, studies)
		if err != nil {
			return err
		}
		if err := run.emit(bundle.Patient); err != nil {
			return err
		}
		for _, obs := range bundle.Observations {
			if err := run.emit(obs); err != nil {
				return err
			}
		}
		return nil
	})
}

// firstSubject loads the human subjects of a record through its alias and
// returns the one with the lowest business id.
func firstSubject(ctx context.Context, kind, id string, alias *int64, load func(context.Context, int64) ([]cda.Subject, error)) (cda.Subject, error) {
	if alias == nil {
		return cda.Subject{}, skipf("%s %s has no integer alias", kind, id)
	}
	subjects, err := load(ctx, *alias)
	if err != nil {
		return cda.Subject{}, fmt.Errorf("failed to read subjects of %s %s: %w", kind, id, err)
	}
	if len(subjects) == 0 {
		return cda.Subject{}, skipf("%s %s has no human subject", kind, id)
	}
	return subjects[0], nil
}

func (p *ProcessorService) researchSubjects(ctx context.Context, run *familyRun) error {
	return pageFamily(ctx, p, run, p.store.ResearchSubjects, researchSubjectKey, func(ctx context.Context, rs cda.ResearchSubject) error {
		subject, err := firstSubject(ctx, "research subject", rs.ID, rs.IntegerIDAlias, p.store.SubjectsByResearchSubject)
		if err != nil {
			return err
		}
		studies, err := p.resolver.SubjectStudies(ctx, subject)
		if err != nil {
			return err
		}
		patient := &fhir.Patient{Extension: transformer.PartOfStudy(studies)}
		out, err := p.transformer.ResearchSubject(rs, subject.ID, patient)
		if err != nil {
			return err
		}
		return run.emit(out)
	})
}

func (p *ProcessorService) specimens(ctx context.Context, run *familyRun) error {
	run.requires = true
	return pageFamily(ctx, p, run, p.store.Specimens, specimenKey, func(ctx context.Context, s cda.Specimen) error {
		subject, err := p.resolver.SpecimenSubject(ctx, s)
		if err != nil {
			return err
		}
		if subject == nil {
			return skipf("specimen %s has no human subject", s.ID)
		}
		parent, err := p.resolver.ParentSpecimen(ctx, s)
		if err != nil {
			return err
		}
		studies, err := p.resolver.SubjectStudies(ctx, *subject)
		if err != nil {
			return err
		}
		bundle, err := p.transformer.Specimen(s, subject.ID, parent, studies)
		if err != nil {
			return err
		}
		if err := run.emit(bundle.Specimen); err != nil {
			return err
		}
		if bundle.BodyStructure != nil {
			if err := run.emit(*bundle.BodyStructure); err != nil {
				return err
			}
		}
		if bundle.Observation != nil {
			return run.emit(*bundle.Observation)
		}
		return nil
	})
}

func (p *ProcessorService) conditions(ctx context.Context, run *familyRun) error {
	run.requires = true
	return pageFamily(ctx, p, run, p.store.Diagnoses, diagnosisKey, func(ctx context.Context, d cda.Diagnosis) error {
		subject, err := firstSubject(ctx, "diagnosis", d.ID, d.IntegerIDAlias, p.store.SubjectsByDiagnosis)
		if err != nil {
			return err
		}
		studies, err := p.resolver.SubjectStudies(ctx, subject)
		if err != nil {
			return err
		}
		bundle, err := p.transformer.Condition(d, subject.ID, studies)
		if err != nil {
			return err
		}
		if bundle.Stage != nil {
			if err := run.emit(*bundle.Stage); err != nil {
				return err
			}
		}
		return run.emit(bundle.Condition)
	})
}

// medication resolves the compound chain of an agent once per batch. A nil
// chain means no compound matched.
func (p *ProcessorService) medication(ctx context.Context, agent string) (*transformer.MedicationChain, error) {
	key := transformer.AgentKey(agent)
	if key == "" {
		return nil, nil
	}
	return p.medications.GetOrLoad(key, func() (*transformer.MedicationChain, error) {
		found, rows, err := p.compounds.LookupCompounds(ctx, []string{key}, p.options.CompoundLimit)
		if err != nil {
			return nil, fmt.Errorf("compound lookup for %q failed: %w", key, err)
		}
		if !found {
			return nil, nil
		}
		return p.transformer.Medication(agent, rows), nil
	})
}

func (p *ProcessorService) medicationAdministrations(ctx context.Context, run *familyRun) error {
	return pageFamily(ctx, p, run, p.store.Treatments, treatmentKey, func(ctx context.Context, tr cda.Treatment) error {
		if tr.IntegerIDAlias == nil {
			return skipf("treatment %s has no integer alias", tr.ID)
		}
		subjects, err := p.store.SubjectsByTreatment(ctx, *tr.IntegerIDAlias)
		if err != nil {
			return fmt.Errorf("failed to read subjects of treatment %s: %w", tr.ID, err)
		}
		if len(subjects) == 0 {
			return skipf("treatment %s has no human subject", tr.ID)
		}

		med, err := p.medication(ctx, util.Deref(tr.TherapeuticAgent))
		if err != nil {
			return err
		}
		if med != nil {
			for _, sd := range med.SubstanceDefinitions {
				if err := run.emit(sd); err != nil {
					return err
				}
			}
			for _, substance := range med.Substances {
				if err := run.emit(substance); err != nil {
					return err
				}
			}
			if err := run.emit(med.Medication); err != nil {
				return err
			}
		}

		for _, subject := range subjects {
			studies, err := p.resolver.SubjectStudies(ctx, subject)
			if err != nil {
				return err
			}
			admin, err := p.transformer.MedicationAdministration(tr, subject.ID, med, studies)
			if err != nil {
				return err
			}
			if err := run.emit(admin); err != nil {
				return err
			}
		}
		return nil
	})
}

// documentReferences prefers the specimens of a file and falls back to its
// subjects; more than one candidate is referenced through a Group.
func (p *ProcessorService) documentReferences(ctx context.Context, run *familyRun) error {
	run.requires = true
	return pageFamily(ctx, p, run, p.store.Files, fileKey, func(ctx context.Context, f cda.File) error {
		var (
			tag     = transformer.GroupTagSpecimen
			members []transformer.Member
			studies []fhir.Reference
		)

		specimens, err := p.resolver.SpecimenCandidates(ctx, f)
		if err != nil {
			return err
		}
		for _, c := range specimens {
			subjectStudies, err := p.resolver.SubjectStudies(ctx, c.Subject)
			if err != nil {
				return err
			}
			members = append(members, transformer.Member{BusinessID: c.Specimen.ID, Reference: transformer.SpecimenReference(c.Specimen.ID)})
			studies = append(studies, transformer.SpecimenStudies(c.Specimen, subjectStudies)...)
		}

		if len(members) == 0 {
			tag = transformer.GroupTagPatient
			subjects, err := p.resolver.SubjectCandidates(ctx, f)
			if err != nil {
				return err
			}
			for _, s := range subjects {
				subjectStudies, err := p.resolver.SubjectStudies(ctx, s)
				if err != nil {
					return err
				}
				members = append(members, transformer.Member{BusinessID: s.ID, Reference: transformer.PatientReference(s.ID)})
				studies = append(studies, subjectStudies...)
			}
		}
		studies = transformer.DedupeReferences(studies)

		resolution, err := p.resolver.ReferenceOrGroup(f.ID, tag, members, studies)
		if err != nil {
			return err
		}
		doc, err := p.transformer.DocumentReference(f, resolution.Reference, studies)
		if err != nil {
			return err
		}
		if resolution.Group != nil {
			if err := run.emit(*resolution.Group); err != nil {
				return err
			}
		}
		return run.emit(doc)
	})
}

func (p *ProcessorService) mutations(ctx context.Context, run *familyRun) error {
	return pageFamily(ctx, p, run, p.store.Mutations, mutationKey, func(ctx context.Context, m cda.Mutation) error {
		if m.IntegerIDAlias == nil {
			return skipf("mutation %s has no integer alias", m.ID)
		}
		alias := *m.IntegerIDAlias
		subjects, err := p.mutationSubjects.GetOrLoad(alias, func() ([]cda.Subject, error) {
			return p.store.SubjectsByMutation(ctx, alias)
		})
		if err != nil {
			return fmt.Errorf("failed to read subjects of mutation %s: %w", m.ID, err)
		}
		if len(subjects) == 0 {
			return skipf("mutation %s has no human subject", m.ID)
		}
		studies, err := p.resolver.SubjectStudies(ctx, subjects[0])
		if err != nil {
			return err
		}
		obs, err := p.transformer.MutationObservation(m, subjects[0].ID, studies)
		if err != nil {
			return err
		}
		return run.emit(obs)
	})
}
