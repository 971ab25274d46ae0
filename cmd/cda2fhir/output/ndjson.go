package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/SanteonNL/cda2fhir/models/fhir"
)

// ResourceSet deduplicates resources of one type by id, remembering
// insertion order. With updateExisting a repeated id replaces the stored
// resource in place; without it the first write wins.
type ResourceSet struct {
	resourceType   string
	updateExisting bool
	order          []string
	items          map[string]fhir.Resource
}

func NewResourceSet(resourceType string, updateExisting bool) *ResourceSet {
	return &ResourceSet{
		resourceType:   resourceType,
		updateExisting: updateExisting,
		items:          make(map[string]fhir.Resource),
	}
}

// Add stores r and reports whether it was new.
func (s *ResourceSet) Add(r fhir.Resource) (bool, error) {
	if r.ResourceType() != s.resourceType {
		return false, fmt.Errorf("cannot add %s to a %s set", r.ResourceType(), s.resourceType)
	}
	id := r.ResourceID()
	if id == "" {
		return false, fmt.Errorf("%s without id", s.resourceType)
	}
	if _, exists := s.items[id]; exists {
		if s.updateExisting {
			s.items[id] = r
		}
		return false, nil
	}
	s.items[id] = r
	s.order = append(s.order, id)
	return true, nil
}

func (s *ResourceSet) ResourceType() string { return s.resourceType }

func (s *ResourceSet) Len() int { return len(s.order) }

// Resources returns the stored resources in first-insertion order.
func (s *ResourceSet) Resources() []fhir.Resource {
	out := make([]fhir.Resource, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// MergeStats describes one Merge call.
type MergeStats struct {
	Existing int
	Replaced int
	Kept     int
	Added    int
}

// WriteSet rewrites the ndjson file of the set's resource type with exactly
// the set's content. An empty set removes a file left by an earlier run.
func (om *OutputManager) WriteSet(set *ResourceSet) (int, error) {
	path := om.ResourcePath(set.ResourceType())
	if set.Len() == 0 {
		err := os.Remove(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return 0, nil
		case err != nil:
			return 0, fmt.Errorf("failed to remove stale %s: %w", path, err)
		}
		om.log.Warn().
			Str("resourceType", set.ResourceType()).
			Str("file", path).
			Msg("Removed resource file, nothing was emitted for it")
		return 0, nil
	}

	written := 0
	err := writeAtomically(path, func(w *bufio.Writer) error {
		for _, r := range set.Resources() {
			line, err := MarshalLine(r)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	om.log.Debug().
		Str("resourceType", set.ResourceType()).
		Int("resources", written).
		Str("file", path).
		Msg("Wrote resource set")
	return written, nil
}

// Merge folds resources into the existing ndjson file of resourceType with
// a throwaway spool. See MergeSpool.
func (om *OutputManager) Merge(resourceType string, resources []fhir.Resource, updateExisting bool) (MergeStats, error) {
	if len(resources) == 0 {
		return MergeStats{}, nil
	}
	spool, err := om.NewSpool(resourceType, updateExisting)
	if err != nil {
		return MergeStats{}, err
	}
	defer spool.Close()
	for _, r := range resources {
		if _, err := spool.Add(r); err != nil {
			return MergeStats{}, err
		}
	}
	return om.MergeSpool(spool)
}

// MergeSpool folds a spool into the existing ndjson file of its type. Lines
// of other ids are copied as they are; a matching id is replaced only with
// updateExisting; new ids are appended in spool order. The existing file is
// read once and memory holds only the spool index.
func (om *OutputManager) MergeSpool(spool *Spool) (MergeStats, error) {
	var stats MergeStats
	if spool.Len() == 0 {
		return stats, nil
	}
	if err := spool.w.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush %s spool: %w", spool.resourceType, err)
	}

	path := om.ResourcePath(spool.resourceType)
	existing, err := os.Open(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stats, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if existing != nil {
		defer existing.Close()
	}

	consumed := make(map[string]struct{})
	err = writeAtomically(path, func(w *bufio.Writer) error {
		if existing != nil {
			reader := bufio.NewReader(existing)
			for {
				raw, readErr := reader.ReadBytes('\n')
				if len(bytes.TrimSpace(raw)) > 0 {
					stats.Existing++
					id, err := lineID(raw)
					if err != nil {
						return fmt.Errorf("line %d: %w", stats.Existing, err)
					}
					out := ensureNewline(raw)
					if spool.Has(id) {
						if _, seen := consumed[id]; !seen {
							consumed[id] = struct{}{}
							if spool.updateExisting {
								if out, err = spool.line(id); err != nil {
									return err
								}
								stats.Replaced++
							} else {
								stats.Kept++
							}
						}
					}
					if _, err := w.Write(out); err != nil {
						return err
					}
				}
				if readErr == io.EOF {
					break
				}
				if readErr != nil {
					return readErr
				}
			}
		}

		for _, id := range spool.order {
			if _, ok := consumed[id]; ok {
				continue
			}
			line, err := spool.line(id)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			stats.Added++
		}
		return nil
	})
	if err != nil {
		return MergeStats{}, fmt.Errorf("failed to merge into %s: %w", path, err)
	}

	om.log.Debug().
		Str("resourceType", spool.resourceType).
		Int("existing", stats.Existing).
		Int("replaced", stats.Replaced).
		Int("kept", stats.Kept).
		Int("added", stats.Added).
		Msg("Merged resources")
	return stats, nil
}

// MarshalLine renders one resource as a single ndjson line.
func MarshalLine(r fhir.Resource) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode %s/%s: %w", r.ResourceType(), r.ResourceID(), err)
	}
	return buf.Bytes(), nil
}

func lineID(raw []byte) (string, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("invalid ndjson line: %w", err)
	}
	if head.ID == "" {
		return "", errors.New("ndjson line without id")
	}
	return head.ID, nil
}

func ensureNewline(raw []byte) []byte {
	if len(raw) > 0 && raw[len(raw)-1] == '\n' {
		return raw
	}
	return append(raw, '\n')
}

// writeAtomically writes path through a temporary file in the same
// directory, renamed over path only when fill succeeds.
func writeAtomically(path string, fill func(w *bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriterSize(tmp, 1<<20)
	if err := fill(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
