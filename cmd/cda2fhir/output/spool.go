package output

import (
	"bufio"
	"fmt"
	"os"

	"github.com/SanteonNL/cda2fhir/models/fhir"
)

// Spool collects the resources one family contributes to a merge-mode type.
// Lines live in a temporary file next to the output; only the id index is
// kept in memory. Duplicate ids follow the ResourceSet policy: the first
// write wins, or with updateExisting the last one does while the id keeps
// its first position.
type Spool struct {
	resourceType   string
	updateExisting bool
	file           *os.File
	w              *bufio.Writer
	size           int64
	order          []string
	lines          map[string]spoolLine
}

type spoolLine struct {
	offset int64
	length int
}

// NewSpool creates an empty spool for resourceType in the output directory.
// The caller must Close it.
func (om *OutputManager) NewSpool(resourceType string, updateExisting bool) (*Spool, error) {
	f, err := os.CreateTemp(om.baseDir, "."+resourceType+".*.spool")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s spool: %w", resourceType, err)
	}
	return &Spool{
		resourceType:   resourceType,
		updateExisting: updateExisting,
		file:           f,
		w:              bufio.NewWriterSize(f, 1<<20),
		lines:          make(map[string]spoolLine),
	}, nil
}

// Add appends r and reports whether its id was new to the spool.
func (s *Spool) Add(r fhir.Resource) (bool, error) {
	if r.ResourceType() != s.resourceType {
		return false, fmt.Errorf("cannot add %s to a %s spool", r.ResourceType(), s.resourceType)
	}
	id := r.ResourceID()
	if id == "" {
		return false, fmt.Errorf("%s without id", s.resourceType)
	}
	_, exists := s.lines[id]
	if exists && !s.updateExisting {
		return false, nil
	}

	line, err := MarshalLine(r)
	if err != nil {
		return false, err
	}
	if _, err := s.w.Write(line); err != nil {
		return false, fmt.Errorf("failed to spool %s/%s: %w", s.resourceType, id, err)
	}
	s.lines[id] = spoolLine{offset: s.size, length: len(line)}
	s.size += int64(len(line))
	if !exists {
		s.order = append(s.order, id)
	}
	return !exists, nil
}

func (s *Spool) ResourceType() string { return s.resourceType }

// Len is the number of distinct ids.
func (s *Spool) Len() int { return len(s.order) }

func (s *Spool) Has(id string) bool {
	_, ok := s.lines[id]
	return ok
}

// line reads back the current line of id. The writer must be flushed.
func (s *Spool) line(id string) ([]byte, error) {
	loc, ok := s.lines[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s not in spool", s.resourceType, id)
	}
	buf := make([]byte, loc.length)
	if _, err := s.file.ReadAt(buf, loc.offset); err != nil {
		return nil, fmt.Errorf("failed to read spooled %s/%s: %w", s.resourceType, id, err)
	}
	return buf, nil
}

// Close removes the spool file.
func (s *Spool) Close() error {
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
