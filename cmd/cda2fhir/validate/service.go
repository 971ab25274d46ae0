// Package validate checks a directory of ndjson output for well-formed,
// unique and fully resolvable resources.
package validate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// IssueSeverity and IssueType follow the OperationOutcome value sets. Every
// issue found here is an error.
type IssueSeverity string

const IssueSeverityError IssueSeverity = "error"

type IssueType string

const (
	IssueTypeInvalid   IssueType = "invalid"
	IssueTypeStructure IssueType = "structure"
	IssueTypeDuplicate IssueType = "duplicate"
	IssueTypeNotFound  IssueType = "not-found"
)

const excerptLength = 120

// Issue locates one problem in an ndjson file.
type Issue struct {
	Severity IssueSeverity
	Code     IssueType
	Details  string
	File     string
	Line     int
	Offset   int64
	Excerpt  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d (offset %d) %s [%s]: %s", i.File, i.Line, i.Offset, i.Severity, i.Code, i.Details)
}

// Report is the outcome of one validation pass.
type Report struct {
	Files     int
	Resources int
	Issues    []Issue
}

// OK reports whether the pass found nothing.
func (r Report) OK() bool { return len(r.Issues) == 0 }

type location struct {
	file   string
	line   int
	offset int64
}

type ValidateService struct {
	log zerolog.Logger
}

func NewValidateService(log zerolog.Logger) *ValidateService {
	return &ValidateService{log: log.With().Str("component", "validate").Logger()}
}

// ValidateDirectory reads every *.ndjson file in dir twice: once to index
// ids, once to resolve references. The files are never modified.
func (s *ValidateService) ValidateDirectory(dir string) (*Report, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.ndjson"))
	if err != nil {
		return nil, err
	}
	report := &Report{Files: len(files)}
	index := make(map[string]location)

	for _, file := range files {
		err := s.scan(file, func(loc location, raw []byte) {
			key, ok := s.checkLine(report, file, loc, raw)
			if !ok {
				return
			}
			report.Resources++
			if first, seen := index[key]; seen {
				report.Issues = append(report.Issues, newIssue(IssueTypeDuplicate, loc, raw,
					fmt.Sprintf("%s already defined at %s:%d", key, filepath.Base(first.file), first.line)))
				return
			}
			index[key] = loc
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	for _, file := range files {
		err := s.scan(file, func(loc location, raw []byte) {
			var doc any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return
			}
			for _, ref := range collectReferences(doc) {
				if _, ok := index[ref]; !ok {
					report.Issues = append(report.Issues, newIssue(IssueTypeNotFound, loc, raw,
						fmt.Sprintf("reference %s does not resolve", ref)))
				}
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	s.log.Info().
		Int("files", report.Files).
		Int("resources", report.Resources).
		Int("issues", len(report.Issues)).
		Msg("Validation finished")
	return report, nil
}

// checkLine validates the envelope of one line and returns its Type/id key.
func (s *ValidateService) checkLine(report *Report, file string, loc location, raw []byte) (string, bool) {
	var head struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		report.Issues = append(report.Issues, newIssue(IssueTypeInvalid, loc, raw, fmt.Sprintf("invalid JSON: %v", err)))
		return "", false
	}
	if head.ResourceType == "" || head.ID == "" {
		report.Issues = append(report.Issues, newIssue(IssueTypeStructure, loc, raw, "resourceType and id are required"))
		return "", false
	}
	if want := strings.TrimSuffix(filepath.Base(file), ".ndjson"); head.ResourceType != want {
		report.Issues = append(report.Issues, newIssue(IssueTypeStructure, loc, raw,
			fmt.Sprintf("%s found in %s.ndjson", head.ResourceType, want)))
	}
	return head.ResourceType + "/" + head.ID, true
}

// scan calls fn for every non-blank line with its 1-based number and byte
// offset. Lines of any length are supported.
func (s *ValidateService) scan(file string, fn func(loc location, raw []byte)) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var offset int64
	line := 0
	for {
		raw, readErr := reader.ReadBytes('\n')
		line++
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
			fn(location{file: file, line: line, offset: offset}, trimmed)
		}
		offset += int64(len(raw))
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// collectReferences returns every "reference" string of a decoded resource.
// Contained (#) and absolute urls are ignored.
func collectReferences(node any) []string {
	var refs []string
	var walk func(any)
	walk = func(n any) {
		switch v := n.(type) {
		case map[string]any:
			for key, child := range v {
				if ref, ok := child.(string); ok && key == "reference" {
					if !strings.HasPrefix(ref, "#") && !strings.Contains(ref, "://") {
						refs = append(refs, ref)
					}
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(node)
	slices.Sort(refs)
	return slices.Compact(refs)
}

func newIssue(code IssueType, loc location, raw []byte, details string) Issue {
	return Issue{
		Severity: IssueSeverityError,
		Code:     code,
		Details:  details,
		File:     filepath.Base(loc.file),
		Line:     loc.line,
		Offset:   loc.offset,
		Excerpt:  excerpt(raw),
	}
}

// excerpt shortens a line to at most excerptLength bytes, cutting on a rune
// boundary.
func excerpt(raw []byte) string {
	if len(raw) <= excerptLength {
		return string(raw)
	}
	cut := excerptLength
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut]) + "..."
}
