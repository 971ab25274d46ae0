package conceptmap

import (
	"fmt"
	"strings"

	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/rs/zerolog"
)

// wildcard is the element code matching any non-empty source value.
const wildcard = "*"

// TranslationResult represents the result of code translation
type TranslationResult struct {
	TargetCode    string
	TargetDisplay string
	Wildcard      bool
}

// ConceptMapService translates free-text source values through the loaded maps.
type ConceptMapService struct {
	repo *ConceptMapRepository
	log  zerolog.Logger
}

// NewConceptMapService creates a new ConceptMapService.
func NewConceptMapService(repo *ConceptMapRepository, log zerolog.Logger) *ConceptMapService {
	return &ConceptMapService{
		repo: repo,
		log:  log.With().Str("component", "conceptmap_service").Logger(),
	}
}

// TranslateCode maps sourceCode through the map identified by mapKey. The
// source value is trimmed; an empty value yields (nil, nil). A value without
// a direct mapping falls back to the wildcard element when the map has one.
func (s *ConceptMapService) TranslateCode(mapKey string, sourceCode string) (*TranslationResult, error) {
	sourceCode = strings.TrimSpace(sourceCode)
	if sourceCode == "" {
		return nil, nil
	}

	conceptMap, err := s.repo.GetConceptMap(mapKey)
	if err != nil {
		return nil, fmt.Errorf("failed to translate %q: %w", sourceCode, err)
	}

	if result := findDirectMapping(conceptMap, sourceCode); result != nil {
		return result, nil
	}
	if result := findWildcardMapping(conceptMap); result != nil {
		s.log.Debug().
			Str("map", mapKey).
			Str("sourceCode", sourceCode).
			Str("targetCode", result.TargetCode).
			Msg("No direct mapping, using wildcard")
		return result, nil
	}
	return nil, nil
}

func findDirectMapping(conceptMap *fhir.ConceptMap, sourceCode string) *TranslationResult {
	return findElement(conceptMap, func(code string) bool { return code == sourceCode })
}

func findWildcardMapping(conceptMap *fhir.ConceptMap) *TranslationResult {
	result := findElement(conceptMap, func(code string) bool { return code == wildcard })
	if result != nil {
		result.Wildcard = true
	}
	return result
}

func findElement(conceptMap *fhir.ConceptMap, match func(string) bool) *TranslationResult {
	for _, group := range conceptMap.Group {
		for _, element := range group.Element {
			if element.Code == nil || !match(*element.Code) {
				continue
			}
			for _, target := range element.Target {
				if target.Code != nil {
					return &TranslationResult{
						TargetCode:    *target.Code,
						TargetDisplay: getDisplayValue(target.Display),
					}
				}
			}
		}
	}
	return nil
}

// getDisplayValue returns the display value if it is not nil, otherwise returns an empty string
func getDisplayValue(display *string) string {
	if display != nil {
		return *display
	}
	return ""
}
