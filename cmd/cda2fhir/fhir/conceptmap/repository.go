package conceptmap

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/SanteonNL/cda2fhir/models/fhir"
	"github.com/rs/zerolog"
)

//go:embed maps/*.json
var embeddedMaps embed.FS

// Map ids of the embedded vocabulary tables.
const (
	BirthSex  = "birthsex"
	Race      = "race"
	Ethnicity = "ethnicity"
)

// ConceptMapRepository handles loading and storing ConceptMap resources.
type ConceptMapRepository struct {
	log   zerolog.Logger
	fsys  fs.FS
	dir   string
	cache sync.Map
}

// NewConceptMapRepository creates a repository reading *.json from dir in fsys.
func NewConceptMapRepository(log zerolog.Logger, fsys fs.FS, dir string) *ConceptMapRepository {
	return &ConceptMapRepository{
		log:  log.With().Str("component", "conceptmap_repository").Logger(),
		fsys: fsys,
		dir:  dir,
	}
}

// NewEmbeddedConceptMapRepository reads the vocabulary tables compiled into the binary.
func NewEmbeddedConceptMapRepository(log zerolog.Logger) *ConceptMapRepository {
	return NewConceptMapRepository(log, embeddedMaps, "maps")
}

// LoadConceptMaps loads all ConceptMaps into the repository.
func (repo *ConceptMapRepository) LoadConceptMaps() error {
	files, err := fs.ReadDir(repo.fsys, repo.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	loaded := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		filePath := path.Join(repo.dir, file.Name())
		conceptMap, err := repo.loadConceptMapFile(filePath)
		if err != nil {
			return err
		}
		if conceptMap.Id == nil {
			repo.log.Warn().Str("file", file.Name()).Msg("ConceptMap has no ID")
			continue
		}
		repo.cache.Store(*conceptMap.Id, conceptMap)
		if conceptMap.Url != nil {
			repo.cache.Store(*conceptMap.Url, conceptMap)
		}
		loaded++
		repo.log.Debug().Str("id", *conceptMap.Id).Str("file", filePath).Msg("Loaded ConceptMap")
	}

	repo.log.Info().Int("loaded", loaded).Msg("Finished loading ConceptMaps")
	return nil
}

func (repo *ConceptMapRepository) loadConceptMapFile(filePath string) (*fhir.ConceptMap, error) {
	data, err := fs.ReadFile(repo.fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ConceptMap file %s: %w", filePath, err)
	}

	var conceptMap fhir.ConceptMap
	if err := json.Unmarshal(data, &conceptMap); err != nil {
		return nil, fmt.Errorf("failed to parse ConceptMap %s: %w", filePath, err)
	}
	return &conceptMap, nil
}

// GetConceptMap retrieves a ConceptMap by ID or URL.
func (repo *ConceptMapRepository) GetConceptMap(key string) (*fhir.ConceptMap, error) {
	if cached, ok := repo.cache.Load(key); ok {
		return cached.(*fhir.ConceptMap), nil
	}
	return nil, fmt.Errorf("ConceptMap %s not loaded", key)
}
