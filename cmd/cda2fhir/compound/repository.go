// Package compound looks therapeutic agents up in the local compound table.
package compound

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/SanteonNL/cda2fhir/models/cda"
)

// DefaultLimit bounds the rows returned for one lookup.
const DefaultLimit = 10

const tableName = "compound"

// Lookup resolves upper-cased agent names to compound rows.
type Lookup interface {
	LookupCompounds(ctx context.Context, names []string, limit int) (bool, []cda.Compound, error)
}

// Repository reads the compound table through gorm.
type Repository struct {
	db  *gorm.DB
	log zerolog.Logger
}

// gorm dialect names by database/sql driver name.
var dialects = map[string]string{
	"sqlite":   "sqlite3",
	"postgres": "postgres",
	"pgx":      "postgres",
}

// NewRepository wraps the staging connection pool.
func NewRepository(db *sqlx.DB, log zerolog.Logger) (*Repository, error) {
	dialect, ok := dialects[db.DriverName()]
	if !ok {
		return nil, fmt.Errorf("no gorm dialect for driver %s", db.DriverName())
	}

	gdb, err := gorm.Open(dialect, db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open compound repository: %w", err)
	}
	gdb.LogMode(false)

	return &Repository{
		db:  gdb,
		log: log.With().Str("component", "compound").Logger(),
	}, nil
}

// LookupCompounds matches names exactly after upper-casing. found is false
// when no row matched.
func (r *Repository) LookupCompounds(ctx context.Context, names []string, limit int) (bool, []cda.Compound, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	keys := normalize(names)
	if len(keys) == 0 {
		return false, nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var rows []cda.Compound
	err := r.db.Table(tableName).
		Where("UPPER(name) IN (?)", keys).
		Order("cid").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return false, nil, fmt.Errorf("failed to look up compounds %v: %w", keys, err)
	}

	r.log.Debug().
		Strs("names", keys).
		Int("matches", len(rows)).
		Msg("Looked up compounds")

	return len(rows) > 0, rows, nil
}

func normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var keys []string
	for _, name := range names {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
