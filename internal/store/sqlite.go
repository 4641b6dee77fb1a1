package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/port-research/internal/model"
)

// SQLiteStore implements Store on a local file, for CLI use and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: pragmas")
	}
	return &SQLiteStore{db: db}, nil
}

// GetFacility loads one facility record.
func (s *SQLiteStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	f, err := scanFacility(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get facility")
	}
	return f, nil
}

// ListFacilities returns facilities ordered by name.
func (s *SQLiteStore) ListFacilities(ctx context.Context, limit int) ([]model.Facility, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facilities")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list facilities rows")
}

// CreateFacility inserts a new facility record.
func (s *SQLiteStore) CreateFacility(ctx context.Context, f *model.Facility) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facilities (`+facilityColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.Name, f.Type, f.Country, f.Locode, f.Operator, f.Governance, f.ISPSRiskLevel,
		f.AnnualTEU, f.BerthCount, f.MaxDraftM, f.Latitude, f.Longitude, f.Notes,
		f.ResearchSummary, f.LastResearchedAt, f.CreatedAt, f.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: create facility")
}

// UpdateFacilityFields writes exactly the named fields.
func (s *SQLiteStore) UpdateFacilityFields(ctx context.Context, id string, fields map[string]any) error {
	var sets []string
	var args []any

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cols, ok := fieldColumns[key]
		if !ok {
			zap.L().Warn("store: skipping unknown field", zap.String("field", key))
			continue
		}
		if key == model.FieldCoordinates {
			lat, lon, ok := coordinatePair(fields[key])
			if !ok {
				zap.L().Warn("store: skipping malformed coordinates value")
				continue
			}
			sets = append(sets, cols[0]+" = ?", cols[1]+" = ?")
			args = append(args, lat, lon)
			continue
		}
		sets = append(sets, cols[0]+" = ?")
		args = append(args, fields[key])
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE facilities SET %s, updated_at = ? WHERE id = ?`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return eris.Wrap(err, "sqlite: update facility fields")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: facility %s not found", id)
	}
	return nil
}

// SaveReport persists the combined report of a completed run.
func (s *SQLiteStore) SaveReport(ctx context.Context, r Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_reports (run_id, facility_id, combined, summary, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.FacilityID, r.Combined, r.Summary, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save report")
}

// Migrate creates the schema if absent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			locode TEXT NOT NULL DEFAULT '',
			operator TEXT NOT NULL DEFAULT '',
			governance TEXT NOT NULL DEFAULT '',
			isps_risk_level TEXT NOT NULL DEFAULT '',
			annual_teu INTEGER,
			berth_count INTEGER,
			max_draft_m REAL,
			latitude REAL,
			longitude REAL,
			notes TEXT NOT NULL DEFAULT '',
			research_summary TEXT NOT NULL DEFAULT '',
			last_researched_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research_reports (
			run_id TEXT PRIMARY KEY,
			facility_id TEXT NOT NULL REFERENCES facilities(id),
			combined TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_facility ON research_reports(facility_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
