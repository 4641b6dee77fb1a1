package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const facilityColumns = `id, name, type, country, locode, operator, governance, isps_risk_level,
	annual_teu, berth_count, max_draft_m, latitude, longitude, notes,
	research_summary, last_researched_at, created_at, updated_at`

// fieldColumns maps research field keys onto table columns. Coordinates
// expand to the latitude/longitude pair. Keys outside this map are refused
// so nothing outside the known writable set can ever reach the record.
var fieldColumns = map[string][]string{
	model.FieldOperator:      {"operator"},
	model.FieldGovernance:    {"governance"},
	model.FieldISPSRiskLevel: {"isps_risk_level"},
	model.FieldAnnualTEU:     {"annual_teu"},
	model.FieldBerthCount:    {"berth_count"},
	model.FieldMaxDraftM:     {"max_draft_m"},
	model.FieldLocode:        {"locode"},
	model.FieldNotes:         {"notes"},
	model.FieldCoordinates:   {"latitude", "longitude"},
	"last_researched_at":     {"last_researched_at"},
	"research_summary":       {"research_summary"},
}

// GetFacility loads one facility record.
func (s *PostgresStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id)
	f, err := scanFacility(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get facility")
	}
	return f, nil
}

// ListFacilities returns facilities ordered by name.
func (s *PostgresStore) ListFacilities(ctx context.Context, limit int) ([]model.Facility, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+facilityColumns+` FROM facilities ORDER BY name LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facilities")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list facilities rows")
}

// CreateFacility inserts a new facility record.
func (s *PostgresStore) CreateFacility(ctx context.Context, f *model.Facility) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO facilities (`+facilityColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		f.ID, f.Name, f.Type, f.Country, f.Locode, f.Operator, f.Governance, f.ISPSRiskLevel,
		f.AnnualTEU, f.BerthCount, f.MaxDraftM, f.Latitude, f.Longitude, f.Notes,
		f.ResearchSummary, f.LastResearchedAt, f.CreatedAt, f.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: create facility")
}

// UpdateFacilityFields writes exactly the named fields. Unknown keys are
// skipped with a warning rather than reaching the table.
func (s *PostgresStore) UpdateFacilityFields(ctx context.Context, id string, fields map[string]any) error {
	sets, args := buildFieldUpdates(fields)
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE facilities SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrap(err, "postgres: update facility fields")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: facility %s not found", id)
	}
	return nil
}

// buildFieldUpdates turns a field map into SET clauses and ordered args.
func buildFieldUpdates(fields map[string]any) ([]string, []any) {
	var sets []string
	var args []any

	// Deterministic order keeps the generated SQL stable for tests.
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
		value := fields[key]
		if key == model.FieldCoordinates {
			lat, lon, ok := coordinatePair(value)
			if !ok {
				zap.L().Warn("store: skipping malformed coordinates value")
				continue
			}
			args = append(args, lat)
			sets = append(sets, fmt.Sprintf("%s = $%d", cols[0], len(args)))
			args = append(args, lon)
			sets = append(sets, fmt.Sprintf("%s = $%d", cols[1], len(args)))
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", cols[0], len(args)))
	}
	return sets, args
}

func coordinatePair(value any) (float64, float64, bool) {
	switch m := value.(type) {
	case map[string]float64:
		return m["lat"], m["lon"], true
	case map[string]any:
		lat, latOK := m["lat"].(float64)
		lon, lonOK := m["lon"].(float64)
		return lat, lon, latOK && lonOK
	default:
		return 0, 0, false
	}
}

// SaveReport persists the combined report of a completed run.
func (s *PostgresStore) SaveReport(ctx context.Context, r Report) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO research_reports (run_id, facility_id, combined, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.RunID, r.FacilityID, r.Combined, r.Summary, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save report")
}

// Migrate creates the schema if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
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
			annual_teu BIGINT,
			berth_count INT,
			max_draft_m DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			notes TEXT NOT NULL DEFAULT '',
			research_summary TEXT NOT NULL DEFAULT '',
			last_researched_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS research_reports (
			run_id TEXT PRIMARY KEY,
			facility_id TEXT NOT NULL REFERENCES facilities(id),
			combined TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_facility ON research_reports(facility_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*model.Facility, error) {
	var f model.Facility
	err := row.Scan(
		&f.ID, &f.Name, &f.Type, &f.Country, &f.Locode, &f.Operator, &f.Governance, &f.ISPSRiskLevel,
		&f.AnnualTEU, &f.BerthCount, &f.MaxDraftM, &f.Latitude, &f.Longitude, &f.Notes,
		&f.ResearchSummary, &f.LastResearchedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
