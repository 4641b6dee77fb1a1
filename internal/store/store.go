package store

import (
	"context"

	"github.com/sells-group/port-research/internal/model"
)

// Report is the persisted record of one completed research run.
type Report struct {
	RunID      string `json:"run_id"`
	FacilityID string `json:"facility_id"`
	Combined   string `json:"combined"`
	Summary    string `json:"summary"`
}

// Store defines the persistence interface for the research pipeline. The
// engine reads the facility once at run start and writes, at apply time,
// exactly the fields named in the approved set.
type Store interface {
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	ListFacilities(ctx context.Context, limit int) ([]model.Facility, error)
	CreateFacility(ctx context.Context, f *model.Facility) error
	UpdateFacilityFields(ctx context.Context, id string, fields map[string]any) error

	SaveReport(ctx context.Context, r Report) error

	Migrate(ctx context.Context) error
	Close() error
}
