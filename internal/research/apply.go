package research

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/internal/store"
)

// Apply is the commit half of the preview/apply protocol. It writes only the
// approved fields (plus the bookkeeping pair) to the record. An approved
// field absent from the payload is a no-op, not an error. Nothing outside
// the approved set is ever written.
func Apply(ctx context.Context, st store.Store, facilityID string, payload model.UpdatePayload, approved []string) (*model.Facility, error) {
	fields := make(map[string]any, len(approved)+2)
	for _, name := range approved {
		value, ok := payload.Fields[name]
		if !ok {
			continue
		}
		fields[name] = value
	}

	fields["last_researched_at"] = time.Now().UTC()
	fields["research_summary"] = payload.Summary

	if err := st.UpdateFacilityFields(ctx, facilityID, fields); err != nil {
		return nil, NewDatabaseError("failed to apply approved updates", err)
	}

	zap.L().Info("research: applied approved updates",
		zap.String("facility_id", facilityID),
		zap.Int("fields_written", len(fields)),
	)

	return st.GetFacility(ctx, facilityID)
}
