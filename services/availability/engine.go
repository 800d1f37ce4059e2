package availability

import (
	"context"
	"fmt"
	"time"

	appointmentRepo "bookline/database/repository/appointment"
	catalogRepo "bookline/database/repository/catalog"

	"go.mongodb.org/mongo-driver/mongo"
)

// Engine loads the reference data for a (resource, service, date) and runs
// the pure slot computation over it.
type Engine struct {
	Catalog        catalogRepo.CatalogRepository
	Appointments   appointmentRepo.AppointmentRepository
	GranularityMin int
	BufferMin      int
	// Now is swappable for tests; zero value means time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SlotsFor computes bookable and busy "HH:MM" slots for the given resource,
// service and date. Slots are spaced by the service duration unless
// granularityOverride is positive; a service with no duration falls back to
// the engine default. An inactive or unknown service yields an empty result,
// as does a resource with no working hours for the weekday.
func (e *Engine) SlotsFor(ctx context.Context, tenantID, resourceID, serviceID string, date time.Time, granularityOverride int) (all, busy []string, err error) {
	svc, err := e.Catalog.GetService(ctx, tenantID, serviceID)
	if err == mongo.ErrNoDocuments {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("slot engine: %w", err)
	}
	if !svc.Active {
		return nil, nil, nil
	}

	hours, err := e.Catalog.WorkingHoursFor(ctx, tenantID, resourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("slot engine: %w", err)
	}
	if len(hours) == 0 {
		return nil, nil, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	// The overlap window is widened by the buffer so appointments bleeding in
	// from adjacent days still mark slots busy.
	buffer := time.Duration(e.BufferMin) * time.Minute
	appts, err := e.Appointments.ListOccupying(ctx, tenantID, resourceID, dayStart.Add(-buffer), dayEnd.Add(buffer))
	if err != nil {
		return nil, nil, fmt.Errorf("slot engine: %w", err)
	}

	timeOff, err := e.Catalog.TimeOffOverlapping(ctx, tenantID, resourceID, dayStart, dayEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("slot engine: %w", err)
	}

	granularity := svc.DurationMin
	if granularity <= 0 {
		granularity = e.GranularityMin
	}
	if granularityOverride > 0 {
		granularity = granularityOverride
	}

	all, busy = Compute(ComputeInput{
		Date:           dayStart,
		Now:            e.now().In(date.Location()),
		DurationMin:    svc.DurationMin,
		GranularityMin: granularity,
		BufferMin:      e.BufferMin,
		Hours:          hours,
		Appointments:   appts,
		TimeOff:        timeOff,
	})
	return all, busy, nil
}
