package timectx

import (
	"log/slog"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Fixed hour boundaries used when daylight awareness is off
const (
	morningStartHour   = 5
	afternoonStartHour = 12
	eveningStartHour   = 17
	nightStartHour     = 22
)

// Deriver turns wall-clock time plus caller-supplied state into an
// EventContext. With daylight awareness enabled, the evening boundary
// follows local sunset instead of a fixed hour, which matters at high
// latitudes where 17:00 can be bright daylight or pitch dark.
type Deriver struct {
	latitude      float64
	longitude     float64
	daylightAware bool
	logger        *slog.Logger
}

// NewDeriver creates a context deriver
func NewDeriver(latitude, longitude float64, daylightAware bool, logger *slog.Logger) *Deriver {
	return &Deriver{
		latitude:      latitude,
		longitude:     longitude,
		daylightAware: daylightAware,
		logger:        logger,
	}
}

// Derive builds the event context for the given instant
func (d *Deriver) Derive(t time.Time, energyLevel int, deviceType, location string) types.EventContext {
	return types.EventContext{
		EnergyLevel: energyLevel,
		TimeOfDay:   d.TimeOfDay(t),
		DayOfWeek:   int(t.Weekday()),
		DeviceType:  deviceType,
		Location:    location,
	}
}

// TimeOfDay classifies an instant into morning/afternoon/evening/night
func (d *Deriver) TimeOfDay(t time.Time) string {
	eveningStart := eveningStartHour
	if d.daylightAware {
		eveningStart = d.sunsetHour(t)
	}

	hour := t.Hour()
	switch {
	case hour >= morningStartHour && hour < afternoonStartHour:
		return types.TimeMorning
	case hour >= afternoonStartHour && hour < eveningStart:
		return types.TimeAfternoon
	case hour >= eveningStart && hour < nightStartHour:
		return types.TimeEvening
	default:
		return types.TimeNight
	}
}

// sunsetHour returns the local sunset hour clamped to a sane evening
// band so polar summer/winter never degenerates the classification.
func (d *Deriver) sunsetHour(t time.Time) int {
	times := suncalc.GetTimes(t, d.latitude, d.longitude)
	sunset, ok := times[suncalc.Sunset]
	if !ok || sunset.Value.IsZero() {
		return eveningStartHour
	}

	hour := sunset.Value.In(t.Location()).Hour()
	if hour < 16 {
		hour = 16
	}
	if hour > 21 {
		hour = 21
	}
	return hour
}
