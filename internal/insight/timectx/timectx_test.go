package timectx

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTimeOfDay_FixedBands(t *testing.T) {
	d := NewDeriver(0, 0, false, testLogger())

	tests := []struct {
		hour     int
		expected string
	}{
		{0, types.TimeNight},
		{4, types.TimeNight},
		{5, types.TimeMorning},
		{11, types.TimeMorning},
		{12, types.TimeAfternoon},
		{16, types.TimeAfternoon},
		{17, types.TimeEvening},
		{21, types.TimeEvening},
		{22, types.TimeNight},
		{23, types.TimeNight},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			instant := time.Date(2025, 3, 15, tt.hour, 30, 0, 0, time.UTC)
			if got := d.TimeOfDay(instant); got != tt.expected {
				t.Errorf("hour %d: expected %s, got %s", tt.hour, tt.expected, got)
			}
		})
	}
}

func TestTimeOfDay_DaylightAwareStaysClamped(t *testing.T) {
	// Helsinki midsummer: sunset after 22:00 local, clamp keeps evening
	// starting no later than 21
	d := NewDeriver(60.1695, 24.9354, true, testLogger())

	instant := time.Date(2025, 6, 21, 21, 30, 0, 0, time.UTC)
	got := d.TimeOfDay(instant)
	if got != types.TimeEvening {
		t.Errorf("21:30 with clamped sunset must be evening, got %s", got)
	}

	// Midwinter: sunset mid-afternoon, clamp keeps evening starting no
	// earlier than 16
	instant = time.Date(2025, 12, 21, 15, 30, 0, 0, time.UTC)
	got = d.TimeOfDay(instant)
	if got != types.TimeAfternoon {
		t.Errorf("15:30 with clamped sunset must still be afternoon, got %s", got)
	}
}

func TestDerive_FillsAllFields(t *testing.T) {
	d := NewDeriver(0, 0, false, testLogger())

	// 2025-03-12 is a Wednesday
	instant := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	ctx := d.Derive(instant, 4, "desktop", "home")

	if ctx.EnergyLevel != 4 {
		t.Errorf("expected energy 4, got %d", ctx.EnergyLevel)
	}
	if ctx.TimeOfDay != types.TimeMorning {
		t.Errorf("expected morning, got %s", ctx.TimeOfDay)
	}
	if ctx.DayOfWeek != 3 {
		t.Errorf("expected Wednesday (3), got %d", ctx.DayOfWeek)
	}
	if ctx.DeviceType != "desktop" || ctx.Location != "home" {
		t.Errorf("device/location not carried through: %+v", ctx)
	}
}
