package types

// TaskSnapshot is the caller's view of one open task, supplied inside
// an evaluation Context.
type TaskSnapshot struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	RequiredEnergy int    `json:"required_energy"` // 1-5
}

// Context is the snapshot the surrounding application supplies on each
// automation or suggestion call. The engine never derives it.
type Context struct {
	Tasks          []TaskSnapshot `json:"tasks"`
	RecentEvents   []UserEvent    `json:"recent_events,omitempty"`
	EnergyLevel    int            `json:"energy_level"`
	TimeOfDay      string         `json:"time_of_day"`
	DayOfWeek      int            `json:"day_of_week"`
	DeviceType     string         `json:"device_type,omitempty"`
	Location       string         `json:"location,omitempty"`
	WorkingMinutes int            `json:"working_minutes"`
}

// Field resolves a condition field name against the context. Used by
// pattern and rule condition evaluation.
func (c *Context) Field(name string) (interface{}, bool) {
	switch name {
	case "energyLevel", "energy_level":
		return c.EnergyLevel, true
	case "timeOfDay", "time_of_day":
		return c.TimeOfDay, true
	case "dayOfWeek", "day_of_week":
		return c.DayOfWeek, true
	case "deviceType", "device_type":
		if c.DeviceType == "" {
			return nil, false
		}
		return c.DeviceType, true
	case "location":
		if c.Location == "" {
			return nil, false
		}
		return c.Location, true
	case "workingMinutes", "working_minutes":
		return c.WorkingMinutes, true
	case "lastEventType", "last_event_type":
		if len(c.RecentEvents) == 0 {
			return nil, false
		}
		return string(c.RecentEvents[len(c.RecentEvents)-1].Type), true
	}
	return nil, false
}
