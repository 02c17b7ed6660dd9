package device

import "time"

// Device represents a single smart-home appliance and its authoritative state.
// This matches the database schema in migrations/20260815_120000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room"`

	// Classification
	Type Type `json:"type"`

	// Current state
	Status     Status     `json:"status"`
	Parameters Parameters `json:"parameters"`

	// Version increments on every applied mutation. A freshly created
	// device is version 1; recreation after deletion starts again at 1.
	Version int64 `json:"version"`

	// LastUpdated is when the most recent mutation was applied.
	LastUpdated time.Time `json:"last_updated"`
}

// DeepCopy creates a complete independent copy of the Device.
// The Parameters map is cloned so modifications to the copy do not
// affect the original. This is essential for state isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields
	cpy.Parameters = deepCopyMap(d.Parameters)

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// Parameters holds type-specific device settings as a JSON map.
//
// Examples:
//   - Light: {"brightness": 75, "color": "#ffcc00", "is_dimmable": true, "dynamic_color": false}
//   - Water heater: {"temperature": 52, "target_temperature": 55, "is_heating": true,
//     "timer_enabled": false, "scheduled_on": "06:30", "scheduled_off": "08:00"}
//   - Air conditioner: {"temperature": 22, "mode": "cool", "fan_speed": "medium", "swing": "auto"}
type Parameters map[string]any

// Type represents the kind of device.
type Type string

// Device type constants.
const (
	TypeLight          Type = "light"
	TypeWaterHeater    Type = "water_heater"
	TypeAirConditioner Type = "air_conditioner"
	TypeDoorLock       Type = "door_lock"
	TypeCurtain        Type = "curtain"
)

// AllTypes returns all valid device type values.
func AllTypes() []Type {
	return []Type{
		TypeLight, TypeWaterHeater, TypeAirConditioner, TypeDoorLock, TypeCurtain,
	}
}

// Status represents the primary operating state of a device.
// The vocabulary depends on the device type: lights, heaters, air
// conditioners and curtains use on/off, door locks use locked/unlocked.
type Status string

// Status constants.
const (
	StatusOn       Status = "on"
	StatusOff      Status = "off"
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
)

// IsActive reports whether the status counts as "in use" for usage
// accounting: on for powered devices, open for curtains, unlocked for
// door locks.
func (s Status) IsActive() bool {
	switch s {
	case StatusOn, StatusOpen, StatusUnlocked:
		return true
	default:
		return false
	}
}
