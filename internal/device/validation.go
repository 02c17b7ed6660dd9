package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxIDLength   = 64
	maxNameLength = 100
	maxRoomLength = 100

	// maxStringValueLen bounds string parameter values to prevent
	// memory exhaustion via oversized payloads.
	maxStringValueLen = 256
)

// Parameter value patterns.
var (
	// colorRegex matches hex colors like "#ffcc00".
	colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

	// timeRegex matches 24-hour clock times like "06:30".
	timeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Water heater target temperature bounds (degrees Celsius).
const (
	minTargetTemperature = 49
	maxTargetTemperature = 60
)

// Air conditioner temperature bounds (degrees Celsius).
const (
	minACTemperature = 16
	maxACTemperature = 30
)

// Pre-computed validation sets for O(1) lookups instead of O(n) linear search.
var (
	validTypes     map[Type]struct{}
	validStatuses  map[Type]map[Status]struct{}
	requiredParams map[Type][]string
	allowedParams  map[Type]map[string]struct{}

	validACModes    map[string]struct{}
	validFanSpeeds  map[string]struct{}
	validSwingModes map[string]struct{}
)

func init() {
	// Build validation sets once at startup
	validTypes = make(map[Type]struct{}, len(AllTypes()))
	for _, t := range AllTypes() {
		validTypes[t] = struct{}{}
	}

	onOff := map[Status]struct{}{StatusOn: {}, StatusOff: {}}
	validStatuses = map[Type]map[Status]struct{}{
		TypeLight:          onOff,
		TypeWaterHeater:    onOff,
		TypeAirConditioner: onOff,
		TypeDoorLock:       {StatusLocked: {}, StatusUnlocked: {}},
		TypeCurtain:        {StatusOpen: {}, StatusClosed: {}},
	}

	requiredParams = map[Type][]string{
		TypeLight:          {"brightness", "color", "is_dimmable", "dynamic_color"},
		TypeWaterHeater:    {"temperature", "target_temperature", "is_heating", "timer_enabled", "scheduled_on", "scheduled_off"},
		TypeAirConditioner: {"temperature", "mode", "fan_speed", "swing"},
		TypeDoorLock:       {"auto_lock_enabled", "battery_level"},
		TypeCurtain:        {"position"},
	}

	allowedParams = make(map[Type]map[string]struct{}, len(requiredParams))
	for t, keys := range requiredParams {
		set := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		allowedParams[t] = set
	}

	validACModes = map[string]struct{}{"cool": {}, "heat": {}, "fan": {}}
	validFanSpeeds = map[string]struct{}{"off": {}, "low": {}, "medium": {}, "high": {}}
	validSwingModes = map[string]struct{}{"off": {}, "on": {}, "auto": {}}
}

// ValidateNew performs full validation on a device descriptor for creation
// or implicit registration. Every field must be present and valid: identity,
// type, a status from the type's vocabulary, and the complete parameter set
// for the type. Unknown parameter keys are rejected.
func ValidateNew(d *Device) error {
	if d == nil {
		return ErrInvalid
	}

	if err := validateIdentity(d); err != nil {
		return err
	}

	if err := ValidateType(d.Type); err != nil {
		return err
	}

	if err := ValidateStatus(d.Type, d.Status); err != nil {
		return err
	}

	// Complete parameter set: every required key present, nothing extra.
	for _, key := range requiredParams[d.Type] {
		if _, ok := d.Parameters[key]; !ok {
			return fmt.Errorf("%w: missing %q for type %q", ErrInvalidParameters, key, d.Type)
		}
	}

	return ValidateUpdate(d.Type, d.Parameters, nil)
}

// ValidateUpdate validates a partial mutation against a device type.
// Only the parameters present are checked; missing keys keep their stored
// values. A non-nil status is validated against the type's vocabulary.
func ValidateUpdate(t Type, params Parameters, status *Status) error {
	if err := ValidateType(t); err != nil {
		return err
	}

	if status != nil {
		if err := ValidateStatus(t, *status); err != nil {
			return err
		}
	}

	allowed := allowedParams[t]
	for key, value := range params {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("%w: unknown parameter %q for type %q", ErrInvalidParameters, key, t)
		}
		if err := validateParam(t, key, value); err != nil {
			return err
		}
	}

	return nil
}

// ValidateType checks if a device type is valid.
// Uses O(1) map lookup for efficiency.
func ValidateType(t Type) error {
	if _, ok := validTypes[t]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidType, t)
}

// ValidateStatus checks if a status belongs to the type's vocabulary.
func ValidateStatus(t Type, s Status) error {
	vocab, ok := validStatuses[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	if _, ok := vocab[s]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q for type %q", ErrInvalidStatus, s, t)
}

// validateIdentity checks id, name, and room fields.
func validateIdentity(d *Device) error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalid)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalid, maxIDLength)
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalid)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}

	room := strings.TrimSpace(d.Room)
	if room == "" {
		return fmt.Errorf("%w: room cannot be empty", ErrInvalid)
	}
	if len(room) > maxRoomLength {
		return fmt.Errorf("%w: room exceeds %d characters", ErrInvalid, maxRoomLength)
	}

	return nil
}

// validateParam validates a single parameter value for a device type.
// The key is assumed to be in the type's allowed set.
func validateParam(t Type, key string, value any) error {
	switch t {
	case TypeLight:
		return validateLightParam(key, value)
	case TypeWaterHeater:
		return validateWaterHeaterParam(key, value)
	case TypeAirConditioner:
		return validateAirConditionerParam(key, value)
	case TypeDoorLock:
		return validateDoorLockParam(key, value)
	case TypeCurtain:
		return validateCurtainParam(key, value)
	}
	// Unreachable if all Type constants are handled above
	return fmt.Errorf("%w: %q", ErrInvalidType, t)
}

func validateLightParam(key string, value any) error {
	switch key {
	case "brightness":
		return numberInRange(key, value, 0, 100)
	case "color":
		s, ok := asString(value)
		if !ok || !colorRegex.MatchString(s) {
			return fmt.Errorf("%w: color must match #rrggbb", ErrInvalidParameters)
		}
	case "is_dimmable", "dynamic_color":
		return mustBool(key, value)
	}
	return nil
}

func validateWaterHeaterParam(key string, value any) error {
	switch key {
	case "temperature":
		return mustNumber(key, value)
	case "target_temperature":
		return numberInRange(key, value, minTargetTemperature, maxTargetTemperature)
	case "is_heating", "timer_enabled":
		return mustBool(key, value)
	case "scheduled_on", "scheduled_off":
		s, ok := asString(value)
		if !ok || !timeRegex.MatchString(s) {
			return fmt.Errorf("%w: %s must be HH:MM", ErrInvalidParameters, key)
		}
	}
	return nil
}

func validateAirConditionerParam(key string, value any) error {
	switch key {
	case "temperature":
		return numberInRange(key, value, minACTemperature, maxACTemperature)
	case "mode":
		return mustMember(key, value, validACModes)
	case "fan_speed":
		return mustMember(key, value, validFanSpeeds)
	case "swing":
		return mustMember(key, value, validSwingModes)
	}
	return nil
}

func validateDoorLockParam(key string, value any) error {
	switch key {
	case "auto_lock_enabled":
		return mustBool(key, value)
	case "battery_level":
		return numberInRange(key, value, 0, 100)
	}
	return nil
}

func validateCurtainParam(key string, value any) error {
	if key == "position" {
		return numberInRange(key, value, 0, 100)
	}
	return nil
}

// asNumber extracts a numeric value. JSON decoding produces float64;
// in-process callers may pass int variants.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asString extracts a bounded string value.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || len(s) > maxStringValueLen {
		return "", false
	}
	return s, true
}

func mustNumber(key string, v any) error {
	if _, ok := asNumber(v); !ok {
		return fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, key)
	}
	return nil
}

func mustBool(key string, v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("%w: %s must be a boolean", ErrInvalidParameters, key)
	}
	return nil
}

func mustMember(key string, v any, set map[string]struct{}) error {
	s, ok := asString(v)
	if !ok {
		return fmt.Errorf("%w: %s must be a string", ErrInvalidParameters, key)
	}
	if _, ok := set[s]; !ok {
		return fmt.Errorf("%w: %s value %q not allowed", ErrInvalidParameters, key, s)
	}
	return nil
}

func numberInRange(key string, v any, min, max float64) error {
	n, ok := asNumber(v)
	if !ok {
		return fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, key)
	}
	if n < min || n > max {
		return fmt.Errorf("%w: %s must be between %g and %g", ErrInvalidParameters, key, min, max)
	}
	return nil
}
