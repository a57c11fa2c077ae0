package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// ValidateDeviceID validates a device identifier coming from the upstream extractor.
//
// The rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters
//   - Maximum length of 128 characters
func ValidateDeviceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidDevice, "device id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidDevice, "device id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidDevice, "device id %q contains control characters", id)
		}
	}

	return nil
}

// ValidateLevelName validates a level name. Empty names are allowed: they are
// grouped into the "Unknown" level rather than rejected.
func ValidateLevelName(name string) error {
	if len(name) > 128 {
		return New(ErrCodeInvalidLevel, "level name too long (max 128 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidLevel, "level name %q contains control characters", name)
		}
	}
	return nil
}

// ValidateQuantity checks that an electrical quantity is a finite, non-negative number.
// field names the quantity in the returned error.
func ValidateQuantity(code Code, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(code, "%s must be a finite number, got %v", field, v)
	}
	if v < 0 {
		return New(code, "%s must be >= 0, got %v", field, v)
	}
	return nil
}

// ValidateFraction checks that v lies in [0, 1).
func ValidateFraction(code Code, field string, v float64) error {
	if err := ValidateQuantity(code, field, v); err != nil {
		return err
	}
	if v >= 1 {
		return New(code, "%s must be < 1, got %v", field, v)
	}
	return nil
}

// planIDRegex matches plan identifiers: UUIDs or simple slugs.
var planIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidatePlanID validates a stored plan identifier.
// It rejects anything that could escape the plan directory of a file store.
func ValidatePlanID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPlanID, "plan id cannot be empty")
	}
	if !planIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPlanID, "invalid plan id: %q", id)
	}
	return nil
}
