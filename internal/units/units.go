// Package units provides shared constants and validation for cadence units
package units

import "strings"

// Unit constants
const (
	HZ  = "hz"  // steps per second
	SPM = "spm" // steps per minute
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{HZ, SPM}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertCadence converts a step frequency in Hz to the target units.
// Unknown units leave the value in Hz.
func ConvertCadence(cadenceHz float64, targetUnits string) float64 {
	switch targetUnits {
	case SPM:
		return cadenceHz * 60
	default:
		return cadenceHz
	}
}
