// Package motion holds tri-axial accelerometer samples and the chronological
// buffer the step pipeline slices analysis windows from.
package motion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNonFinite is returned for NaN or infinite readings.
var ErrNonFinite = errors.New("motion: non-finite value")

// Sample is one accelerometer reading. Timestamp is in seconds; the axis
// components are in whatever unit the source reports (g for the reference
// devices).
type Sample struct {
	Timestamp float64 `json:"t"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// Axis names one of the three accelerometer components.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the components in enumeration order. Ties during axis
// selection resolve to the earliest entry.
var Axes = [...]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts "x", "y" or "z" in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// MarshalText implements encoding.TextMarshaler so axes serialise as "x", "y", "z".
func (a Axis) MarshalText() ([]byte, error) {
	if a < AxisX || a > AxisZ {
		return nil, fmt.Errorf("invalid axis %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Axis) UnmarshalText(b []byte) error {
	parsed, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Component returns the reading on the given axis.
func (s Sample) Component(a Axis) float64 {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	default:
		return s.X
	}
}

// Finite reports whether every field of s is a finite number.
func (s Sample) Finite() bool {
	for _, v := range [...]float64{s.Timestamp, s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ParseValue parses one numeric field. strconv accepts "NaN" and "Inf";
// those are rejected with ErrNonFinite.
func ParseValue(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonFinite, field)
	}
	return v, nil
}
