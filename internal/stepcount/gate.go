package stepcount

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// EnergyGate decides whether a spectrum carries plausible step-cadence
// energy.
type EnergyGate struct {
	NoiseBins   int
	BandStart   int
	BandBins    int
	EnergyFloor float64
}

// GateDecision records the two band energies and the verdict.
type GateDecision struct {
	W0   float64 `json:"w0"`
	Wc   float64 `json:"wc"`
	Pass bool    `json:"pass"`
}

// NewEnergyGate builds the gate described by cfg.
func NewEnergyGate(cfg Config) EnergyGate {
	return EnergyGate{
		NoiseBins:   cfg.NoiseBins,
		BandStart:   cfg.BandStart,
		BandBins:    cfg.BandBins,
		EnergyFloor: cfg.EnergyFloor,
	}
}

// Evaluate passes the spectrum when the mean cadence band magnitude
// exceeds both the mean low-frequency magnitude and the absolute floor.
func (g EnergyGate) Evaluate(spectrum []float64) (GateDecision, error) {
	if need := max(g.NoiseBins, g.BandStart+g.BandBins); len(spectrum) < need || g.NoiseBins < 1 || g.BandBins < 1 {
		return GateDecision{}, fmt.Errorf("energy gate needs %d bins, spectrum has %d", need, len(spectrum))
	}
	d := GateDecision{
		W0: stat.Mean(spectrum[:g.NoiseBins], nil),
		Wc: stat.Mean(g.Band(spectrum), nil),
	}
	d.Pass = d.Wc > d.W0 && d.Wc > g.EnergyFloor
	return d, nil
}

// Band returns the cadence band slice of spectrum. The slice aliases the
// input.
func (g EnergyGate) Band(spectrum []float64) []float64 {
	return spectrum[g.BandStart : g.BandStart+g.BandBins]
}
