package stepcount

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/stepcount/internal/motion"
)

// AxisEnergy returns the mean absolute reading of each axis over the
// window, indexed by motion.Axis.
func AxisEnergy(w motion.Window) [3]float64 {
	var out [3]float64
	for _, a := range motion.Axes {
		col := w.Column(a)
		for i, v := range col {
			col[i] = math.Abs(v)
		}
		out[a] = stat.Mean(col, nil)
	}
	return out
}

// SelectAxis picks the axis with the largest mean absolute reading. Exact
// ties go to the earliest axis in x, y, z order.
func SelectAxis(w motion.Window) motion.Axis {
	energy := AxisEnergy(w)
	best := motion.AxisX
	for _, a := range motion.Axes[1:] {
		if energy[a] > energy[best] {
			best = a
		}
	}
	return best
}
