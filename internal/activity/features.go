// Package activity classifies fixed-length accelerometer windows into
// activities (walking, sitting, ...) with a pretrained decision tree.
// Training happens offline; this package only evaluates a model.
package activity

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/stepcount/internal/motion"
)

// DefaultWindow is the number of samples summarised per prediction.
const DefaultWindow = 200

// FeatureNames is the order models index features by.
var FeatureNames = [...]string{"x_avg", "y_avg", "z_avg", "x_std", "y_std", "z_std"}

// Features summarises one window: per-axis mean and sample standard
// deviation.
type Features struct {
	XAvg float64 `json:"x_avg"`
	YAvg float64 `json:"y_avg"`
	ZAvg float64 `json:"z_avg"`
	XStd float64 `json:"x_std"`
	YStd float64 `json:"y_std"`
	ZStd float64 `json:"z_std"`
}

// Vector returns the features in FeatureNames order.
func (f Features) Vector() [6]float64 {
	return [6]float64{f.XAvg, f.YAvg, f.ZAvg, f.XStd, f.YStd, f.ZStd}
}

// FeaturesOf summarises samples. Fewer than two samples give a zero
// standard deviation.
func FeaturesOf(samples []motion.Sample) Features {
	w := motion.NewWindow(0, samples)
	var f Features
	f.XAvg, f.XStd = meanStd(w.Column(motion.AxisX))
	f.YAvg, f.YStd = meanStd(w.Column(motion.AxisY))
	f.ZAvg, f.ZStd = meanStd(w.Column(motion.AxisZ))
	return f
}

func meanStd(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// ExtractFeatures splits samples into consecutive, non-overlapping windows
// of the given size and summarises each. A trailing partial window is
// ignored; window <= 0 uses DefaultWindow.
func ExtractFeatures(samples []motion.Sample, window int) []Features {
	if window <= 0 {
		window = DefaultWindow
	}
	n := len(samples) / window
	out := make([]Features, 0, n)
	for i := 0; i < n*window; i += window {
		out = append(out, FeaturesOf(samples[i:i+window]))
	}
	return out
}
