package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/stepcount"
)

// WindowPlotter writes one PNG per processed window showing the low end of
// the spectrum and the quartic fitted to the cadence band.
type WindowPlotter struct {
	mu        sync.Mutex
	outputDir string
	cfg       stepcount.Config
	written   int
}

// NewWindowPlotter creates outputDir if needed.
func NewWindowPlotter(outputDir string, cfg stepcount.Config) (*WindowPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &WindowPlotter{outputDir: outputDir, cfg: cfg}, nil
}

// Written is the number of PNG files produced so far.
func (wp *WindowPlotter) Written() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.written
}

// HandleWindow implements stepcount.Sink. Plot failures are logged.
func (wp *WindowPlotter) HandleWindow(r stepcount.WindowResult) {
	if len(r.Spectrum) == 0 {
		return
	}
	if _, err := wp.Plot(r); err != nil {
		monitoring.Logf("[monitor] plot window %d: %v", r.Index, err)
	}
}

// Plot renders r and returns the file written.
func (wp *WindowPlotter) Plot(r stepcount.WindowResult) (string, error) {
	if len(r.Spectrum) == 0 {
		return "", fmt.Errorf("window %d has no spectrum", r.Index)
	}
	res := wp.cfg.FFTResolution()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Window %d - axis %s - %s", r.Index, r.Axis, r.Outcome)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Magnitude"

	n := min(len(r.Spectrum), 2*(wp.cfg.BandStart+wp.cfg.BandBins))
	pts := make(plotter.XYs, n)
	for i := range pts {
		pts[i] = plotter.XY{X: float64(i) * res, Y: r.Spectrum[i]}
	}
	spectrum, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("spectrum line: %w", err)
	}
	spectrum.Width = vg.Points(1)
	spectrum.Color = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	p.Add(spectrum)
	p.Legend.Add("spectrum", spectrum)

	if len(r.Coefficients) > 0 {
		fx, fy := FitCurve(r.Coefficients, wp.cfg, fitSamples)
		fitPts := make(plotter.XYs, len(fx))
		for i := range fx {
			fitPts[i] = plotter.XY{X: fx[i], Y: fy[i]}
		}
		fit, err := plotter.NewLine(fitPts)
		if err != nil {
			return "", fmt.Errorf("fit line: %w", err)
		}
		fit.Width = vg.Points(1.5)
		fit.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
		p.Add(fit)
		p.Legend.Add("quartic fit", fit)
	}

	if r.Outcome == stepcount.OutcomeCounted {
		peak, err := plotter.NewScatter(plotter.XYs{{X: r.FrequencyHz, Y: 0}})
		if err != nil {
			return "", fmt.Errorf("peak marker: %w", err)
		}
		peak.Color = color.RGBA{R: 33, G: 150, B: 243, A: 255}
		p.Add(peak)
		p.Legend.Add(fmt.Sprintf("fw %.3f Hz", r.FrequencyHz), peak)
	}

	name := filepath.Join(wp.outputDir, fmt.Sprintf("window_%05d.png", r.Index))
	if err := p.Save(10*vg.Inch, 5*vg.Inch, name); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	wp.mu.Lock()
	wp.written++
	wp.mu.Unlock()
	return name, nil
}

var _ stepcount.Sink = (*WindowPlotter)(nil)
