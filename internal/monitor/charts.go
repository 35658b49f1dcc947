package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/stepcount/internal/dsp"
	"github.com/banshee-data/stepcount/internal/stepcount"
	"github.com/banshee-data/stepcount/internal/units"
)

// EchartsAssetsHost is where rendered pages load the echarts scripts from.
var EchartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// fitSamples is how many points of the fitted polynomial are drawn.
const fitSamples = 81

// RenderStepsChart writes an HTML page with the cumulative count and the
// per-window cadence over the given windows. cadenceUnits is one of the
// units package values.
func RenderStepsChart(w io.Writer, history []stepcount.WindowResult, cadenceUnits string) error {
	if !units.IsValid(cadenceUnits) {
		cadenceUnits = units.HZ
	}
	x := make([]string, len(history))
	total := make([]opts.LineData, len(history))
	cadence := make([]opts.BarData, len(history))
	for i, r := range history {
		x[i] = strconv.Itoa(r.Index)
		total[i] = opts.LineData{Value: r.Cumulative}
		hz := 0.0
		if r.Outcome == stepcount.OutcomeCounted {
			hz = r.FrequencyHz
		}
		cadence[i] = opts.BarData{Value: units.ConvertCadence(hz, cadenceUnits)}
	}

	subtitle := "no windows yet"
	if n := len(history); n > 0 {
		subtitle = fmt.Sprintf("session=%s windows=%d steps=%.1f", history[n-1].SessionID, n, history[n-1].Cumulative)
	}

	steps := charts.NewLine()
	steps.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Step count", Width: "100%", Height: "420px", AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative steps", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "window", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "steps"}),
	)
	steps.SetXAxis(x).AddSeries("steps", total)

	rate := charts.NewBar()
	rate.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Cadence (" + cadenceUnits + ")"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "window", NameLocation: "middle", NameGap: 25}),
	)
	rate.SetXAxis(x).AddSeries("cadence", cadence)

	page := components.NewPage()
	page.SetAssetsHost(EchartsAssetsHost)
	page.AddCharts(steps, rate)
	return page.Render(w)
}

// RenderSpectrumChart writes an HTML page showing one window's magnitude
// spectrum, with the cadence band marked, and the quartic fitted to it.
func RenderSpectrumChart(w io.Writer, r stepcount.WindowResult, cfg stepcount.Config) error {
	if len(r.Spectrum) == 0 {
		return fmt.Errorf("window %d has no spectrum", r.Index)
	}
	res := cfg.FFTResolution()

	// Everything up to twice the top of the cadence band.
	n := min(len(r.Spectrum), 2*(cfg.BandStart+cfg.BandBins))
	x := make([]string, n)
	band := make([]opts.BarData, n)
	other := make([]opts.BarData, n)
	for i := 0; i < n; i++ {
		x[i] = strconv.FormatFloat(float64(i)*res, 'f', 3, 64)
		if i >= cfg.BandStart && i < cfg.BandStart+cfg.BandBins {
			band[i] = opts.BarData{Value: r.Spectrum[i]}
			other[i] = opts.BarData{Value: 0}
		} else {
			band[i] = opts.BarData{Value: 0}
			other[i] = opts.BarData{Value: r.Spectrum[i]}
		}
	}

	spectrum := charts.NewBar()
	spectrum.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Window spectrum", Width: "100%", Height: "420px", AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Window %d spectrum (axis %s)", r.Index, r.Axis),
			Subtitle: fmt.Sprintf("w0=%.3f wc=%.3f outcome=%s", r.W0, r.Wc, r.Outcome),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hz", NameLocation: "middle", NameGap: 25}),
	)
	spectrum.SetXAxis(x).
		AddSeries("cadence band", band, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}), charts.WithBarChartOpts(opts.BarChart{Stack: "bins"})).
		AddSeries("other bins", other, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}), charts.WithBarChartOpts(opts.BarChart{Stack: "bins"}))

	page := components.NewPage()
	page.SetAssetsHost(EchartsAssetsHost)
	page.AddCharts(spectrum)

	if len(r.Coefficients) > 0 {
		fx, fy := FitCurve(r.Coefficients, cfg, fitSamples)
		labels := make([]string, len(fx))
		data := make([]opts.LineData, len(fy))
		for i := range fx {
			labels[i] = strconv.FormatFloat(fx[i], 'f', 3, 64)
			data[i] = opts.LineData{Value: fy[i]}
		}
		fit := charts.NewLine()
		fit.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: EchartsAssetsHost}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Quartic fit over the cadence band",
				Subtitle: fmt.Sprintf("peak=%.4f fw=%.4f Hz increment=%.4f", r.PeakAbscissa, r.FrequencyHz, r.Increment),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Hz", NameLocation: "middle", NameGap: 25}),
		)
		fit.SetXAxis(labels).AddSeries("fit", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		page.AddCharts(fit)
	}
	return page.Render(w)
}

// FitCurve samples the fitted polynomial across the cadence band. The
// returned x values are in Hz, using the band's own bin positions.
func FitCurve(coeffs []float64, cfg stepcount.Config, n int) (xs, ys []float64) {
	if n < 2 {
		n = 2
	}
	abscissas := make([]float64, n)
	xs = make([]float64, n)
	step := float64(cfg.BandBins-1) / float64(n-1)
	res := cfg.FFTResolution()
	for i := range abscissas {
		abscissas[i] = 1 + float64(i)*step
		xs[i] = (float64(cfg.BandStart-1) + abscissas[i]) * res
	}
	return xs, dsp.EvaluatePolynomial(coeffs, abscissas)
}
