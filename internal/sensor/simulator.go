package sensor

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/timeutil"
)

// SimulatorConfig describes a synthetic walk.
type SimulatorConfig struct {
	Rate      float64     // samples per second
	Cadence   float64     // step frequency in Hz
	Amplitude float64     // peak of the cadence component
	Axis      motion.Axis // axis carrying the cadence component
	Gravity   float64     // constant added to Z
	Noise     float64     // standard deviation of additive noise
	Seed      int64
}

// DefaultSimulatorConfig is a steady walk reported as gravity-free user
// acceleration, which is what the capture devices stream.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Rate:      100,
		Cadence:   1.25,
		Amplitude: 0.6,
		Axis:      motion.AxisY,
		Gravity:   0,
		Noise:     0.02,
		Seed:      1,
	}
}

// Simulator generates a synthetic gait signal on a clock ticker.
// Timestamps are derived from the sample index, so the stream is strictly
// increasing however the ticker jitters.
type Simulator struct {
	cfg   SimulatorConfig
	clock timeutil.Clock
	rng   *rand.Rand
	n     int
}

// NewSimulator returns a simulator driven by clock. A nil clock uses
// timeutil.RealClock.
func NewSimulator(cfg SimulatorConfig, clock timeutil.Clock) *Simulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 100
	}
	return &Simulator{cfg: cfg, clock: clock, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Next returns the next sample without waiting.
func (s *Simulator) Next() motion.Sample {
	t := float64(s.n) / s.cfg.Rate
	s.n++

	var v [3]float64
	v[motion.AxisZ] = s.cfg.Gravity
	v[s.cfg.Axis] += s.cfg.Amplitude * math.Sin(2*math.Pi*s.cfg.Cadence*t)
	if s.cfg.Noise > 0 {
		for i := range v {
			v[i] += s.rng.NormFloat64() * s.cfg.Noise
		}
	}
	return motion.Sample{Timestamp: t, X: v[0], Y: v[1], Z: v[2]}
}

// Stream emits one sample per tick until ctx is done.
func (s *Simulator) Stream(ctx context.Context, out chan<- motion.Sample) error {
	period := time.Duration(float64(time.Second) / s.cfg.Rate)
	ticker := s.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := send(ctx, out, s.Next()); err != nil {
				return err
			}
		}
	}
}
