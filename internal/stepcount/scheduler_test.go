package stepcount

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stepcount/internal/dsp"
	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/testutil"
	"github.com/banshee-data/stepcount/internal/timeutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func newTestScheduler(t *testing.T) (*Scheduler, *Accumulator) {
	t.Helper()
	p := newTestPipeline(t)
	acc := NewAccumulator(p.Config())
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewScheduler(p, acc, "test-session", clock), acc
}

func cadenceSamples(n int) []motion.Sample {
	return testutil.Samples(n, 100, testutil.Tone{Axis: motion.AxisX, Frequency: 1.25, Amplitude: 1})
}

func TestScheduler_LiveTrigger(t *testing.T) {
	s, acc := newTestScheduler(t)
	ctx := context.Background()

	var fired []int
	for i, sample := range cadenceSamples(320 + 3*125 + 50) {
		res, err := s.Append(ctx, sample)
		require.NoError(t, err)
		if res != nil {
			fired = append(fired, i+1)
			assert.Equal(t, len(fired)-1, res.Index)
			assert.Equal(t, (len(fired)-1)*125, res.StartIndex)
			assert.Equal(t, "test-session", res.SessionID)
		}
	}

	if diff := cmp.Diff(fired, []int{320, 445, 570, 695}); diff != "" {
		t.Errorf("trigger buffer lengths (-got +want):\n%s", diff)
	}
	assert.Equal(t, 4, s.Windows())
	assert.Equal(t, 500, s.NextStart())
	assert.InDelta(t, 4*1.5625, acc.Total(), 4e-3)
}

func TestScheduler_BatchWindowCount(t *testing.T) {
	quietLogs(t)
	s, _ := newTestScheduler(t)

	recording := testutil.CSV(cadenceSamples(999), true)
	samples, err := motion.ReadCSV(strings.NewReader(recording))
	require.NoError(t, err)
	require.Len(t, samples, 999)

	results, err := s.RunBatch(context.Background(), samples)
	require.NoError(t, err)

	want := (999-320)/125 + 1
	require.Len(t, results, want)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*125, r.StartIndex)
	}
	assert.Equal(t, 750, s.NextStart())
}

func TestScheduler_BatchCumulativeNonDecreasing(t *testing.T) {
	s, acc := newTestScheduler(t)
	samples := append(cadenceSamples(700), testutil.Constant(600, 100, 0, 0, 0)...)
	for i := 700; i < len(samples); i++ {
		samples[i].Timestamp = float64(i) / 100
	}

	results, err := s.RunBatch(context.Background(), samples)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	prev := 0.0
	var counted, rejected int
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Cumulative, prev)
		prev = r.Cumulative
		switch r.Outcome {
		case OutcomeCounted:
			counted++
		case OutcomeGateRejected:
			rejected++
			assert.Zero(t, r.Increment)
		}
	}
	assert.Positive(t, counted)
	assert.Positive(t, rejected)
	assert.Equal(t, prev, acc.Total())
}

func TestScheduler_FailedWindowsStillAdvance(t *testing.T) {
	quietLogs(t)
	cfg := DefaultConfig()
	spec, err := dsp.NewFFTSpectrometer(cfg.WindowSize)
	require.NoError(t, err)
	p, err := NewPipelineWith(cfg, spec, failingSolver{err: &dsp.IllFormedSystemError{Reason: dsp.FailureInternal}})
	require.NoError(t, err)
	acc := NewAccumulator(cfg)
	s := NewScheduler(p, acc, "failing", nil)

	results, err := s.RunBatch(context.Background(), cadenceSamples(570))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, OutcomeFailed, r.Outcome)
		assert.NotEmpty(t, r.Error)
	}
	assert.Zero(t, acc.Total())
	assert.Equal(t, 375, s.NextStart())
}

func TestScheduler_SinksObserveEveryWindow(t *testing.T) {
	s, _ := newTestScheduler(t)
	var seen []WindowResult
	s.AddSink(SinkFunc(func(r WindowResult) { seen = append(seen, r) }))

	results, err := s.RunBatch(context.Background(), cadenceSamples(600))
	require.NoError(t, err)
	require.Len(t, seen, len(results))
	for i := range results {
		assert.Equal(t, results[i].Cumulative, seen[i].Cumulative)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), seen[i].ProcessedAt)
	}
}

func TestScheduler_StopClearsAndHalts(t *testing.T) {
	s, acc := newTestScheduler(t)
	ctx := context.Background()
	for _, sample := range cadenceSamples(400) {
		_, err := s.Append(ctx, sample)
		require.NoError(t, err)
	}
	before := acc.Total()
	require.Positive(t, before)

	s.Stop()
	assert.Zero(t, s.Buffered())
	assert.False(t, s.Ready())
	_, err := s.Append(ctx, motion.Sample{Timestamp: 10})
	assert.ErrorIs(t, err, ErrStopped)
	_, err = s.RunBatch(ctx, cadenceSamples(400))
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, before, acc.Total())
}

func TestScheduler_LiveBufferStaysBounded(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	cfg := s.cfg

	maxHeld := 0
	var last *WindowResult
	for _, sample := range cadenceSamples(320 + 40*125) {
		res, err := s.Append(ctx, sample)
		require.NoError(t, err)
		if s.Buffered() > maxHeld {
			maxHeld = s.Buffered()
		}
		if res != nil {
			last = res
		}
	}

	require.NotNil(t, last)
	assert.Equal(t, 41, s.Windows())
	assert.Equal(t, 40*125, last.StartIndex, "start indices stay absolute after samples are released")
	assert.Equal(t, OutcomeCounted, last.Outcome)
	assert.LessOrEqual(t, maxHeld, cfg.WindowSize+cfg.SlideStep())
}

func TestScheduler_DropsOutOfOrder(t *testing.T) {
	quietLogs(t)
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	_, err := s.Append(ctx, motion.Sample{Timestamp: 1})
	require.NoError(t, err)
	res, err := s.Append(ctx, motion.Sample{Timestamp: 0.5})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, s.Dropped())
	assert.Equal(t, 1, s.Buffered())
}

func TestScheduler_BatchCancelled(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.RunBatch(ctx, cadenceSamples(700))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
