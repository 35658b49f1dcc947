package stepcount

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/timeutil"
)

// ErrStopped is returned when samples are fed to a stopped scheduler.
var ErrStopped = errors.New("stepcount: scheduler stopped")

// Sink observes every processed window. Sinks run on the scheduler's
// goroutine after the cumulative count is updated and must not block for
// long.
type Sink interface {
	HandleWindow(WindowResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(WindowResult)

func (f SinkFunc) HandleWindow(r WindowResult) { f(r) }

// Scheduler owns the sample buffer and decides when a window is ready.
// In live mode a window fires once WindowSize samples exist at the
// current start and SlideStep samples have arrived since the previous
// trigger. In batch mode every complete window is processed in order.
// Exactly one window is processed at a time, and the start always
// advances by SlideStep afterwards, whatever the outcome. Samples before
// the next start are released after each window, so a live session holds
// at most WindowSize+SlideStep samples however long it runs.
//
// Append, RunBatch and Stop must be called from one goroutine.
type Scheduler struct {
	cfg       Config
	pipeline  *Pipeline
	acc       *Accumulator
	buf       *motion.Buffer
	clock     timeutil.Clock
	sessionID string

	start       int
	lastTrigger int
	windows     int
	dropped     int
	stopped     bool

	sinkMu sync.RWMutex
	sinks  []Sink
}

// NewScheduler wires a pipeline to an accumulator. A nil clock uses
// timeutil.RealClock.
func NewScheduler(p *Pipeline, acc *Accumulator, sessionID string, clock timeutil.Clock) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cfg := p.Config()
	return &Scheduler{
		cfg:       cfg,
		pipeline:  p,
		acc:       acc,
		buf:       motion.NewBuffer(cfg.WindowSize * 4),
		clock:     clock,
		sessionID: sessionID,
	}
}

// AddSink registers an observer for processed windows.
func (s *Scheduler) AddSink(k Sink) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	s.sinks = append(s.sinks, k)
}

// Windows is the number of windows processed so far.
func (s *Scheduler) Windows() int { return s.windows }

// Dropped is the number of out-of-order samples discarded.
func (s *Scheduler) Dropped() int { return s.dropped }

// Buffered is the number of samples held in memory.
func (s *Scheduler) Buffered() int { return s.buf.Held() }

// NextStart is the buffer index of the next window.
func (s *Scheduler) NextStart() int { return s.start }

// Ready reports whether the live trigger condition holds.
func (s *Scheduler) Ready() bool {
	n := s.buf.Len()
	return !s.stopped &&
		n >= s.start+s.cfg.WindowSize &&
		n-s.lastTrigger >= s.cfg.SlideStep()
}

// Append adds one live sample and, when the trigger condition holds,
// processes the ready window before returning it. Out-of-order samples
// are dropped and logged. The returned error is non-nil only when the
// scheduler is stopped or ctx is done; per-window failures are reported
// in the result.
func (s *Scheduler) Append(ctx context.Context, sample motion.Sample) (*WindowResult, error) {
	if s.stopped {
		return nil, ErrStopped
	}
	if err := s.buf.Append(sample); err != nil {
		s.dropped++
		monitoring.Logf("[stepcount] session %s: dropping sample: %v", s.sessionID, err)
		return nil, nil
	}
	if !s.Ready() {
		return nil, nil
	}
	res, err := s.processNext(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RunBatch appends every sample and then processes windows starting at
// 0, SlideStep, 2·SlideStep, ... for as long as a full window remains. It
// returns the results in order. Only cancellation of ctx stops it early.
func (s *Scheduler) RunBatch(ctx context.Context, samples []motion.Sample) ([]WindowResult, error) {
	if s.stopped {
		return nil, ErrStopped
	}
	for _, sample := range samples {
		if err := s.buf.Append(sample); err != nil {
			s.dropped++
			monitoring.Logf("[stepcount] session %s: dropping sample: %v", s.sessionID, err)
		}
	}

	var results []WindowResult
	for s.start+s.cfg.WindowSize <= s.buf.Len() {
		res, err := s.processNext(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Stop clears the buffer and halts further triggers. The cumulative count
// is left untouched.
func (s *Scheduler) Stop() {
	s.stopped = true
	s.buf.Reset()
	s.start, s.lastTrigger = 0, 0
}

// processNext runs the window at s.start. A window that fails is logged
// and skipped; only ctx cancellation is returned as an error.
func (s *Scheduler) processNext(ctx context.Context) (WindowResult, error) {
	w, err := s.buf.Window(s.start, s.cfg.WindowSize)
	if err != nil {
		return WindowResult{}, err
	}

	wctx := ctx
	if s.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.cfg.ProcessTimeout)
		defer cancel()
	}

	res, err := s.pipeline.Process(wctx, w)
	if err != nil {
		if ctx.Err() != nil {
			return WindowResult{}, ctx.Err()
		}
		monitoring.Logf("[stepcount] session %s: window %d at sample %d skipped: %v",
			s.sessionID, s.windows, s.start, err)
	}

	res.SessionID = s.sessionID
	res.Index = s.windows
	res.ProcessedAt = s.clock.Now()
	if res.Outcome == OutcomeCounted {
		res.Cumulative = s.acc.Add(res.Increment)
	} else {
		res.Increment = 0
		res.Cumulative = s.acc.Total()
	}
	monitoring.Debugf("[stepcount] window %d start=%d axis=%s w0=%.3f wc=%.3f outcome=%s f=%.4fHz +%.4f total=%.4f",
		res.Index, res.StartIndex, res.Axis, res.W0, res.Wc, res.Outcome, res.FrequencyHz, res.Increment, res.Cumulative)

	s.start += s.cfg.SlideStep()
	s.lastTrigger = s.buf.Len()
	s.windows++
	s.buf.DiscardBefore(s.start)

	s.sinkMu.RLock()
	sinks := s.sinks
	s.sinkMu.RUnlock()
	for _, k := range sinks {
		k.HandleWindow(res)
	}
	return res, nil
}
