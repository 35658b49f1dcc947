package stepcount

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/timeutil"
)

// Mode is how a session receives samples.
type Mode string

const (
	ModeLive  Mode = "live"
	ModeBatch Mode = "batch"
)

// Session is the state of one counting run: its configuration, the
// scheduler that owns the sample buffer and the cumulative count.
// Presentation layers may call ID, Steps, Reset and Info from any
// goroutine; everything else belongs to the goroutine feeding samples.
type Session struct {
	id        string
	mode      Mode
	source    string
	startedAt time.Time
	cfg       Config

	acc       *Accumulator
	scheduler *Scheduler
}

// SessionInfo is a snapshot suitable for JSON responses.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	Mode      Mode      `json:"mode"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	Steps     float64   `json:"steps"`
}

// NewSession validates cfg, prepares the pipeline and assigns a new
// session ID. Configuration failures are returned here, before any sample
// is accepted.
func NewSession(cfg Config, mode Mode, source string, clock timeutil.Clock) (*Session, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("start %s session: %w", mode, err)
	}
	id := uuid.New().String()
	acc := NewAccumulator(cfg)
	return &Session{
		id:        id,
		mode:      mode,
		source:    source,
		startedAt: clock.Now(),
		cfg:       cfg,
		acc:       acc,
		scheduler: NewScheduler(p, acc, id, clock),
	}, nil
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Mode() Mode            { return s.mode }
func (s *Session) Source() string        { return s.source }
func (s *Session) StartedAt() time.Time  { return s.startedAt }
func (s *Session) Config() Config        { return s.cfg }
func (s *Session) Scheduler() *Scheduler { return s.scheduler }

// Steps is a consistent snapshot of the cumulative count.
func (s *Session) Steps() float64 { return s.acc.Total() }

// Reset zeroes the count without disturbing the window schedule.
func (s *Session) Reset() { s.acc.Reset() }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		Mode:      s.mode,
		Source:    s.source,
		StartedAt: s.startedAt,
		Steps:     s.Steps(),
	}
}

// AddSink registers a window observer.
func (s *Session) AddSink(k Sink) { s.scheduler.AddSink(k) }

// RunBatch processes a complete recording.
func (s *Session) RunBatch(ctx context.Context, samples []motion.Sample) ([]WindowResult, error) {
	return s.scheduler.RunBatch(ctx, samples)
}

// Run consumes live samples until in is closed or ctx is done, then stops
// the scheduler. taps see every sample before it reaches the scheduler.
// A window already being processed when ctx is cancelled runs to
// completion; its own ProcessTimeout still applies.
func (s *Session) Run(ctx context.Context, in <-chan motion.Sample, taps ...func(motion.Sample)) error {
	defer s.scheduler.Stop()
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-in:
			if !ok {
				return nil
			}
			for _, tap := range taps {
				tap(sample)
			}
			if _, err := s.scheduler.Append(wctx, sample); err != nil {
				return err
			}
		}
	}
}
