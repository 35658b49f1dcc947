package motion

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned by Buffer.Append when a sample is older than the
// newest sample already held.
var ErrOutOfOrder = errors.New("motion: sample timestamp precedes buffer tail")

// BufferUnderrunError reports a window request that runs past the end of
// the buffered samples.
type BufferUnderrunError struct {
	Start     int
	Size      int
	Available int
}

func (e *BufferUnderrunError) Error() string {
	return fmt.Sprintf("motion: window [%d,%d) exceeds %d buffered samples", e.Start, e.Start+e.Size, e.Available)
}

// Buffer is an append-only chronological sequence of samples for one
// session. Indices are absolute: they count every sample appended since
// the last Reset, including samples already released by DiscardBefore.
// It is owned by a single goroutine and is not safe for concurrent use.
type Buffer struct {
	samples []Sample
	base    int // absolute index of samples[0]
	last    float64
	hasLast bool
}

// NewBuffer returns an empty buffer with room for capacity samples before
// it has to grow.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{samples: make([]Sample, 0, capacity)}
}

// Append adds a sample to the tail. Timestamps must be non-decreasing and
// every field finite.
func (b *Buffer) Append(s Sample) error {
	if !s.Finite() {
		return fmt.Errorf("%w: %+v", ErrNonFinite, s)
	}
	if b.hasLast && s.Timestamp < b.last {
		return fmt.Errorf("%w: %.6f < %.6f", ErrOutOfOrder, s.Timestamp, b.last)
	}
	b.samples = append(b.samples, s)
	b.last, b.hasLast = s.Timestamp, true
	return nil
}

// Len is the absolute index one past the newest sample.
func (b *Buffer) Len() int { return b.base + len(b.samples) }

// Held is the number of samples still in memory.
func (b *Buffer) Held() int { return len(b.samples) }

// Base is the absolute index of the oldest held sample.
func (b *Buffer) Base() int { return b.base }

// DiscardBefore releases every sample with an absolute index below idx.
// Indices of the remaining samples do not change. idx beyond Len is
// clamped.
func (b *Buffer) DiscardBefore(idx int) {
	if idx > b.Len() {
		idx = b.Len()
	}
	n := idx - b.base
	if n <= 0 {
		return
	}
	kept := copy(b.samples, b.samples[n:])
	b.samples = b.samples[:kept]
	b.base = idx
}

// Reset discards every sample but keeps the allocation.
func (b *Buffer) Reset() {
	b.samples = b.samples[:0]
	b.base = 0
	b.hasLast = false
}

// Samples returns a copy of the held samples.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Window returns the size samples starting at absolute index start. The
// window owns a copy of the data, so later appends never alter it. A start
// below Base is an underrun.
func (b *Buffer) Window(start, size int) (Window, error) {
	if start < b.base || size <= 0 || start+size > b.Len() {
		return Window{}, &BufferUnderrunError{Start: start, Size: size, Available: b.Len()}
	}
	i := start - b.base
	return NewWindow(start, b.samples[i:i+size]), nil
}

// Window is a fixed-length, contiguous run of samples taken from a Buffer.
type Window struct {
	Start   int
	samples []Sample
}

// NewWindow copies samples into a window that begins at buffer index start.
func NewWindow(start int, samples []Sample) Window {
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return Window{Start: start, samples: cp}
}

// Len is the number of samples in the window.
func (w Window) Len() int { return len(w.samples) }

// Samples returns a copy of the window's samples.
func (w Window) Samples() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Column extracts the readings for one axis as a fresh slice.
func (w Window) Column(a Axis) []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Component(a)
	}
	return out
}

// Span is the elapsed time between the first and last sample.
func (w Window) Span() float64 {
	if len(w.samples) < 2 {
		return 0
	}
	return w.samples[len(w.samples)-1].Timestamp - w.samples[0].Timestamp
}
