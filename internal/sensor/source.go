// Package sensor adapts accelerometer feeds (serial line protocol, MQTT
// JSON messages, a synthetic gait generator) into streams of
// motion.Sample.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/stepcount/internal/motion"
)

// Source produces samples until ctx is done or the feed ends. Stream
// blocks; it returns nil when the feed ends cleanly and ctx.Err() on
// cancellation. Implementations send samples in non-decreasing timestamp
// order when the device does.
type Source interface {
	Stream(ctx context.Context, out chan<- motion.Sample) error
}

// ErrMalformedLine is wrapped by ParseLine errors.
var ErrMalformedLine = errors.New("sensor: malformed sample line")

// ParseLine parses one "t,x,y,z" line as written by the capture firmware.
// Surrounding whitespace is ignored.
func ParseLine(line string) (motion.Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 4 {
		return motion.Sample{}, fmt.Errorf("%w: want 4 fields, got %d in %q", ErrMalformedLine, len(fields), line)
	}
	var v [4]float64
	for i, f := range fields {
		x, err := motion.ParseValue(f)
		if err != nil {
			return motion.Sample{}, fmt.Errorf("%w: field %d: %v", ErrMalformedLine, i+1, err)
		}
		v[i] = x
	}
	return motion.Sample{Timestamp: v[0], X: v[1], Y: v[2], Z: v[3]}, nil
}

// FormatLine renders a sample in the line protocol, without the newline.
func FormatLine(s motion.Sample) string {
	return strconv.FormatFloat(s.Timestamp, 'f', -1, 64) + "," +
		strconv.FormatFloat(s.X, 'f', -1, 64) + "," +
		strconv.FormatFloat(s.Y, 'f', -1, 64) + "," +
		strconv.FormatFloat(s.Z, 'f', -1, 64)
}

func send(ctx context.Context, out chan<- motion.Sample, s motion.Sample) error {
	select {
	case out <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
