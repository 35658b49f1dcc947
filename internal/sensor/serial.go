package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
)

// LineSource reads line-protocol samples from a byte stream such as a
// serial port or a replayed capture.
type LineSource struct {
	r    io.ReadCloser
	name string

	// Malformed counts lines that failed to parse.
	Malformed int
}

// NewLineSource wraps r. name is used in log lines.
func NewLineSource(r io.ReadCloser, name string) *LineSource {
	return &LineSource{r: r, name: name}
}

// OpenSerial opens the accelerometer's serial port.
func OpenSerial(path string, opts PortOptions) (*LineSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options for %s: %w", path, err)
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewLineSource(port, path), nil
}

// Close closes the underlying reader, which also unblocks a pending Stream.
func (s *LineSource) Close() error { return s.r.Close() }

// Stream scans lines until EOF or cancellation. Malformed lines are
// counted and logged, not fatal.
func (s *LineSource) Stream(ctx context.Context, out chan<- motion.Sample) error {
	scan := bufio.NewScanner(s.r)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs in its own goroutine so cancellation is
	// observed even while the port is idle.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
						return nil
					}
					return fmt.Errorf("read %s: %w", s.name, err)
				default:
					return nil
				}
			}
			if line == "" {
				continue
			}
			sample, err := ParseLine(line)
			if err != nil {
				s.Malformed++
				monitoring.Debugf("[sensor] %s: %v", s.name, err)
				continue
			}
			if err := send(ctx, out, sample); err != nil {
				return err
			}
		}
	}
}
