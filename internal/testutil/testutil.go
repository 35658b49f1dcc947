// Package testutil provides shared test fixtures: synthetic accelerometer
// signals, CSV recordings and HTTP helpers.
package testutil

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/stepcount/internal/motion"
)

// Tone describes a sinusoid on one axis.
type Tone struct {
	Axis      motion.Axis
	Frequency float64 // Hz
	Amplitude float64
	Offset    float64 // constant added to the axis
}

// Samples generates n samples at rate Hz carrying the given tones. Axes
// without a tone read zero.
func Samples(n int, rate float64, tones ...Tone) []motion.Sample {
	out := make([]motion.Sample, n)
	for i := range out {
		t := float64(i) / rate
		var v [3]float64
		for _, tone := range tones {
			v[tone.Axis] += tone.Offset + tone.Amplitude*math.Sin(2*math.Pi*tone.Frequency*t)
		}
		out[i] = motion.Sample{Timestamp: t, X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}

// Constant generates n samples holding fixed axis values.
func Constant(n int, rate, x, y, z float64) []motion.Sample {
	out := make([]motion.Sample, n)
	for i := range out {
		out[i] = motion.Sample{Timestamp: float64(i) / rate, X: x, Y: y, Z: z}
	}
	return out
}

// CSV renders samples as a recording with a "t,x,y,z" header. When
// truncated is true a malformed trailing row is appended.
func CSV(samples []motion.Sample, truncated bool) string {
	var b strings.Builder
	b.WriteString("t,x,y,z\n")
	for _, s := range samples {
		fmt.Fprintf(&b, "%g,%g,%g,%g\n", s.Timestamp, s.X, s.Y, s.Z)
	}
	if truncated {
		b.WriteString("99.99,0.1,")
	}
	return b.String()
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
