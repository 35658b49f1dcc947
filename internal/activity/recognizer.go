package activity

import (
	"sort"
	"sync"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
)

// Prediction is the classification of one window.
type Prediction struct {
	// Timestamp of the window's last sample.
	Timestamp     float64            `json:"t"`
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
	Features      Features           `json:"features"`
}

// Top returns the most probable class. Ties go to the name that sorts
// first.
func Top(probs map[string]float64) string {
	names := make([]string, 0, len(probs))
	for k := range probs {
		names = append(names, k)
	}
	sort.Strings(names)
	best := ""
	for _, k := range names {
		if best == "" || probs[k] > probs[best] {
			best = k
		}
	}
	return best
}

// maxHistory bounds the predictions a Recognizer keeps.
const maxHistory = 256

// Recognizer classifies a live stream every window samples, looking at the
// most recent window only.
type Recognizer struct {
	classifier Classifier
	window     int

	mu      sync.Mutex
	buf     []motion.Sample
	history []Prediction
}

// NewRecognizer uses window <= 0 as DefaultWindow.
func NewRecognizer(c Classifier, window int) *Recognizer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recognizer{classifier: c, window: window, buf: make([]motion.Sample, 0, window)}
}

// Observe adds a sample and returns a prediction when a window completes.
// Classifier errors are logged and yield no prediction.
func (r *Recognizer) Observe(s motion.Sample) (Prediction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, s)
	if len(r.buf) < r.window {
		return Prediction{}, false
	}
	f := FeaturesOf(r.buf)
	r.buf = r.buf[:0]

	probs, err := r.classifier.Predict(f)
	if err != nil {
		monitoring.Logf("[activity] predict: %v", err)
		return Prediction{}, false
	}
	p := Prediction{Timestamp: s.Timestamp, Label: Top(probs), Probabilities: probs, Features: f}
	if len(r.history) == maxHistory {
		r.history = append(r.history[:0], r.history[1:]...)
	}
	r.history = append(r.history, p)
	monitoring.Debugf("[activity] t=%.2f %s (%.2f)", p.Timestamp, p.Label, probs[p.Label])
	return p, true
}

// Tap adapts Observe to the session's per-sample hook.
func (r *Recognizer) Tap(s motion.Sample) { r.Observe(s) }

// Latest returns the most recent prediction.
func (r *Recognizer) Latest() (Prediction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Prediction{}, false
	}
	return r.history[len(r.history)-1], true
}

// Predictions returns a copy of every prediction so far.
func (r *Recognizer) Predictions() []Prediction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Prediction(nil), r.history...)
}

// Classify runs c over every full window of a recording.
func Classify(c Classifier, samples []motion.Sample, window int) ([]Prediction, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	feats := ExtractFeatures(samples, window)
	out := make([]Prediction, 0, len(feats))
	for i, f := range feats {
		probs, err := c.Predict(f)
		if err != nil {
			return out, err
		}
		out = append(out, Prediction{
			Timestamp:     samples[(i+1)*window-1].Timestamp,
			Label:         Top(probs),
			Probabilities: probs,
			Features:      f,
		})
	}
	return out, nil
}
