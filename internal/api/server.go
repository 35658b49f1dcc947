// Package api serves the step count, session history and monitoring
// charts over HTTP.
package api

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/stepcount/internal/db"
	"github.com/banshee-data/stepcount/internal/httputil"
	"github.com/banshee-data/stepcount/internal/monitor"
	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/stepcount"
	"github.com/banshee-data/stepcount/internal/units"
	"github.com/banshee-data/stepcount/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server answers for one running session. db may be nil, in which case
// only the current session's windows retained by the hub are available.
type Server struct {
	session *stepcount.Session
	hub     *monitor.Hub
	db      *db.DB
	units   string
}

func NewServer(session *stepcount.Session, hub *monitor.Hub, database *db.DB, cadenceUnits string) *Server {
	if !units.IsValid(cadenceUnits) {
		cadenceUnits = units.HZ
	}
	return &Server{
		session: session,
		hub:     hub,
		db:      database,
		units:   cadenceUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes through so /api/live can upgrade behind the middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/steps", s.showSteps)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/reset", s.resetCount)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}/windows", s.listWindows)
	mux.HandleFunc("/api/charts/steps", s.stepsChart)
	mux.HandleFunc("/api/charts/spectrum", s.spectrumChart)
	mux.HandleFunc("/api/live", s.hub.ServeWS)
	return mux
}

// requestUnits returns the ?units= override or the server default.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q, expected one of: %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

// StepsResponse is the body of GET /api/steps.
type StepsResponse struct {
	stepcount.SessionInfo
	Windows int     `json:"windows"`
	Cadence float64 `json:"cadence"`
	Units   string  `json:"units"`
}

func (s *Server) showSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	resp := StepsResponse{SessionInfo: s.session.Info(), Units: u}
	if latest, ok := s.hub.Latest(); ok {
		resp.Windows = latest.Index + 1
		if latest.Outcome == stepcount.OutcomeCounted {
			resp.Cadence = units.ConvertCadence(latest.FrequencyHz, u)
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cfg := s.session.Config()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"version":        version.Version,
		"units":          s.units,
		"sampling_rate":  cfg.SamplingRate,
		"window_size":    cfg.WindowSize,
		"slide_step":     cfg.SlideStep(),
		"fft_resolution": cfg.FFTResolution(),
		"band_start":     cfg.BandStart,
		"band_bins":      cfg.BandBins,
		"bin_offset":     cfg.BinOffset,
	})
}

func (s *Server) resetCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.session.Reset()
	s.hub.Reset()
	monitoring.Logf("[api] step count reset for session %s", s.session.ID())
	httputil.WriteJSONOK(w, s.session.Info())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONOK(w, []stepcount.SessionInfo{s.session.Info()})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = v
	}
	sessions, err := db.NewSessionStore(s.db.DB).List(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []*db.StepSession{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) listWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")

	if s.db != nil {
		if _, err := db.NewSessionStore(s.db.DB).Get(id); err != nil {
			if errors.Is(err, db.ErrSessionNotFound) {
				httputil.NotFound(w, "session not found")
				return
			}
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session: %v", err))
			return
		}
		windows, err := db.NewWindowStore(s.db.DB).ListBySession(id)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve windows: %v", err))
			return
		}
		if windows == nil {
			windows = []stepcount.WindowResult{}
		}
		httputil.WriteJSONOK(w, windows)
		return
	}

	if id != s.session.ID() {
		httputil.NotFound(w, "session not found")
		return
	}
	httputil.WriteJSONOK(w, s.hub.History())
}

func (s *Server) stepsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	history := s.hub.History()
	httputil.WriteHTML(w, func(out io.Writer) error {
		return monitor.RenderStepsChart(out, history, u)
	})
}

// spectrumChart renders ?window=N from the retained history, or the most
// recent window.
func (s *Server) spectrumChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	var (
		target stepcount.WindowResult
		found  bool
	)
	if q := r.URL.Query().Get("window"); q != "" {
		idx, err := strconv.Atoi(q)
		if err != nil || idx < 0 {
			httputil.BadRequest(w, "Invalid 'window' parameter")
			return
		}
		for _, h := range s.hub.History() {
			if h.Index == idx {
				target, found = h, true
				break
			}
		}
	} else {
		target, found = s.hub.Latest()
	}
	if !found {
		httputil.NotFound(w, "window not retained")
		return
	}

	httputil.WriteHTML(w, func(out io.Writer) error {
		return monitor.RenderSpectrumChart(out, target, s.session.Config())
	})
}
