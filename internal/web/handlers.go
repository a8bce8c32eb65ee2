package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/SweepGo/internal/logic/pano"
)

// Overrides holds survey parameters that can override config defaults.
// Zero values mean "use config default".
type Overrides struct {
	PanRadiusDeg         float64 `json:"pan_radius_deg"`
	TiltRadiusDeg        float64 `json:"tilt_radius_deg"`
	OverlapPercent       float64 `json:"overlap_percent"`
	AttitudeToleranceDeg float64 `json:"attitude_tolerance_deg"`
}

// RunSurveyFunc runs a survey with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunSurveyFunc func(ctx context.Context, overrides Overrides) error

// PlanFunc computes a plan for the given overrides without touching
// hardware. Used by GET /plan for dry runs.
type PlanFunc func(overrides Overrides) (*pano.Plan, error)

// FormConfig holds default values for the survey form (from config).
type FormConfig struct {
	PanRadiusDeg         float64 `json:"pan_radius_deg"`
	TiltRadiusDeg        float64 `json:"tilt_radius_deg"`
	OverlapPercent       float64 `json:"overlap_percent"`
	AttitudeToleranceDeg float64 `json:"attitude_tolerance_deg"`
	HFovDeg              float64 `json:"h_fov_deg"`
	VFovDeg              float64 `json:"v_fov_deg"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunSurvey    RunSurveyFunc
	PlanSurvey   PlanFunc
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	baseCtx      context.Context // survey goroutines inherit this; nil = Background
	staticFS     fs.FS
}

// SetBaseContext sets the context survey goroutines inherit, so
// shutting the server down also cancels an in-flight survey.
func (h *Handlers) SetBaseContext(ctx context.Context) {
	h.runningMu.Lock()
	h.baseCtx = ctx
	h.runningMu.Unlock()
}

// NewHandlers creates handlers with the given dependencies.
// If runSurvey is nil, POST /run returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runSurvey RunSurveyFunc, planSurvey PlanFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunSurvey:    runSurvey,
		PlanSurvey:   planSurvey,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// planOrientation is the JSON shape of one grid cell in a /plan response.
type planOrientation struct {
	PanDeg  float64 `json:"pan_deg"`
	TiltDeg float64 `json:"tilt_deg"`
	Ix      int     `json:"ix"`
	Iy      int     `json:"iy"`
}

// planResponse is the JSON shape of a /plan response.
type planResponse struct {
	Rows         int               `json:"rows"`
	Cols         int               `json:"cols"`
	Count        int               `json:"count"`
	Orientations []planOrientation `json:"orientations"`
}

// HandlePlan handles GET /plan: a hardware-free dry run of the
// planner. Override parameters come from the query string; omitted
// ones use config defaults.
func (h *Handlers) HandlePlan(w http.ResponseWriter, r *http.Request) {
	if h.PlanSurvey == nil {
		http.Error(w, "planner not configured", http.StatusServiceUnavailable)
		return
	}

	overrides, err := overridesFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg := validateOverrides(overrides); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	plan, err := h.PlanSurvey(overrides)
	if err != nil {
		var cfgErr *pano.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := planResponse{
		Rows:         plan.Rows,
		Cols:         plan.Cols,
		Count:        len(plan.Orientations),
		Orientations: make([]planOrientation, 0, len(plan.Orientations)),
	}
	const radToDeg = 180.0 / math.Pi
	for _, o := range plan.Orientations {
		resp.Orientations = append(resp.Orientations, planOrientation{
			PanDeg:  o.Pan * radToDeg,
			TiltDeg: o.Tilt * radToDeg,
			Ix:      o.Ix,
			Iy:      o.Iy,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleRun handles POST /run to start a survey.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if msg := validateOverrides(overrides); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if h.RunSurvey == nil {
		http.Error(w, "survey not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "survey already in progress", http.StatusConflict)
		return
	}
	h.running = true
	ctx := h.baseCtx
	h.runningMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		if err := h.RunSurvey(ctx, overrides); err != nil {
			h.Broadcaster.Broadcast("error", "Survey failed: "+err.Error())
			log.Printf("survey failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Survey complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Initial comment to establish the connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// overridesFromQuery parses override parameters from a query string.
func overridesFromQuery(r *http.Request) (Overrides, error) {
	var o Overrides
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"pan_radius_deg", &o.PanRadiusDeg},
		{"tilt_radius_deg", &o.TiltRadiusDeg},
		{"overlap_percent", &o.OverlapPercent},
		{"attitude_tolerance_deg", &o.AttitudeToleranceDeg},
	} {
		s := q.Get(p.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Overrides{}, errors.New("invalid " + p.key)
		}
		*p.dst = v
	}
	return o, nil
}

// validateOverrides checks non-zero override values; returns an error
// message or "" if valid.
func validateOverrides(o Overrides) string {
	if o.PanRadiusDeg != 0 && (math.IsNaN(o.PanRadiusDeg) || o.PanRadiusDeg < 0 || o.PanRadiusDeg > 180) {
		return "pan_radius_deg must be between 0 and 180"
	}
	if o.TiltRadiusDeg != 0 && (math.IsNaN(o.TiltRadiusDeg) || o.TiltRadiusDeg < 0 || o.TiltRadiusDeg > 90) {
		return "tilt_radius_deg must be between 0 and 90"
	}
	if o.OverlapPercent != 0 && (math.IsNaN(o.OverlapPercent) || o.OverlapPercent < 0 || o.OverlapPercent >= 100) {
		return "overlap_percent must be in [0, 100)"
	}
	if o.AttitudeToleranceDeg != 0 && (math.IsNaN(o.AttitudeToleranceDeg) || o.AttitudeToleranceDeg < 0) {
		return "attitude_tolerance_deg must be >= 0"
	}
	return ""
}
