package health

import (
	"net/http"
	"sync/atomic"
)

var ready atomic.Bool

// SetReady flips the readiness gate used by /readyz.
func SetReady(v bool) { ready.Store(v) }

// Ready returns the current readiness state.
func Ready() bool { return ready.Load() }

// Healthz is the liveness probe: the process is up and serving.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reports whether startup finished: the route graph is loaded and the
// telemetry monitor is running.
func Readyz(w http.ResponseWriter, _ *http.Request) {
	if !ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
