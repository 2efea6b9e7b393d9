package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rook-computer/lockscreen/internal/app"
	"github.com/rook-computer/lockscreen/internal/logging"
)

// mainLoopTimeout bounds how long a request waits for the main loop.
const mainLoopTimeout = 5 * time.Second

const maxBodyBytes = 4096

// Controller is the part of the app the control API drives. Every method
// runs on the main loop and returns once it did, or when ctx ends.
type Controller interface {
	Snapshot(ctx context.Context) (app.Status, error)
	ForceUpdate(ctx context.Context) error
	AuthFail(ctx context.Context, text, source string) error
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type authFailRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func apiV1Router(ctrl Controller, log logging.Logger) http.Handler {
	log = logging.OrNoop(log)
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) { handleStatus(w, r, ctrl) })
	mux.HandleFunc("/force-update", func(w http.ResponseWriter, r *http.Request) { handleForceUpdate(w, r, ctrl, log) })
	mux.HandleFunc("/auth/fail", func(w http.ResponseWriter, r *http.Request) { handleAuthFail(w, r, ctrl, log) })
	return mux
}

func handleStatus(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), mainLoopTimeout)
	defer cancel()
	st, err := ctrl.Snapshot(ctx)
	if err != nil {
		writeMainLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func handleForceUpdate(w http.ResponseWriter, r *http.Request, ctrl Controller, log logging.Logger) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), mainLoopTimeout)
	defer cancel()
	if err := ctrl.ForceUpdate(ctx); err != nil {
		writeMainLoopError(w, err)
		return
	}
	log.Infof("web", "force update from %s", r.RemoteAddr)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func handleAuthFail(w http.ResponseWriter, r *http.Request, ctrl Controller, log logging.Logger) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req authFailRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeAPIError(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}
	if req.Source == "" {
		req.Source = "control"
	}

	ctx, cancel := context.WithTimeout(r.Context(), mainLoopTimeout)
	defer cancel()
	if err := ctrl.AuthFail(ctx, req.Text, req.Source); err != nil {
		writeMainLoopError(w, err)
		return
	}
	log.Infof("web", "auth failure %q reported by %s", req.Text, req.Source)
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func writeMainLoopError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeAPIError(w, http.StatusServiceUnavailable, "main_loop_busy", "main loop did not answer in time")
		return
	}
	writeAPIError(w, http.StatusInternalServerError, "internal", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}
