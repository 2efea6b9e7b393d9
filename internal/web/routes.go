package web

import (
	"net/http"

	"github.com/rook-computer/lockscreen/internal/logging"
)

// RegisterAPIV1 registers the control API routes under /api/v1/.
func RegisterAPIV1(mux *http.ServeMux, ctrl Controller, log logging.Logger) {
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiV1Router(ctrl, log)))
}

// NewDefaultMux builds the mux used by both binaries. In dev mode every
// route answers CORS preflights.
func NewDefaultMux(ctrl Controller, cfg ServerConfig, log logging.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIV1(mux, ctrl, log)
	if cfg.DevMode {
		return WithDevCORS(mux)
	}
	return mux
}
