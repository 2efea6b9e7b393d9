package web

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvListenAddr = "LOCKSCREEN_LISTEN"
	EnvDevMode    = "LOCKSCREEN_DEV"
)

// ServerConfig contains settings for running the control server. Both
// binaries leave it disabled unless --listen or LOCKSCREEN_LISTEN is set.
type ServerConfig struct {
	ListenAddr string
	DevMode    bool
}

// Enabled reports whether a listen address is configured.
func (c ServerConfig) Enabled() bool { return c.ListenAddr != "" }

func DefaultServerConfigFromEnv(defaultListenAddr string) (ServerConfig, error) {
	listenAddr := os.Getenv(EnvListenAddr)
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	devMode := false
	if raw := os.Getenv(EnvDevMode); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("%s must be a boolean (got %q): %w", EnvDevMode, raw, err)
		}
		devMode = parsed
	}

	return ServerConfig{ListenAddr: listenAddr, DevMode: devMode}, nil
}
