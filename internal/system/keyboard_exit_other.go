//go:build !linux

package system

import (
	"context"

	"github.com/rook-computer/lockscreen/internal/logging"
)

// StartExitOnKey needs evdev and is unavailable on this platform.
func StartExitOnKey(ctx context.Context, key string, logger logging.Logger, onExit func()) {
	logging.OrNoop(logger).Infof("input", "exit key %s not supported on this platform", key)
}
