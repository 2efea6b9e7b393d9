//go:build !unix

package system

import "github.com/rook-computer/lockscreen/internal/logging"

// Console is a no-op outside unix virtual terminals.
type Console struct {
	Logger logging.Logger
}

func (c *Console) Enter() error   { return nil }
func (c *Console) Restore() error { return nil }
