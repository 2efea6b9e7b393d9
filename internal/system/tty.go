//go:build unix

package system

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/rook-computer/lockscreen/internal/logging"
)

// KD console modes from linux/kd.h
const (
	kdText     = 0x00
	kdGraphics = 0x01
	kdSetMode  = 0x4B3A // KDSETMODE ioctl
)

var vtPaths = []string{"/dev/tty", "/dev/tty0"}

// Console owns the active virtual terminal while the lock screen draws on the
// framebuffer: graphics mode keeps the text cursor and kernel messages away.
type Console struct {
	Logger logging.Logger
	active bool
}

func (c *Console) log() logging.Logger { return logging.OrNoop(c.Logger) }

// Enter switches to KD_GRAPHICS and hides the cursor.
func (c *Console) Enter() error {
	if err := setKDMode(kdGraphics); err != nil {
		c.log().Errorf("tty", "KD_GRAPHICS failed: %v", err)
		return err
	}
	c.active = true
	c.log().Infof("tty", "KD_GRAPHICS set")
	if err := writeVT("\x1b[?25l"); err != nil {
		c.log().Warnf("tty", "hide cursor failed: %v", err)
	}
	return nil
}

// Restore shows the cursor and returns to KD_TEXT. It is a no-op unless
// Enter succeeded.
func (c *Console) Restore() error {
	if !c.active {
		return nil
	}
	c.active = false
	if err := writeVT("\x1b[?25h"); err != nil {
		c.log().Warnf("tty", "show cursor failed: %v", err)
	}
	if err := setKDMode(kdText); err != nil {
		c.log().Errorf("tty", "KD_TEXT failed: %v", err)
		return err
	}
	c.log().Infof("tty", "KD_TEXT set")
	return nil
}

func setKDMode(mode int) error {
	var lastErr error
	for _, p := range vtPaths {
		fd, err := unix.Open(p, unix.O_RDONLY, 0)
		if err != nil {
			lastErr = fmt.Errorf("open %s: %w", p, err)
			continue
		}
		err = unix.IoctlSetInt(fd, kdSetMode, mode)
		unix.Close(fd)
		if err != nil {
			lastErr = fmt.Errorf("KDSETMODE %d on %s: %w", mode, p, err)
			continue
		}
		return nil
	}
	return lastErr
}

func writeVT(s string) error {
	var lastErr error
	for _, p := range vtPaths {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = f.WriteString(s)
		f.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("write VT failed: %w", lastErr)
}
