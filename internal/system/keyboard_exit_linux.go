//go:build linux

package system

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rook-computer/lockscreen/internal/logging"
)

const evKey = 0x01

// StartExitOnKey watches Linux evdev devices under /dev/input/event* and
// invokes onExit once when the named key (see KeyCode) is pressed.
//
// It is best-effort: if no input devices are available, it logs and returns.
func StartExitOnKey(ctx context.Context, key string, logger logging.Logger, onExit func()) {
	logger = logging.OrNoop(logger)
	code, ok := KeyCode(key)
	if onExit == nil || !ok {
		if key != "" && !ok {
			logger.Warnf("input", "unknown exit key %q", key)
		}
		return
	}

	// input_event = timeval + u16 type + u16 code + s32 value.
	tvSize := binary.Size(unix.Timeval{})
	eventSize := tvSize + 2 + 2 + 4
	if eventSize <= 8 {
		eventSize = 24
		tvSize = 16
	}

	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(paths) == 0 {
		logger.Infof("input", "no evdev devices found for %s exit", key)
		return
	}

	var once sync.Once
	trigger := func() {
		once.Do(func() {
			logger.Infof("input", "%s pressed: exiting", key)
			onExit()
		})
	}

	for _, path := range paths {
		go watchDevice(ctx, path, uint16(code), tvSize, eventSize, trigger)
	}
}

func watchDevice(ctx context.Context, path string, code uint16, tvSize, eventSize int, trigger func()) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	buf := make([]byte, 64*eventSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		for off := 0; off+eventSize <= n; off += eventSize {
			rec := buf[off : off+eventSize]
			typ := binary.LittleEndian.Uint16(rec[tvSize : tvSize+2])
			c := binary.LittleEndian.Uint16(rec[tvSize+2 : tvSize+4])
			value := int32(binary.LittleEndian.Uint32(rec[tvSize+4 : tvSize+8]))
			if typ == evKey && c == code && value == 1 {
				trigger()
				return
			}
		}
	}
}
