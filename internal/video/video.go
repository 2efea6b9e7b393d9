// Package video runs video backgrounds. The lock screen does not decode video
// itself; an overlay player is started per output and stopped with the
// background that owns it.
package video

import (
	"errors"
	"strings"
)

var ErrAlreadyRunning = errors.New("video already running on output")

// Controller starts and stops the overlay player of an output.
type Controller interface {
	Start(outputID, path, layer string, options []string) error
	Stop(outputID string) error
	Running(outputID string) bool
}

// Status describes the player of one output.
type Status struct {
	Output string
	Path   string
	State  string
	Err    string
}

type NoopController struct{}

func (NoopController) Start(outputID, path, layer string, options []string) error { return nil }
func (NoopController) Stop(outputID string) error                                   { return nil }
func (NoopController) Running(outputID string) bool                                 { return false }

// Args builds the mpvpaper command line: mpv options go in one -o argument,
// followed by the layer, the output and the file.
func Args(outputID, path, layer string, options []string) []string {
	var args []string
	if len(options) > 0 {
		args = append(args, "-o", strings.Join(options, " "))
	}
	if layer != "" {
		args = append(args, "-l", layer)
	}
	return append(args, outputID, path)
}
