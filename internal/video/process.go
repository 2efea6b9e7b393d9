package video

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rook-computer/lockscreen/internal/logging"
)

const defaultBinary = "mpvpaper"

// stopGrace bounds how long Wait blocks on output pipes held open by
// children of a killed player.
const stopGrace = 2 * time.Second

type process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

// ProcessController runs one mpvpaper process per output.
type ProcessController struct {
	// Binary defaults to mpvpaper on PATH.
	Binary string
	Logger logging.Logger
	// Command builds the process; tests replace it.
	Command func(ctx context.Context, name string, args ...string) *exec.Cmd

	mu     sync.Mutex
	procs  map[string]*process
	status map[string]Status
}

func NewProcessController(logger logging.Logger) *ProcessController {
	return &ProcessController{Logger: logger}
}

func (c *ProcessController) log() logging.Logger { return logging.OrNoop(c.Logger) }

// Start launches the player and returns once it is running. The process is
// reaped in the background; its stderr tail ends up in Status on failure.
func (c *ProcessController) Start(outputID, path, layer string, options []string) error {
	c.mu.Lock()
	if c.procs == nil {
		c.procs = map[string]*process{}
		c.status = map[string]Status{}
	}
	if _, ok := c.procs[outputID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", outputID, ErrAlreadyRunning)
	}
	binary := c.Binary
	if binary == "" {
		binary = defaultBinary
	}
	command := c.Command
	if command == nil {
		command = exec.CommandContext
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := command(ctx, binary, Args(outputID, path, layer, options)...)
	cmd.Stdout = io.Discard
	cmd.WaitDelay = stopGrace
	stderr := &ringBuffer{max: 4096}
	cmd.Stderr = stderr
	p := &process{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	c.procs[outputID] = p
	c.status[outputID] = Status{Output: outputID, Path: path, State: "starting"}
	c.mu.Unlock()

	if err := cmd.Start(); err != nil {
		cancel()
		c.mu.Lock()
		delete(c.procs, outputID)
		c.status[outputID] = Status{Output: outputID, Path: path, State: "error", Err: err.Error()}
		c.mu.Unlock()
		return fmt.Errorf("start %s: %w", binary, err)
	}
	c.log().Infof("video", "started %s for %s with %s", binary, outputID, path)

	c.mu.Lock()
	c.status[outputID] = Status{Output: outputID, Path: path, State: "running"}
	c.mu.Unlock()

	go c.wait(outputID, path, p, stderr)
	return nil
}

func (c *ProcessController) wait(outputID, path string, p *process, stderr *ringBuffer) {
	err := p.cmd.Wait()
	p.cancel()

	c.mu.Lock()
	if c.procs[outputID] == p {
		delete(c.procs, outputID)
	}
	st := Status{Output: outputID, Path: path, State: "stopped"}
	if err != nil && c.status[outputID].State != "stopping" {
		msg := err.Error()
		if s := stderr.String(); s != "" {
			msg = msg + ": " + s
		}
		st.State = "error"
		st.Err = msg
		c.log().Errorf("video", "player for %s exited: %s", outputID, msg)
	}
	c.status[outputID] = st
	c.mu.Unlock()
	close(p.done)
}

// Stop kills the player of outputID and waits for it to exit. Stopping an
// output without a player is a no-op.
func (c *ProcessController) Stop(outputID string) error {
	c.mu.Lock()
	p, ok := c.procs[outputID]
	if ok {
		st := c.status[outputID]
		st.State = "stopping"
		c.status[outputID] = st
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	c.log().Infof("video", "stopping player for %s", outputID)
	p.cancel()
	<-p.done
	return nil
}

// StopAll stops every running player.
func (c *ProcessController) StopAll() {
	c.mu.Lock()
	outputs := make([]string, 0, len(c.procs))
	for id := range c.procs {
		outputs = append(outputs, id)
	}
	c.mu.Unlock()
	for _, id := range outputs {
		_ = c.Stop(id)
	}
}

func (c *ProcessController) Running(outputID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.procs[outputID]
	return ok
}

func (c *ProcessController) Status(outputID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[outputID]; ok {
		return st
	}
	return Status{Output: outputID, State: "idle"}
}

type ringBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max <= 0 {
		return len(p), nil
	}

	if len(p) >= r.max {
		r.buf = append(r.buf[:0], p[len(p)-r.max:]...)
		return len(p), nil
	}

	if len(r.buf)+len(p) > r.max {
		drop := len(r.buf) + len(p) - r.max
		r.buf = append(r.buf[drop:], p...)
		return len(p), nil
	}

	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *ringBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}
