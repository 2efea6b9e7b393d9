// Command preview renders a lock screen layout headlessly and writes the
// frames as PNG files. It can expose the control server so failures and
// force updates can be tried without a real session.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/rook-computer/lockscreen/internal/app"
	"github.com/rook-computer/lockscreen/internal/config"
	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/system"
	"github.com/rook-computer/lockscreen/internal/video"
	"github.com/rook-computer/lockscreen/internal/web"
	"github.com/rook-computer/lockscreen/internal/widget"
)

type options struct {
	configPath      string
	outDir          string
	frames          int
	size            string
	outputs         string
	backdrop        string
	listen          string
	devMode         bool
	video           bool
	verbose         bool
	quiet           bool
	noFadeIn        bool
	immediateRender bool
}

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "preview:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	var opts options
	a := cli.NewApp()
	a.Name = "preview"
	a.Usage = "render a lock screen layout to PNG frames"
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "layout file (.toml, .yaml)",
			EnvVar:      config.EnvConfig,
			Destination: &opts.configPath,
		},
		cli.StringFlag{
			Name:        "out, o",
			Usage:       "directory the frames are written to, one subdirectory per output",
			Value:       "frames",
			Destination: &opts.outDir,
		},
		cli.IntFlag{
			Name:        "frames, n",
			Usage:       "stop after this many frames of the first output; 0 runs until interrupted",
			Value:       1,
			Destination: &opts.frames,
		},
		cli.StringFlag{
			Name:        "size",
			Usage:       "output size as WIDTHxHEIGHT",
			Value:       "1920x1080",
			Destination: &opts.size,
		},
		cli.StringFlag{
			Name:        "outputs",
			Usage:       "comma separated output names",
			Value:       "DP-1",
			Destination: &opts.outputs,
		},
		cli.StringFlag{
			Name:        "backdrop",
			Usage:       "image standing in for the screen contents of screenshot backgrounds",
			Destination: &opts.backdrop,
		},
		cli.StringFlag{
			Name:        "listen",
			Usage:       "expose the control server on this address; also configurable via " + web.EnvListenAddr,
			Destination: &opts.listen,
		},
		cli.BoolFlag{
			Name:        "dev",
			Usage:       "permissive CORS on the control server; also configurable via " + web.EnvDevMode,
			Destination: &opts.devMode,
		},
		cli.BoolFlag{
			Name:        "video",
			Usage:       "start mpvpaper for video backgrounds instead of skipping them",
			Destination: &opts.video,
		},
		cli.BoolFlag{
			Name:        "verbose, v",
			Destination: &opts.verbose,
		},
		cli.BoolFlag{
			Name:        "quiet, q",
			Destination: &opts.quiet,
		},
		cli.BoolFlag{
			Name:        "no-fade-in",
			Destination: &opts.noFadeIn,
		},
		cli.BoolFlag{
			Name:        "immediate-render",
			Destination: &opts.immediateRender,
		},
	}
	a.Action = func(c *cli.Context) error { return run(opts) }
	return a
}

func run(opts options) error {
	log, closeLog, err := logging.Setup("", opts.verbose, opts.quiet)
	defer closeLog()
	if err != nil {
		return err
	}

	size, err := parseSize(opts.size)
	if err != nil {
		return err
	}
	names := splitOutputs(opts.outputs)
	if len(names) == 0 {
		return errors.New("no outputs given")
	}

	fs := afero.NewOsFs()
	layout, err := config.Resolve(fs, opts.configPath, log)
	if err != nil {
		return err
	}

	var backdrop *image.RGBA
	if opts.backdrop != "" {
		if backdrop, err = loadBackdrop(fs, opts.backdrop, size); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	captures := screencopy{}
	var screens []app.Screen
	var first *frameLimit
	for _, name := range names {
		surface, err := render.NewPNGSurface(fs, filepath.Join(opts.outDir, name), size)
		if err != nil {
			return err
		}
		surface.Backdrop = backdrop
		captures[name] = surface
		var s render.Surface = surface
		if first == nil {
			first = &frameLimit{Surface: surface, limit: opts.frames}
			s = first
		}
		screens = append(screens, app.Screen{Output: render.Output{ID: name, Viewport: size}, Surface: s})
	}

	var player widget.VideoController = video.NoopController{}
	if opts.video {
		player = video.NewProcessController(log)
	}

	a, err := app.New(app.Options{
		Layout:          layout,
		Screens:         screens,
		Fs:              fs,
		Logger:          log,
		User:            os.Getenv("USER"),
		NoFadeIn:        opts.noFadeIn,
		ImmediateRender: opts.immediateRender,
		Commands:        system.CommandOutput{},
		Video:           player,
		Screencopy:      captures,
	})
	if err != nil {
		return err
	}
	first.done = func() { a.Exit(nil) }

	srvCfg, err := web.DefaultServerConfigFromEnv("")
	if err != nil {
		return err
	}
	if opts.listen != "" {
		srvCfg.ListenAddr = opts.listen
	}
	srvCfg.DevMode = srvCfg.DevMode || opts.devMode
	if srvCfg.Enabled() {
		server := web.NewHTTPServer(srvCfg, a, log)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop()
		fmt.Println("API: http://" + server.Addr() + "/api/v1/")
	}

	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	fmt.Printf("wrote %d frames to %s\n", first.presented, opts.outDir)
	return err
}

// frameLimit exits the app once limit frames were presented.
type frameLimit struct {
	render.Surface
	limit     int
	presented int
	done      func()
}

func (f *frameLimit) Present() error {
	if err := f.Surface.Present(); err != nil {
		return err
	}
	f.presented++
	if f.limit > 0 && f.presented == f.limit && f.done != nil {
		f.done()
	}
	return nil
}

// screencopy routes captures to the surface of the named output.
type screencopy map[string]*render.PNGSurface

func (s screencopy) Capture(ctx context.Context, outputID string) (*image.RGBA, error) {
	surface, ok := s[outputID]
	if !ok {
		return nil, fmt.Errorf("unknown output %q", outputID)
	}
	return surface.Capture(ctx, outputID)
}

func parseSize(s string) (image.Point, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("size %q: expected WIDTHxHEIGHT", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: %w", s, err)
	}
	if x <= 0 || y <= 0 {
		return image.Point{}, fmt.Errorf("size %q must be positive", s)
	}
	return image.Pt(x, y), nil
}

func splitOutputs(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func loadBackdrop(fs afero.Fs, path string, size image.Point) (*image.RGBA, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backdrop: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode backdrop %s: %w", path, err)
	}
	out := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.CatmullRom.Scale(out, out.Rect, img, img.Bounds(), draw.Src, nil)
	return out, nil
}
