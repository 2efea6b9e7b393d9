package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/rook-computer/lockscreen/internal/app"
	"github.com/rook-computer/lockscreen/internal/config"
	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/system"
	"github.com/rook-computer/lockscreen/internal/video"
	"github.com/rook-computer/lockscreen/internal/web"
)

var version = "dev"

type options struct {
	configPath      string
	fbPath          string
	output          string
	width, height   int
	exitKey         string
	listen          string
	logFile         string
	stdioLog        string
	verbose         bool
	quiet           bool
	noFadeIn        bool
	immediateRender bool
}

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lockscreen:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	var opts options
	a := cli.NewApp()
	a.Name = "lockscreen"
	a.Usage = "draw the lock screen layout on the Linux framebuffer"
	a.Version = version
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "layout file (.toml, .yaml); defaults to the user's config directory",
			EnvVar:      config.EnvConfig,
			Destination: &opts.configPath,
		},
		cli.StringFlag{
			Name:        "fb",
			Usage:       "framebuffer device",
			Value:       "/dev/fb0",
			Destination: &opts.fbPath,
		},
		cli.StringFlag{
			Name:        "output",
			Usage:       "output name widgets and monitor filters see (default: framebuffer device name)",
			Destination: &opts.output,
		},
		cli.IntFlag{
			Name:        "width",
			Usage:       "logical width to render at (default: device resolution)",
			Destination: &opts.width,
		},
		cli.IntFlag{
			Name:        "height",
			Usage:       "logical height to render at (default: device resolution)",
			Destination: &opts.height,
		},
		cli.StringFlag{
			Name:        "exit-key",
			Usage:       "key that leaves the lock screen, for kiosk debugging (e.g. esc, f12)",
			Destination: &opts.exitKey,
		},
		cli.StringFlag{
			Name:        "listen",
			Usage:       "control server address; also configurable via " + web.EnvListenAddr,
			Destination: &opts.listen,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "write the log to this file instead of stderr",
			Destination: &opts.logFile,
		},
		cli.StringFlag{
			Name:        "stdio-log",
			Usage:       "redirect stdout+stderr (including panics) to this file",
			EnvVar:      "LOCKSCREEN_STDIO_LOG",
			Destination: &opts.stdioLog,
		},
		cli.BoolFlag{
			Name:        "verbose, v",
			Usage:       "log trace messages",
			Destination: &opts.verbose,
		},
		cli.BoolFlag{
			Name:        "quiet, q",
			Usage:       "log nothing",
			Destination: &opts.quiet,
		},
		cli.BoolFlag{
			Name:        "no-fade-in",
			Usage:       "show the lock screen at full opacity right away",
			Destination: &opts.noFadeIn,
		},
		cli.BoolFlag{
			Name:        "immediate-render",
			Usage:       "draw the first frame without waiting for backgrounds",
			Destination: &opts.immediateRender,
		},
	}
	a.Action = func(c *cli.Context) error { return run(opts) }
	return a
}

func run(opts options) error {
	// Best-effort: keep panic stack traces even when the console is left in
	// graphics mode.
	if opts.stdioLog != "" {
		if err := system.RedirectStdIO(opts.stdioLog); err != nil {
			fmt.Fprintln(os.Stderr, "stdio log redirect error:", err)
		}
	}

	log, closeLog, err := logging.Setup(opts.logFile, opts.verbose, opts.quiet)
	defer closeLog()
	if err != nil {
		log.Errorf("main", "%v", err)
	}

	fs := afero.NewOsFs()
	layout, err := config.Resolve(fs, opts.configPath, log)
	if err != nil {
		return err
	}

	srvCfg, err := web.DefaultServerConfigFromEnv("")
	if err != nil {
		return err
	}
	if opts.listen != "" {
		srvCfg.ListenAddr = opts.listen
	}

	surface, err := render.OpenFBSurface(opts.fbPath, image.Pt(opts.width, opts.height), log)
	if err != nil {
		return fmt.Errorf("open framebuffer %s: %w", opts.fbPath, err)
	}
	outputID := opts.output
	if outputID == "" {
		outputID = filepath.Base(opts.fbPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(app.Options{
		Layout:          layout,
		Screens:         []app.Screen{{Output: render.Output{ID: outputID}, Surface: surface}},
		Fs:              fs,
		Logger:          log,
		User:            currentUser(),
		NoFadeIn:        opts.noFadeIn,
		ImmediateRender: opts.immediateRender,
		Commands:        system.CommandOutput{},
		Video:           video.NewProcessController(log),
		Screencopy:      surface,
		Console:         &system.Console{Logger: log},
	})
	if err != nil {
		_ = surface.Close()
		return err
	}

	if srvCfg.Enabled() {
		server := web.NewHTTPServer(srvCfg, a, log)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop()
	}

	system.StartExitOnKey(ctx, opts.exitKey, log, func() { a.Exit(nil) })

	log.Infof("main", "locking %s (%s)", outputID, version)
	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Infof("main", "interrupted")
		return nil
	}
	return err
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
