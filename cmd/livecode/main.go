// Command livecode runs a drawing script, re-running it whenever the file
// changes while preserving the program's state.
//
// Usage:
//
//	livecode [-config livecode.yaml] [-log-level debug] [-print-frame] sketch.js
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/go-livecode"
	"github.com/joeycumines/go-livecode/internal/filewatch"
	"github.com/joeycumines/go-livecode/lint"
	"github.com/joeycumines/go-livecode/sketch"
	"github.com/joeycumines/go-livecode/watchdog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, `livecode:`, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	level, _ := parseLevel(cfg.LogLevel)
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var session *livecode.Session
	opts, err := sessionOptions(cfg, logger, func() *livecode.Session { return session })
	if err != nil {
		return err
	}
	if session, err = livecode.NewSession(opts...); err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() { errs <- session.Run(ctx) }()

	watcher := filewatch.New(cfg.File, filewatch.Options{
		Logger:   logger,
		Interval: cfg.Watch.Interval,
		Debounce: cfg.Watch.Debounce,
	})
	watchErr := watcher.OnChange(ctx, func(contents []byte) error {
		_, err := session.Update(ctx, string(contents))
		return err
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Shutdown(shutdownCtx); err != nil {
		logger.Warning().
			Err(err).
			Log(`shutdown failed`)
	}
	<-errs
	return watchErr
}

func parseFlags(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(`livecode`, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String(`config`, ``, `YAML configuration file`)
		logLevel   = fs.String(`log-level`, ``, `log level (err, warning, info, debug)`)
		printFrame = fs.Bool(`print-frame`, false, `log the display list after every run`)
		interval   = fs.Duration(`interval`, 0, `file polling interval`)
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if *configPath != `` {
		var err error
		if cfg, err = LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if fs.NArg() > 0 {
		cfg.File = fs.Arg(0)
	}
	if *logLevel != `` {
		cfg.LogLevel = *logLevel
	}
	if *printFrame {
		cfg.PrintFrame = true
	}
	if *interval > 0 {
		cfg.Watch.Interval = *interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sessionOptions(cfg *Config, logger *logiface.Logger[logiface.Event], session func() *livecode.Session) ([]livecode.Option, error) {
	sketchOpts := []sketch.Option{sketch.WithSize(cfg.Sketch.Width, cfg.Sketch.Height)}
	if cfg.Sketch.Seed != nil {
		sketchOpts = append(sketchOpts, sketch.WithSeed(*cfg.Sketch.Seed))
	}

	watchdogOpts := []watchdog.Option{
		watchdog.WithLogger(logger),
		watchdog.WithDecider(tripDecider(cfg.Watchdog, logger)),
	}
	if cfg.Watchdog.BaseDelay > 0 {
		watchdogOpts = append(watchdogOpts, watchdog.WithBaseDelay(cfg.Watchdog.BaseDelay))
	}
	wd, err := watchdog.New(watchdogOpts...)
	if err != nil {
		return nil, err
	}
	wd.SetEnabled(!cfg.Watchdog.Disabled)

	opts := []livecode.Option{
		livecode.WithLogger(logger),
		livecode.WithLinter(lint.Default),
		livecode.WithSketchOptions(sketchOpts...),
		livecode.WithWatchdog(wd),
		livecode.WithDelegate(delegate(cfg, logger, session)),
	}
	if cfg.MaxCallStackSize > 0 {
		opts = append(opts, livecode.WithMaxCallStackSize(cfg.MaxCallStackSize))
	}
	return opts, nil
}

// tripDecider answers watchdog trips per the configured policy.
func tripDecider(cfg WatchdogConfig, logger *logiface.Logger[logiface.Event]) watchdog.Decider {
	return watchdog.DeciderFunc(func(trip watchdog.Trip) watchdog.Decision {
		if cfg.OnTrip != OnTripContinue || (cfg.MaxStall > 0 && trip.Stalled >= cfg.MaxStall) {
			return watchdog.DecisionAbort
		}
		logger.Warning().
			Dur(`stalled`, trip.Stalled).
			Int(`trip`, trip.Count).
			Log(`script is still running`)
		return watchdog.DecisionContinue
	})
}

// delegate reports cycle outcomes to the log. It is called on the loop.
func delegate(cfg *Config, logger *logiface.Logger[logiface.Event], session func() *livecode.Session) livecode.Delegate {
	return livecode.DelegateFuncs{
		Lint: func(messages []lint.Message) {
			for _, message := range messages {
				logger.Warning().
					Str(`file`, cfg.File).
					Int(`line`, message.Line).
					Int(`column`, message.Column).
					Log(message.Message)
			}
		},
		Exception: func(err error) {
			logger.Err().
				Str(`file`, cfg.File).
				Err(err).
				Log(`exception`)
		},
		Success: func(ctx *livecode.Context) {
			b := logger.Info().
				Int(`cycle`, ctx.Cycle()).
				Str(`globals`, strings.Join(ctx.Names(), `,`))
			if cfg.PrintFrame {
				if s := session(); s != nil {
					b = b.Str(`frame`, formatFrame(s.Sketch().Frame()))
				}
			}
			b.Log(`run complete`)
		},
	}
}

func formatFrame(frame []sketch.Op) string {
	parts := make([]string, len(frame))
	for i, op := range frame {
		parts[i] = op.String()
	}
	return strings.Join(parts, `; `)
}
