package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mddudha/audiomind-app/internal/capture"
	"github.com/mddudha/audiomind-app/internal/capture/mic"
	"github.com/mddudha/audiomind-app/internal/capture/wavsource"
	"github.com/mddudha/audiomind-app/internal/config"
	"github.com/mddudha/audiomind-app/internal/daemon"
	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/logging"
	"github.com/mddudha/audiomind-app/internal/recorder"
	"github.com/mddudha/audiomind-app/internal/segment"
	"github.com/mddudha/audiomind-app/internal/transcribe"
	"github.com/mddudha/audiomind-app/internal/widget"
)

func runDaemon(args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: os.Stderr,
	})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	// Recovery below would close the sessions of a live daemon.
	if c, err := daemon.Connect(cfg.SocketPath); err == nil {
		c.Close()
		return fmt.Errorf("%w on %s", daemon.ErrAlreadyRunning, cfg.SocketPath)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if n, err := store.RecoverInterrupted(time.Now()); err != nil {
		log.Warn("recover interrupted sessions", slog.Any("error", err))
	} else if n > 0 {
		log.Info("closed sessions left active by a previous run", slog.Int("count", n))
	}

	rec, err := recorder.New(recorder.Options{
		Engine:          newEngine(cfg),
		Store:           store,
		Transcriber:     newTranscriber(cfg, log),
		Converter:       newConverterFactory(cfg),
		Status:          widget.NewStatusFile(cfg.StatusFile),
		DataDir:         cfg.DataDir,
		SegmentDuration: cfg.SegmentDuration,
		LevelInterval:   cfg.LevelInterval,
		RoutePolicy:     recorder.RoutePolicy(cfg.RouteLossPolicy),
		Logger:          log.With(slog.String("component", "recorder")),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- rec.Run(ctx) }()

	log.Info("audiomind daemon starting",
		slog.String("version", version),
		slog.String("engine", cfg.Engine),
		slog.String("endpoint", cfg.Endpoint),
		slog.Duration("segment", cfg.SegmentDuration),
	)

	srv := daemon.NewServer(cfg.SocketPath, rec, store, log.With(slog.String("component", "daemon")))
	serveErr := srv.Serve(ctx)

	// Serve only returns early on failure; either way the recorder drains.
	cancel()
	log.Info("waiting for in-flight transcriptions")
	if err := <-runErr; err != nil && serveErr == nil {
		serveErr = err
	}
	log.Info("audiomind daemon stopped")
	return serveErr
}

func newEngine(cfg config.Config) capture.Engine {
	if cfg.Engine == "wav" {
		return wavsource.New(cfg.WAVInput, cfg.FramesPerBuffer)
	}
	return mic.New(cfg.FramesPerBuffer, 0)
}

func newTranscriber(cfg config.Config, log *slog.Logger) *transcribe.Client {
	return transcribe.New(cfg.Endpoint,
		transcribe.WithModel(cfg.Model),
		transcribe.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		transcribe.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		transcribe.WithLogger(log.With(slog.String("component", "transcribe"))),
	)
}

func newConverterFactory(cfg config.Config) recorder.ConverterFactory {
	if cfg.Converter == "ffmpeg" {
		return func(dir string) segment.Converter {
			return &segment.FFmpegConverter{Binary: cfg.FFmpegPath, Dir: dir, SampleRate: cfg.ConvertSampleRate}
		}
	}
	return func(dir string) segment.Converter {
		return &segment.NativeConverter{Dir: dir, SampleRate: cfg.ConvertSampleRate}
	}
}
