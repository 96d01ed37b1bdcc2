package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mddudha/audiomind-app/internal/app"
	"github.com/mddudha/audiomind-app/internal/daemon"
	"github.com/mddudha/audiomind-app/internal/db"
	"github.com/mddudha/audiomind-app/internal/logging"
	"github.com/mddudha/audiomind-app/internal/mcpserver"
	"github.com/mddudha/audiomind-app/internal/segment"
	"github.com/mddudha/audiomind-app/internal/widget"

	tea "github.com/charmbracelet/bubbletea"
)

func runTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	// The terminal belongs to bubbletea, so logs only go to the file.
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.DataDir, "tui.log")
	}
	log, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: logFile})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	p := tea.NewProgram(app.New(cfg.SocketPath), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func runCtl(args []string) error {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "maximum number of sessions for the sessions command")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: audiomind ctl <start|stop|toggle|pause|resume|status|dismiss|sessions|transcript [id]|delete <id>|interrupt <began|ended>|route <reason>>")
	}

	cmd, err := buildCommand(fs.Arg(0), fs.Args()[1:])
	if err != nil {
		return err
	}
	if cmd.Cmd == daemon.CmdSessions && *limit > 0 {
		cmd.Limit = daemon.IntPtr(*limit)
	}

	client, err := daemon.Connect(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("%w (is the daemon running? start it with: audiomind daemon)", err)
	}
	defer client.Close()

	resp, err := client.Do(cmd)
	if err != nil {
		return err
	}

	if cmd.Cmd == daemon.CmdTranscript && resp.Transcript != nil {
		fmt.Println(*resp.Transcript)
		return nil
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// buildCommand maps ctl arguments onto a protocol command.
func buildCommand(name string, rest []string) (daemon.Command, error) {
	cmd := daemon.Command{Cmd: name}
	arg := func(what string) (string, error) {
		if len(rest) == 0 {
			return "", fmt.Errorf("%s needs %s", name, what)
		}
		return rest[0], nil
	}

	var err error
	switch name {
	case daemon.CmdStart, daemon.CmdStop, daemon.CmdToggle, daemon.CmdPause,
		daemon.CmdResume, daemon.CmdStatus, daemon.CmdDismiss, daemon.CmdSessions:
	case daemon.CmdTranscript:
		if len(rest) > 0 {
			cmd.SessionID = rest[0]
		}
	case daemon.CmdDelete:
		cmd.SessionID, err = arg("a session id")
	case daemon.CmdInterrupt:
		cmd.Phase, err = arg("a phase (began or ended)")
	case daemon.CmdRoute:
		cmd.Reason, err = arg("a reason")
	default:
		return daemon.Command{}, fmt.Errorf("unknown ctl command %q", name)
	}
	return cmd, err
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	log, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	store, err := db.OpenReadOnly(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("%w (no recordings yet? run audiomind daemon first)", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mcpserver.Serve(ctx, mcpserver.New(store, version), os.Stdin, os.Stdout)
}

func runWidget(args []string) error {
	fs := flag.NewFlagSet("widget", flag.ContinueOnError)
	once := fs.Bool("once", false, "print the current status and exit")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *once {
		st, err := widget.Read(cfg.StatusFile)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return widget.Watch(ctx, cfg.StatusFile, printStatus)
}

func printStatus(st widget.Status) {
	state := "○ idle"
	if st.IsRecording {
		state = "● recording"
	}
	updated := "never"
	if !st.UpdatedAt.IsZero() {
		updated = st.UpdatedAt.Local().Format(time.TimeOnly)
	}
	fmt.Printf("%-12s %3d sessions  (updated %s)\n", state, st.SessionCount, updated)
}

func runTranscribe(args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	raw := fs.Bool("raw", false, "submit the file as-is instead of converting it first")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: audiomind transcribe [-raw] <file.wav>")
	}
	src := fs.Arg(0)

	log, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := src
	if !*raw {
		dir, err := os.MkdirTemp("", "audiomind-transcribe-*")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		conv := newConverterFactory(cfg)(dir)
		path, err = conv.Convert(ctx, src)
		if err != nil {
			return err
		}
		log.Debug("converted input", slog.String("src", src), slog.String("dst", path))
	} else if _, err := segment.ReadWAV(src); err != nil {
		log.Warn("input is not a readable WAV file; submitting anyway", slog.Any("error", err))
	}

	text, err := newTranscriber(cfg, log).Submit(ctx, path)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
