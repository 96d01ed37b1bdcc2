// Command audiomind records microphone audio in fixed-length segments and
// transcribes each one through a remote service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mddudha/audiomind-app/internal/config"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "daemon":
		err = runDaemon(args)
	case "tui":
		err = runTUI(args)
	case "ctl":
		err = runCtl(args)
	case "mcp":
		err = runMCP(args)
	case "widget":
		err = runWidget(args)
	case "transcribe":
		err = runTranscribe(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: audiomind <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  daemon       Run the recorder and serve the control socket")
	fmt.Fprintln(os.Stderr, "  tui          Open the terminal interface")
	fmt.Fprintln(os.Stderr, "  ctl          Send one command to the daemon (start, stop, status, ...)")
	fmt.Fprintln(os.Stderr, "  mcp          Serve sessions and transcripts as MCP tools over stdio")
	fmt.Fprintln(os.Stderr, "  widget       Print the shared recording status as it changes")
	fmt.Fprintln(os.Stderr, "  transcribe   Convert and transcribe a single WAV file")
	fmt.Fprintln(os.Stderr, "  version      Print the version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Every command accepts -config <file>. Settings can also be given as")
	fmt.Fprintf(os.Stderr, "%s* environment variables.\n", config.EnvPrefix)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "audiomind: %v\n", err)
	os.Exit(1)
}

// parseFlags parses args with the shared -config flag and loads the
// configuration.
func parseFlags(fs *flag.FlagSet, args []string) (config.Config, error) {
	path := fs.String("config", "", "path to a YAML config file (default $"+config.EnvPrefix+"CONFIG)")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	return config.Load(*path)
}
