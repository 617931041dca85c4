package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/uiatest"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/version"
)

// Exit codes reported to callers.
const (
	exitOK             = 0
	exitFailure        = 1
	exitPartialSuccess = 2
	exitInvalidArgs    = 3
	exitValidation     = 4
	exitParserError    = 5
)

// interruptContext is the root context for a subcommand; Ctrl-C or a
// termination signal cancels it, and in-flight locators, steps, and
// recordings wind down through their own cancellation paths.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitInvalidArgs)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("terminator %s\n", version.Version)
		os.Exit(exitOK)
	case "run":
		runCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "record":
		recordCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "eval":
		evalCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	default:
		usage()
		os.Exit(exitInvalidArgs)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  terminator --version")
	fmt.Fprintln(os.Stderr, "  terminator run --workflow <file.yaml> [--input k=v]... [--start-from-step <id>] [--end-at-step <id>] [--no-stop-on-error] [--simulated]")
	fmt.Fprintln(os.Stderr, "  terminator validate --workflow <file.yaml>")
	fmt.Fprintln(os.Stderr, "  terminator record --name <name> [--duration <seconds>] [--output <file.json>] [--performance normal|balanced|low_energy] [--highlight]")
	fmt.Fprintln(os.Stderr, "  terminator serve [--addr <host:port>] [--simulated]")
	fmt.Fprintln(os.Stderr, "  terminator eval --code <js> [--timeout-ms <ms>]")
	fmt.Fprintln(os.Stderr, "  terminator inspect --selector <expr> [--timeout-ms <ms>] [--all] [--simulated]")
}

// engineFor picks the live platform backend or the simulated in-memory tree.
func engineFor(simulated bool) uia.Engine {
	if simulated {
		return uiatest.NewEngine(
			uiatest.N("Window", "Calculator",
				uiatest.N("Group", "Display",
					uiatest.N("Edit", "Expression").WithNativeID("CalculatorResults"),
				),
				uiatest.N("Group", "NumberPad",
					uiatest.N("Button", "One"),
					uiatest.N("Button", "Two"),
					uiatest.N("Button", "Plus"),
					uiatest.N("Button", "Equals"),
				),
			).WithPID(1001),
			uiatest.N("Window", "Notepad",
				uiatest.N("Edit", "Text editor").WithFocusable(),
			).WithPID(1002),
		)
	}
	return uia.NewPlatformEngine()
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
