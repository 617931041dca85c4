package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/bridge"
)

func evalCmd(args []string) {
	var code string
	timeout := 5 * time.Second
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--code":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--code requires a value")
			}
			code = args[i]
		case "--timeout-ms":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--timeout-ms requires a value")
			}
			ms, err := strconv.Atoi(args[i])
			if err != nil || ms <= 0 {
				fail(exitInvalidArgs, "--timeout-ms requires a positive integer, got %q", args[i])
			}
			timeout = time.Duration(ms) * time.Millisecond
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}
	if code == "" {
		fail(exitInvalidArgs, "--code is required")
	}

	ctx, cancel := interruptContext()
	defer cancel()

	b := bridge.Global()
	if !b.IsClientConnected() {
		// Give a freshly-installed extension a moment to attach.
		time.Sleep(500 * time.Millisecond)
	}
	result, ok, err := b.EvalInActiveTab(ctx, code, timeout)
	if err != nil {
		fail(exitFailure, "eval: %v", err)
	}
	if !ok {
		fmt.Println("(no result: no extension client answered in time)")
		os.Exit(exitOK)
	}
	fmt.Println(result)
	os.Exit(exitOK)
}
