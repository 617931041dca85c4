package main

import (
	"os"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/server"
)

func serveCmd(args []string) {
	addr := "127.0.0.1:9375"
	var simulated bool
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--addr requires a value")
			}
			addr = args[i]
		case "--simulated":
			simulated = true
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}

	eng := engineFor(simulated)
	stateDir, err := os.Getwd()
	if err != nil {
		stateDir = "."
	}
	reg, _ := buildToolStack(eng, stateDir)

	srv := server.New(server.Config{
		Addr:     addr,
		Engine:   eng,
		Registry: reg,
		StateDir: stateDir,
	})
	if err := srv.ListenAndServe(); err != nil {
		fail(exitFailure, "serve: %v", err)
	}
	os.Exit(exitOK)
}
