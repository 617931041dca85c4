package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/recorder"
)

func recordCmd(args []string) {
	var name, output, performance string
	var durationSec int
	var highlightOn, simulated bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--name requires a value")
			}
			name = args[i]
		case "--output":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--output requires a value")
			}
			output = args[i]
		case "--performance":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--performance requires a value")
			}
			performance = args[i]
		case "--duration":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--duration requires seconds")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				fail(exitInvalidArgs, "--duration requires a positive integer, got %q", args[i])
			}
			durationSec = n
		case "--highlight":
			highlightOn = true
		case "--simulated":
			simulated = true
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}
	if name == "" {
		fail(exitInvalidArgs, "--name is required")
	}
	if output == "" {
		output = name + ".recording.json"
	}

	cfg := recorder.DefaultConfig()
	switch performance {
	case "", "normal":
	case "balanced":
		cfg = recorder.BalancedConfig()
	case "low_energy":
		cfg = recorder.LowEnergyConfig()
	default:
		fail(exitInvalidArgs, "unknown performance preset %q", performance)
	}
	cfg.EnableHighlighting = highlightOn

	eng := engineFor(simulated)
	rec := recorder.New(name, cfg, eng)
	if simulated {
		rec.AttachSource(recorder.NewSimSource())
	}

	ctx, cancel := interruptContext()
	defer cancel()

	if err := rec.Start(ctx); err != nil {
		fail(exitFailure, "start recording: %v", err)
	}
	fmt.Printf("recording %q (session %s); press Ctrl-C to stop\n", name, rec.SessionID())

	if durationSec > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(durationSec) * time.Second):
		}
	} else {
		<-ctx.Done()
	}

	if err := rec.Stop(); err != nil {
		fail(exitFailure, "stop recording: %v", err)
	}
	if err := rec.Save(output); err != nil {
		fail(exitFailure, "save recording: %v", err)
	}
	fmt.Printf("saved %d events to %s\n", rec.Workflow().Len(), output)
}
