package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/bridge"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/tools"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/workflow"
)

func runCmd(args []string) {
	var workflowPath string
	var startFrom, endAt string
	var simulated bool
	stopOnError := true
	inputs := map[string]any{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workflow":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--workflow requires a value")
			}
			workflowPath = args[i]
		case "--start-from-step":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--start-from-step requires a value")
			}
			startFrom = args[i]
		case "--end-at-step":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--end-at-step requires a value")
			}
			endAt = args[i]
		case "--input":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--input requires k=v")
			}
			k, v, ok := strings.Cut(args[i], "=")
			if !ok {
				fail(exitInvalidArgs, "--input requires k=v, got %q", args[i])
			}
			inputs[k] = v
		case "--no-stop-on-error":
			stopOnError = false
		case "--simulated":
			simulated = true
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}
	if workflowPath == "" {
		fail(exitInvalidArgs, "--workflow is required")
	}

	doc, err := workflow.Load(workflowPath)
	if err != nil {
		fail(exitValidation, "load workflow: %v", err)
	}

	eng := engineFor(simulated)
	reg, ex := buildToolStack(eng, filepath.Dir(workflowPath))
	if err := doc.Validate(reg); err != nil {
		fail(exitValidation, "validate workflow: %v", err)
	}

	ctx, cancel := interruptContext()
	defer cancel()

	res, err := ex.Execute(ctx, doc, workflow.Options{
		Inputs:        inputs,
		StartFromStep: startFrom,
		EndAtStep:     endAt,
		StopOnError:   stopOnError,
	})
	if err != nil {
		switch uia.KindOf(err) {
		case uia.KindParserError:
			fail(exitParserError, "run workflow: %v", err)
		case uia.KindInvalidArgument, uia.KindMissingStartState:
			fail(exitValidation, "run workflow: %v", err)
		}
		fail(exitFailure, "run workflow: %v", err)
	}

	printRunSummary(doc, res)
	switch res.Status {
	case workflow.StatusSuccess:
		os.Exit(exitOK)
	case workflow.StatusPartialSuccess:
		os.Exit(exitPartialSuccess)
	default:
		os.Exit(exitFailure)
	}
}

func printRunSummary(doc *workflow.Document, res *workflow.Result) {
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tTOOL\tSTATUS\tATTEMPTS\tDURATION\tERROR\n")
	for _, sr := range res.Results {
		errMsg := sr.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			sr.StepID, sr.ToolName, sr.Status, sr.Attempts, sr.DurationMS, errMsg)
	}
	_ = tw.Flush()
	fmt.Printf("\n%s: %s (%d/%d tools executed)\n", doc.Name, res.Status, res.ExecutedTools, res.TotalTools)
}

func validateCmd(args []string) {
	var workflowPath string
	var simulated bool
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workflow":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--workflow requires a value")
			}
			workflowPath = args[i]
		case "--simulated":
			simulated = true
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}
	if workflowPath == "" {
		fail(exitInvalidArgs, "--workflow is required")
	}

	doc, err := workflow.Load(workflowPath)
	if err != nil {
		fail(exitValidation, "%v", err)
	}
	reg, _ := buildToolStack(engineFor(simulated), filepath.Dir(workflowPath))
	if err := doc.Validate(reg); err != nil {
		fail(exitValidation, "%v", err)
	}
	fmt.Printf("%s: %d steps, OK\n", doc.Name, len(doc.Steps))
	os.Exit(exitOK)
}

// buildToolStack wires the registry, built-in tools, bridge, and executor
// the way the tool server does.
func buildToolStack(eng uia.Engine, stateDir string) (*tools.Registry, *workflow.Executor) {
	reg := tools.NewRegistry()
	ex := &workflow.Executor{Tools: reg, StateDir: stateDir}
	deps := tools.Deps{
		Engine:          eng,
		Bridge:          bridge.Global(),
		ExecuteSequence: workflow.SequenceHandler(ex),
	}
	if err := tools.RegisterBuiltins(reg, deps); err != nil {
		fail(exitFailure, "register tools: %v", err)
	}
	return reg, ex
}
