package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

func inspectCmd(args []string) {
	var selector string
	var all, simulated bool
	timeout := 5 * time.Second
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--selector":
			i++
			if i >= len(args) {
				fail(exitInvalidArgs, "--selector requires a value")
			}
			selector = args[i]
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
		case "--all":
			all = true
		case "--simulated":
			simulated = true
		default:
			fail(exitInvalidArgs, "unknown flag %q", args[i])
		}
	}
	if selector == "" {
		fail(exitInvalidArgs, "--selector is required")
	}

	ctx, cancel := interruptContext()
	defer cancel()

	eng := engineFor(simulated)
	loc := uia.ParseLocator(eng, selector).WithTimeout(timeout)

	var els []*uia.Element
	var err error
	if all {
		els, err = loc.All(ctx, 0)
	} else {
		var el *uia.Element
		el, err = loc.First(ctx)
		if el != nil {
			els = []*uia.Element{el}
		}
	}
	if err != nil {
		switch uia.KindOf(err) {
		case uia.KindInvalidSelector:
			fail(exitInvalidArgs, "%v", err)
		case uia.KindElementNotFound:
			fail(exitFailure, "no element matched %q within %s", selector, timeout)
		}
		fail(exitFailure, "%v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tROLE\tNAME\tCLASS\tVISIBLE\tENABLED\tPID\n")
	for _, el := range els {
		a := el.Attributes()
		id, _ := el.ID()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\t%d\n",
			id, a.Role, a.Name, a.ClassName, a.Visible, a.Enabled, a.ProcessID)
	}
	_ = tw.Flush()
	os.Exit(exitOK)
}
