package xtb

import (
	"fmt"
	"strings"
)

// RunError reports a failed engine invocation: a non-zero exit, a timeout,
// or a run that finished without producing its expected output.
type RunError struct {
	Op     string   // "optimize", "metadyn" or "cregen"
	Args   []string // full argument list of the failed command
	Output string   // tail of the combined process output
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("xtb: %s failed: %v", e.Op, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// tail keeps the last n lines of process output for error reports.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
