package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a resolved install command. Tests substitute a recorder.
type Runner interface {
	Run(ctx context.Context, cmd InstallCommand) error
}

// execRunner shells out via os/exec, folding trailing output into the error
// for the report detail field.
type execRunner struct{}

// NewRunner returns the os/exec backed Runner.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, cmd InstallCommand) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)

	var output bytes.Buffer
	c.Stdout = &output
	c.Stderr = &output

	if err := c.Run(); err != nil {
		if tail := lastLine(output.String()); tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
