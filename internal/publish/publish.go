// Package publish runs a report-producing command and posts its output to a
// wiki page.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/phobologic/templan/internal/wiki"
)

// ScriptError reports a command that exited non-zero, along with everything
// it printed.
type ScriptError struct {
	Command string
	Status  int
	Stdout  string
	Stderr  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Status)
}

// Runner executes commands with an in-process POSIX shell interpreter.
type Runner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the command environment; nil means os.Environ().
	Env []string
}

// runAll expands to the command and its arguments exactly as given.
const runAll = `"$@"`

// Run executes name with args and returns its standard output.
func (r Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(runAll), name)
	if err != nil {
		return "", fmt.Errorf("parsing command: %w", err)
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}

	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.StdIO(nil, &stdout, &stderr),
		interp.Env(expand.ListEnviron(env...)),
		// "--" keeps arguments like "-v" from being read as shell options.
		interp.Params(append([]string{"--", name}, args...)...),
	}
	if r.Dir != "" {
		opts = append(opts, interp.Dir(r.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return "", fmt.Errorf("creating interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return "", &ScriptError{
				Command: name,
				Status:  int(status),
				Stdout:  stdout.String(),
				Stderr:  stderr.String(),
			}
		}
		return "", fmt.Errorf("running %s: %w", name, err)
	}
	return stdout.String(), nil
}

// Target is the wiki page a report replaces.
type Target struct {
	Space string
	Page  string
}

// Publish runs the command and, only if it succeeds, replaces the target
// page with its standard output.
func Publish(ctx context.Context, r Runner, s wiki.Session, t Target, name string, args ...string) error {
	out, err := r.Run(ctx, name, args...)
	if err != nil {
		return err
	}
	if err := s.ReplacePageContent(ctx, t.Space, t.Page, out); err != nil {
		return fmt.Errorf("posting to %s/%s: %w", t.Space, t.Page, err)
	}
	return nil
}
