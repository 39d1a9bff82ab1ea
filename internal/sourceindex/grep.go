package sourceindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Grep shells out to grep -r. Binary is the executable name; empty means "grep".
type Grep struct {
	Binary string
}

// CommandError reports a search process that failed rather than found nothing.
type CommandError struct {
	Command string
	Status  int
	Stderr  string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Status)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Status, msg)
}

// Search implements Index. Patterns are passed to grep as extended regular
// expressions so they read the same as for Walk.
func (g Grep) Search(ctx context.Context, pattern, root string) ([]string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "grep"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-r", "-I", "-E", "-e", pattern, root)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// grep exits 1 when nothing matched.
			if exitErr.ExitCode() == 1 {
				return nil, nil
			}
			return nil, &CommandError{
				Command: bin + " -r " + pattern,
				Status:  exitErr.ExitCode(),
				Stderr:  stderr.String(),
			}
		}
		return nil, fmt.Errorf("running %s: %w", bin, err)
	}

	return splitLines(stdout.String()), nil
}

func splitLines(out string) []string {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}
