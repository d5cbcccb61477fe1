package potd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Fetcher retrieves the current Wikimedia picture-of-the-day URL. It is a
// thin single-method client to something external, in the shape of the
// teacher's tracker clients (pkg/tracker.HTTPTracker/UDPTracker): one
// exported method, no state beyond what it takes to reach the
// collaborator.
type Fetcher interface {
	Fetch(ctx context.Context) (url string, err error)
}

// PythonFetcher invokes a child process with no arguments and treats its
// trimmed stdout as the current picture-of-the-day URL, per spec §6.4.
type PythonFetcher struct {
	ScriptPath string
}

// Fetch runs the configured script and returns its trimmed stdout.
func (f *PythonFetcher) Fetch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "python3", f.ScriptPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf(
			"potd: run %q: %w (stderr: %s)",
			f.ScriptPath, err, strings.TrimSpace(stderr.String()),
		)
	}

	url := strings.TrimSpace(stdout.String())
	if url == "" {
		return "", fmt.Errorf("potd: %q produced no output", f.ScriptPath)
	}

	return url, nil
}
