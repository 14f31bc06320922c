package clean

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"
)

// runCommand executes name with args in dir and returns its combined
// output. dir may be empty to inherit the current directory. Exit errors
// are translated into messages carrying a short output excerpt.
func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, handleExitError(ctx, name, err, output)
	}
	return output, nil
}

// handleExitError wraps an exec error with contextual information,
// preferring the context's own error when the run was cut short.
func handleExitError(ctx context.Context, name string, err error, output []byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		outputStr := strings.TrimSpace(string(output))
		if len(outputStr) > 200 {
			// Truncate at a valid UTF-8 boundary to avoid producing invalid strings.
			outputStr = outputStr[:200]
			for len(outputStr) > 0 && !utf8.ValidString(outputStr) {
				outputStr = outputStr[:len(outputStr)-1]
			}
			outputStr += "..."
		}
		if outputStr != "" {
			return fmt.Errorf("%s failed (exit code %d): %s", name, code, outputStr)
		}
		return fmt.Errorf("%s failed (exit code %d)", name, code)
	}

	return fmt.Errorf("%s: %w", name, err)
}

var (
	cargoProbeOnce sync.Once
	cargoProbeOK   bool
)

// CargoAvailable reports whether a cargo binary is resolvable on PATH.
// The lookup runs once per process.
func CargoAvailable() bool {
	cargoProbeOnce.Do(func() {
		_, err := exec.LookPath("cargo")
		cargoProbeOK = err == nil
	})
	return cargoProbeOK
}
