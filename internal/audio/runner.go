package audio

import (
	"context"
	"os/exec"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

func tail(output []byte) string {
	const limit = 512
	if len(output) > limit {
		output = output[len(output)-limit:]
	}
	return string(output)
}
