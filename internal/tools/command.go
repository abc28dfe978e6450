package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yegorkir/imgrotate/internal/fault"
)

// Result is what an external tool produced. A non-zero ExitCode is not an
// error from Invoke's point of view; callers decide what it means.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Tool is an external program. Invoke blocks until the program exits.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, args ...string) (*Result, error)
}

// ErrTimeout is returned by Command.Invoke when the program outlived its
// timeout and was killed.
var ErrTimeout = errors.New("tool timed out")

// Command runs a program found on disk. A zero Timeout means no limit beyond
// the caller's context.
type Command struct {
	Path    string
	Timeout time.Duration
}

var _ Tool = (*Command)(nil)

func (c *Command) Name() string { return filepath.Base(c.Path) }

func (c *Command) Invoke(ctx context.Context, args ...string) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log.Debug().
		Str("tool", c.Path).
		Strs("args", args).
		Dur("took", time.Since(start)).
		Msg("Tool finished")

	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: %w after %s", c.Name(), ErrTimeout, c.Timeout)
		}
		return res, fmt.Errorf("%s: %w", c.Name(), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, fault.New(fault.ToolNotFound, "run", c.Path, err)
	}
	return nil, fmt.Errorf("%s failed to start: %w", c.Name(), err)
}
