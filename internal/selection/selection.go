package selection

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yegorkir/imgrotate/internal/tools"
)

const DefaultTimeout = 3 * time.Second

var (
	// ErrNoSelection means the file manager answered but nothing usable was
	// selected, or it did not answer in time.
	ErrNoSelection = errors.New("no file selected in the file manager")
	// ErrUnsupported means there is no way to ask the file manager on this
	// platform and none was configured.
	ErrUnsupported = errors.New("file manager selection is not supported here; set selection.command in the config")
)

// Selector returns the path of the file currently selected in the desktop
// file manager.
type Selector interface {
	Selected(ctx context.Context) (string, error)
}

// finderScript asks Finder for the first selected item as a POSIX path.
const finderScript = `tell application "Finder"
	set sel to selection
	if sel is {} then return ""
	return POSIX path of (item 1 of sel as alias)
end tell`

// CommandSelector runs a program whose first non-empty stdout line is the
// selected path.
type CommandSelector struct {
	Tool    tools.Tool
	Args    []string
	Timeout time.Duration
}

func (s *CommandSelector) Selected(ctx context.Context) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.Tool.Invoke(ctx, s.Args...)
	if err != nil {
		log.Debug().Err(err).Str("tool", s.Tool.Name()).Msg("Selection query failed")
		return "", fmt.Errorf("%w: %v", ErrNoSelection, err)
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %s did not answer within %s", ErrNoSelection, s.Tool.Name(), timeout)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: %s exited with status %d: %s",
			ErrNoSelection, s.Tool.Name(), res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	sc := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", ErrNoSelection
}

type unsupported struct{}

func (unsupported) Selected(context.Context) (string, error) { return "", ErrUnsupported }

// New builds the Selector for this platform. A non-empty command overrides
// the platform default; its first element is looked up on PATH.
func New(command []string, timeout time.Duration) Selector {
	if len(command) == 0 && runtime.GOOS == "darwin" {
		command = []string{"osascript", "-e", finderScript}
	}
	if len(command) == 0 {
		return unsupported{}
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		log.Debug().Err(err).Str("command", command[0]).Msg("Selection command not found")
		return unsupported{}
	}
	return &CommandSelector{
		Tool:    &tools.Command{Path: path},
		Args:    command[1:],
		Timeout: timeout,
	}
}
