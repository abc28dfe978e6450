package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/yegorkir/imgrotate/internal/fault"
	"github.com/yegorkir/imgrotate/internal/imagefile"
	"github.com/yegorkir/imgrotate/internal/rotate"
	"github.com/yegorkir/imgrotate/internal/selection"
)

// Rotator is the part of rotate.Executor the session needs.
type Rotator interface {
	Rotate(ctx context.Context, img *imagefile.Image, d imagefile.Direction) (*rotate.Result, error)
}

// Session is the interactive prompt: one request per line, failures are
// printed and the loop carries on.
type Session struct {
	rotator  Rotator
	selector selection.Selector
	in       io.Reader
	out      io.Writer
}

func New(rotator Rotator, selector selection.Selector, in io.Reader, out io.Writer) *Session {
	return &Session{rotator: rotator, selector: selector, in: in, out: out}
}

var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

// Run reads lines until an exit word, end of input or ctx is done. It returns
// the number of failed requests.
func (s *Session) Run(ctx context.Context) int {
	s.banner()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	failures := 0
	for {
		fmt.Fprint(s.out, ">> ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nGoodbye!")
			return failures
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return failures
		}

		line = strings.TrimSpace(line)
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(s.out, "Goodbye!")
			return failures
		}
		if line == "" {
			continue
		}

		if err := s.Handle(ctx, line); err != nil {
			failures++
		}
		fmt.Fprintln(s.out)
	}
}

// Handle processes one non-empty input line and prints the outcome.
func (s *Session) Handle(ctx context.Context, line string) error {
	rawPath, d, err := s.parse(ctx, line)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}

	img, err := imagefile.Resolve(rawPath)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}

	res, err := s.rotator.Rotate(ctx, img, d)
	if err != nil {
		Report(s.out, err)
		return err
	}
	Confirm(s.out, res)
	return nil
}

// parse splits "<path> <direction>" on the last space. A lone direction asks
// the file manager which file is selected.
func (s *Session) parse(ctx context.Context, line string) (string, imagefile.Direction, error) {
	fields := strings.Fields(line)
	d, err := imagefile.ParseDirection(fields[len(fields)-1])
	if err != nil {
		if len(fields) == 1 {
			return "", 0, fmt.Errorf("please provide <image_path> <direction>, e.g. /path/to/image.jpg r")
		}
		return "", 0, err
	}

	if len(fields) > 1 {
		idx := strings.LastIndexFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
		return strings.TrimSpace(line[:idx]), d, nil
	}

	if s.selector == nil {
		return "", 0, fmt.Errorf("no path given; please provide <image_path> <direction>")
	}
	path, err := s.selector.Selected(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("No file manager selection")
		return "", 0, fmt.Errorf("%v; please provide <image_path> <direction>", err)
	}
	fmt.Fprintf(s.out, "Using selected file: %s\n", path)
	return path, d, nil
}

func (s *Session) banner() {
	rule := strings.Repeat("=", 40)
	fmt.Fprintln(s.out, "Interactive Image Rotation Tool")
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out, "Enter: <image_path> <direction>")
	fmt.Fprintln(s.out, "   or: <direction> to rotate the file selected in the file manager")
	fmt.Fprintln(s.out, "Direction: l (left), r (right), f (flip)")
	fmt.Fprintln(s.out, "Type 'exit' or 'quit' to stop")
	fmt.Fprintln(s.out, rule)
	fmt.Fprintln(s.out)
}

// Confirm prints the success message for a rotation.
func Confirm(w io.Writer, res *rotate.Result) {
	fmt.Fprintf(w, "✓ Rotated %s (%s)\n", res.Image, res.Direction.Short())
	fmt.Fprintf(w, "  Original backed up to: %s (%s)\n", res.BackupPath, humanize.Bytes(uint64(res.BackupSize)))
}

// Report prints a failure, adding what the user needs to know for the kinds
// where the state on disk is not obvious.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	switch fault.KindOf(err) {
	case fault.ReplaceFailed:
		fmt.Fprintln(w, "  A backup was written but the original was NOT rotated.")
	case fault.ToolNotFound, fault.RotationFailed, fault.ValidationFailed:
		fmt.Fprintln(w, "  The original is unchanged; a backup copy was still written.")
	case fault.BackupDirUnavailable, fault.BackupFailed:
		fmt.Fprintln(w, "  Nothing was changed.")
	}
}
