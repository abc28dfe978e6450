package tools

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yegorkir/imgrotate/internal/fault"
	"github.com/yegorkir/imgrotate/internal/imagefile"
)

// Default program names looked up on PATH. ImageMagick 7 ships magick; 6
// only has convert, which takes the same arguments for a plain rotate.
var (
	DefaultJPEGTran = []string{"jpegtran"}
	DefaultMagick   = []string{"magick", "convert"}
)

// Toolchain finds the rotation program for each image kind on first use, so
// a missing PNG tool does not get in the way of rotating JPEGs.
type Toolchain struct {
	JPEGTran []string
	Magick   []string
	Timeout  time.Duration

	lookPath func(string) (string, error)
	resolved map[imagefile.Kind]Tool
}

// NewToolchain returns a Toolchain trying the given candidates in order. An
// empty candidate list uses the defaults.
func NewToolchain(jpegtran, magick []string, timeout time.Duration) *Toolchain {
	if len(jpegtran) == 0 {
		jpegtran = DefaultJPEGTran
	}
	if len(magick) == 0 {
		magick = DefaultMagick
	}
	return &Toolchain{
		JPEGTran: jpegtran,
		Magick:   magick,
		Timeout:  timeout,
		lookPath: exec.LookPath,
		resolved: make(map[imagefile.Kind]Tool),
	}
}

// For returns the tool that rotates images of the given kind.
func (tc *Toolchain) For(kind imagefile.Kind) (Tool, error) {
	if tool, ok := tc.resolved[kind]; ok {
		return tool, nil
	}

	var candidates []string
	switch kind {
	case imagefile.JPEG:
		candidates = tc.JPEGTran
	case imagefile.PNG:
		candidates = tc.Magick
	default:
		return nil, fault.New(fault.InvalidPath, "pick tool", "", fmt.Errorf("no tool for %s images", kind))
	}

	var lastErr error
	for _, name := range candidates {
		path, err := tc.lookPath(name)
		if err != nil {
			lastErr = err
			continue
		}
		tool := &Command{Path: path, Timeout: tc.Timeout}
		tc.resolved[kind] = tool
		return tool, nil
	}
	return nil, fault.New(fault.ToolNotFound, "look up", strings.Join(candidates, " or "),
		fmt.Errorf("install it or set its path in the config: %w", lastErr))
}

// Args builds the argument list that makes the tool for kind write a rotated
// copy of in to out.
func Args(kind imagefile.Kind, d imagefile.Direction, in, out string) ([]string, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %v", d)
	}
	switch kind {
	case imagefile.JPEG:
		return JPEGTranArgs(d, in, out), nil
	case imagefile.PNG:
		return MagickArgs(d, in, out), nil
	default:
		return nil, fmt.Errorf("no tool for %s images", kind)
	}
}

// JPEGTranArgs rotates losslessly, keeps all metadata markers and trims
// partial edge blocks that cannot be transformed losslessly.
func JPEGTranArgs(d imagefile.Direction, in, out string) []string {
	return []string{
		"-rotate", strconv.Itoa(d.Degrees()),
		"-copy", "all",
		"-trim",
		"-outfile", out,
		in,
	}
}

// MagickArgs uses ImageMagick's -rotate, where positive degrees turn
// clockwise, so left is 270.
func MagickArgs(d imagefile.Direction, in, out string) []string {
	return []string{
		in,
		"-rotate", strconv.Itoa(d.Degrees()),
		out,
	}
}
