package imagefile

import (
	"fmt"
	"strings"
)

// Direction is the requested rotation.
type Direction int

const (
	Left  Direction = iota + 1 // 90° counter-clockwise
	Right                      // 90° clockwise
	Flip                       // 180°
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	case "f", "flip":
		return Flip, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (use l, r or f)", s)
	}
}

// Degrees is the equivalent clockwise rotation.
func (d Direction) Degrees() int {
	switch d {
	case Left:
		return 270
	case Right:
		return 90
	case Flip:
		return 180
	default:
		return 0
	}
}

// Short is the single-letter form accepted on the command line.
func (d Direction) Short() string {
	switch d {
	case Left:
		return "l"
	case Right:
		return "r"
	case Flip:
		return "f"
	default:
		return "?"
	}
}

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Flip:
		return "flip"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) Valid() bool {
	return d >= Left && d <= Flip
}
