package sim

import "fmt"

// Orientation is the heading of a particle on the lattice.
// The four cardinal values index the rate grids in RatesManager;
// OrientationNone marks an empty cell.
type Orientation int8

const (
	Up Orientation = iota
	Left
	Down
	Right

	// OrientationNone marks a cell without a particle.
	OrientationNone Orientation = -1
)

// NumOrientations is the number of cardinal headings a particle can take.
const NumOrientations = 4

// Vector returns the unit displacement (dx, dy) for one forward hop.
// Screen coordinates: y grows downward, so Up is (0, -1).
func (o Orientation) Vector() (dx, dy int) {
	switch o {
	case Up:
		return 0, -1
	case Left:
		return -1, 0
	case Down:
		return 0, 1
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Opposite returns the heading after a 180-degree turn.
func (o Orientation) Opposite() Orientation {
	return (o + 2) % NumOrientations
}

// RotatedCW returns the heading after a quarter turn clockwise.
// The cycle Up -> Left -> Down -> Right is counterclockwise in screen
// coordinates, so clockwise steps backward through the enum.
func (o Orientation) RotatedCW() Orientation {
	return (o + NumOrientations - 1) % NumOrientations
}

// RotatedCCW returns the heading after a quarter turn counterclockwise.
func (o Orientation) RotatedCCW() Orientation {
	return (o + 1) % NumOrientations
}

// Dot returns the scalar product of the two headings' unit vectors:
// 1 if aligned, -1 if opposed, 0 if orthogonal.
func (o Orientation) Dot(other Orientation) float64 {
	dx1, dy1 := o.Vector()
	dx2, dy2 := other.Vector()
	return float64(dx1*dx2 + dy1*dy2)
}

// Valid reports whether o is one of the four cardinal headings.
func (o Orientation) Valid() bool {
	return o >= Up && o <= Right
}

func (o Orientation) String() string {
	switch o {
	case Up:
		return "↑"
	case Left:
		return "←"
	case Down:
		return "↓"
	case Right:
		return "→"
	case OrientationNone:
		return "·"
	}
	return fmt.Sprintf("Orientation(%d)", int8(o))
}

// ParseOrientation converts a CLI/preset token ("up", "left", "down",
// "right") into an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "up":
		return Up, nil
	case "left":
		return Left, nil
	case "down":
		return Down, nil
	case "right":
		return Right, nil
	}
	return OrientationNone, fmt.Errorf("unknown orientation %q (want up, left, down or right)", s)
}

// Orientations lists the four cardinal headings in enum order.
func Orientations() []Orientation {
	return []Orientation{Up, Left, Down, Right}
}
