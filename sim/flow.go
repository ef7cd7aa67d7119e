// External flow acting on the particles: a velocity field that advects
// particles downstream and a vorticity field that rotates them. The flow
// contributes additive terms to the event rate grids in rates.go.

package sim

import (
	"fmt"
	"math"
)

// Flow holds a stationary velocity field (vx, vy per cell) and the derived
// vorticity magnitude and rotation sense. Screen coordinates: vx > 0 pushes
// Right, vy > 0 pushes Down.
type Flow struct {
	Width  int
	Height int

	vx   []float64
	vy   []float64
	vort []float64 // |omega| per cell
	ccw  []bool    // rotation sense per cell
}

// NewFlow creates a zero flow of the given shape.
func NewFlow(width, height int) (*Flow, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("flow dimensions must be positive, got %dx%d", width, height)
	}
	n := width * height
	return &Flow{
		Width:  width,
		Height: height,
		vx:     make([]float64, n),
		vy:     make([]float64, n),
		vort:   make([]float64, n),
		ccw:    make([]bool, n),
	}, nil
}

func (f *Flow) index(x, y int) int { return y*f.Width + x }

// SetVelocity sets the velocity vector at (x, y).
func (f *Flow) SetVelocity(x, y int, vx, vy float64) {
	f.vx[f.index(x, y)] = vx
	f.vy[f.index(x, y)] = vy
}

// SetVorticity sets the signed vorticity at (x, y). Positive values rotate
// particles counterclockwise.
func (f *Flow) SetVorticity(x, y int, omega float64) {
	f.vort[f.index(x, y)] = math.Abs(omega)
	f.ccw[f.index(x, y)] = omega > 0
}

// VelocityAt returns the velocity vector at (x, y).
func (f *Flow) VelocityAt(x, y int) (vx, vy float64) {
	return f.vx[f.index(x, y)], f.vy[f.index(x, y)]
}

// MigrationRate returns the advection rate for transporting a particle at
// (x, y) one cell along dir: the positive part of the velocity component
// in that direction. Occupancy gating (the target cell must be free) is the
// rates manager's job.
func (f *Flow) MigrationRate(x, y int, dir Orientation) float64 {
	vx, vy := f.VelocityAt(x, y)
	switch dir {
	case Right:
		return math.Max(vx, 0)
	case Left:
		return math.Max(-vx, 0)
	case Down:
		return math.Max(vy, 0)
	case Up:
		return math.Max(-vy, 0)
	}
	return 0
}

// ReorientationRate returns the rotation rate half the local vorticity
// magnitude and the sense of rotation at (x, y).
func (f *Flow) ReorientationRate(x, y int) (rate float64, ccw bool) {
	idx := f.index(x, y)
	return 0.5 * f.vort[idx], f.ccw[idx]
}

// NewPoiseuilleFlow builds the parabolic channel profile: vx = v1*(1 - yy^2)
// with yy spanning slightly past [-1, 1] so the velocity vanishes at the
// wall rows, and shear vorticity omega = 2*v1*yy. Requires height >= 3.
func NewPoiseuilleFlow(width, height int, v1 float64) (*Flow, error) {
	if height < 3 {
		return nil, fmt.Errorf("poiseuille flow needs height >= 3, got %d", height)
	}
	f, err := NewFlow(width, height)
	if err != nil {
		return nil, err
	}
	span := 1.0 + 1.0/float64(height-2)
	for y := 0; y < height; y++ {
		// yy runs from +span at the top row to -span at the bottom row.
		yy := span - 2*span*float64(y)/float64(height-1)
		vx := v1 * (1 - yy*yy)
		omega := 2 * v1 * yy
		for x := 0; x < width; x++ {
			f.SetVelocity(x, y, vx, 0)
			f.SetVorticity(x, y, omega)
		}
	}
	return f, nil
}
