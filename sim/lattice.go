// Implements the ParticleLattice, the periodic 2D grid that holds all
// particles, obstacles and sinks. All particle bookkeeping (occupancy,
// identity tracking, boundary wrapping) lives here; event selection and
// rate bookkeeping live in rates.go.

package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Sentinel errors for lattice operations. Coordinate errors and cell-state
// errors are distinct so callers can tell a bad index from a bad move.
var (
	ErrOutOfBounds = errors.New("coordinates out of lattice bounds")
	ErrOccupied    = errors.New("cell is occupied")
	ErrObstacle    = errors.New("cell is an obstacle")
	ErrEmptyCell   = errors.New("cell is empty")
)

// HopOutcome describes what happened to a particle asked to hop.
type HopOutcome int

const (
	// HopMoved: the particle relocated to the target cell.
	HopMoved HopOutcome = iota
	// HopReflected: the target cell is an obstacle; the particle stayed in
	// place with its orientation reversed.
	HopReflected
	// HopAbsorbed: the target cell is a sink; the particle left the lattice.
	HopAbsorbed
	// HopBlocked: the target cell holds another particle; nothing changed.
	HopBlocked
)

func (h HopOutcome) String() string {
	switch h {
	case HopMoved:
		return "moved"
	case HopReflected:
		return "reflected"
	case HopAbsorbed:
		return "absorbed"
	case HopBlocked:
		return "blocked"
	}
	return fmt.Sprintf("HopOutcome(%d)", int(h))
}

// Move is the result of a hop or transport attempt.
type Move struct {
	Outcome HopOutcome
	// X, Y is the particle's position after the move. Meaningless when the
	// outcome is HopAbsorbed.
	X, Y int
}

// Region is an inclusive rectangle [X1,X2] x [Y1,Y2] of lattice cells.
type Region struct {
	X1, Y1, X2, Y2 int
}

// ParticleLattice is a periodic width x height grid of cells. Each cell
// holds at most one particle (volume exclusion) identified by its heading;
// cells may additionally be obstacles (impenetrable) or sinks (absorbing).
// Obstacle and sink cells never hold long-lived particles, except that a
// particle may sit on a sink for the instant before it is absorbed by a
// hop, matching the absorbing-boundary semantics of MoveParticle.
type ParticleLattice struct {
	Width  int
	Height int

	// cells is row-major: cells[y*Width+x].
	cells     []Orientation
	obstacles []bool
	sinks     []bool

	// Particle identity tracking. IDs are assigned in insertion order and
	// survive moves; absorbed particles are dropped from both maps.
	idToCell map[int]int
	cellToID map[int]int
	nextID   int
}

// NewParticleLattice creates an empty lattice. Width and height must be
// positive.
func NewParticleLattice(width, height int) (*ParticleLattice, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("lattice dimensions must be positive, got %dx%d", width, height)
	}
	l := &ParticleLattice{
		Width:     width,
		Height:    height,
		cells:     make([]Orientation, width*height),
		obstacles: make([]bool, width*height),
		sinks:     make([]bool, width*height),
		idToCell:  make(map[int]int),
		cellToID:  make(map[int]int),
	}
	for i := range l.cells {
		l.cells[i] = OrientationNone
	}
	return l, nil
}

func (l *ParticleLattice) index(x, y int) int { return y*l.Width + x }

func (l *ParticleLattice) checkBounds(x, y int) error {
	if x < 0 || x >= l.Width || y < 0 || y >= l.Height {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}
	return nil
}

// IsEmpty reports whether no particle occupies (x, y).
// Out-of-range coordinates report false.
func (l *ParticleLattice) IsEmpty(x, y int) bool {
	if l.checkBounds(x, y) != nil {
		return false
	}
	return l.cells[l.index(x, y)] == OrientationNone
}

// IsObstacle reports whether (x, y) is an obstacle cell.
func (l *ParticleLattice) IsObstacle(x, y int) bool {
	if l.checkBounds(x, y) != nil {
		return false
	}
	return l.obstacles[l.index(x, y)]
}

// IsSink reports whether (x, y) is a sink cell.
func (l *ParticleLattice) IsSink(x, y int) bool {
	if l.checkBounds(x, y) != nil {
		return false
	}
	return l.sinks[l.index(x, y)]
}

// TargetPosition returns the cell one hop from (x, y) along o, with
// periodic wrapping on both axes.
func (l *ParticleLattice) TargetPosition(x, y int, o Orientation) (int, int, error) {
	if err := l.checkBounds(x, y); err != nil {
		return 0, 0, err
	}
	dx, dy := o.Vector()
	nx := ((x+dx)%l.Width + l.Width) % l.Width
	ny := ((y+dy)%l.Height + l.Height) % l.Height
	return nx, ny, nil
}

// checkAvailable verifies (x, y) can receive a new particle, obstacle or sink.
func (l *ParticleLattice) checkAvailable(x, y int) error {
	if err := l.checkBounds(x, y); err != nil {
		return err
	}
	if l.obstacles[l.index(x, y)] {
		return fmt.Errorf("%w: (%d, %d)", ErrObstacle, x, y)
	}
	if !l.IsEmpty(x, y) {
		return fmt.Errorf("%w: (%d, %d)", ErrOccupied, x, y)
	}
	return nil
}

// checkOccupied verifies a particle is present at (x, y).
func (l *ParticleLattice) checkOccupied(x, y int) error {
	if err := l.checkBounds(x, y); err != nil {
		return err
	}
	if l.IsEmpty(x, y) {
		return fmt.Errorf("%w: (%d, %d)", ErrEmptyCell, x, y)
	}
	return nil
}

// AddParticle places a particle with heading o at (x, y). The cell must be
// in bounds, not an obstacle, and empty. Sinks accept particles: a particle
// placed on a sink simply has not been absorbed yet.
func (l *ParticleLattice) AddParticle(x, y int, o Orientation) error {
	if !o.Valid() {
		return fmt.Errorf("invalid orientation %d", int8(o))
	}
	if err := l.checkAvailable(x, y); err != nil {
		return err
	}
	idx := l.index(x, y)
	l.cells[idx] = o
	l.idToCell[l.nextID] = idx
	l.cellToID[idx] = l.nextID
	l.nextID++
	return nil
}

// AddRandomParticle places a particle with a heading drawn from rng.
func (l *ParticleLattice) AddRandomParticle(x, y int, rng *rand.Rand) error {
	return l.AddParticle(x, y, Orientation(rng.Intn(NumOrientations)))
}

// RemoveParticle clears the particle at (x, y).
func (l *ParticleLattice) RemoveParticle(x, y int) error {
	if err := l.checkBounds(x, y); err != nil {
		return err
	}
	idx := l.index(x, y)
	l.cells[idx] = OrientationNone
	if id, ok := l.cellToID[idx]; ok {
		delete(l.cellToID, idx)
		delete(l.idToCell, id)
	}
	return nil
}

// ParticleOrientation returns the heading of the particle at (x, y).
func (l *ParticleLattice) ParticleOrientation(x, y int) (Orientation, error) {
	if err := l.checkOccupied(x, y); err != nil {
		return OrientationNone, err
	}
	return l.cells[l.index(x, y)], nil
}

// ReorientParticle sets the heading of the particle at (x, y).
func (l *ParticleLattice) ReorientParticle(x, y int, o Orientation) error {
	if !o.Valid() {
		return fmt.Errorf("invalid orientation %d", int8(o))
	}
	if err := l.checkOccupied(x, y); err != nil {
		return err
	}
	l.cells[l.index(x, y)] = o
	return nil
}

// RotateParticle turns the particle at (x, y) a quarter turn.
func (l *ParticleLattice) RotateParticle(x, y int, cw bool) error {
	o, err := l.ParticleOrientation(x, y)
	if err != nil {
		return err
	}
	if cw {
		return l.ReorientParticle(x, y, o.RotatedCW())
	}
	return l.ReorientParticle(x, y, o.RotatedCCW())
}

// FlipParticle reverses the heading of the particle at (x, y).
func (l *ParticleLattice) FlipParticle(x, y int) error {
	o, err := l.ParticleOrientation(x, y)
	if err != nil {
		return err
	}
	return l.ReorientParticle(x, y, o.Opposite())
}

// MoveParticle hops the particle at (x, y) one cell forward along its own
// heading. An obstacle ahead reflects the particle in place (heading
// reversed); a sink ahead absorbs it; another particle ahead blocks it.
func (l *ParticleLattice) MoveParticle(x, y int) (Move, error) {
	o, err := l.ParticleOrientation(x, y)
	if err != nil {
		return Move{}, err
	}
	return l.hop(x, y, o, true)
}

// TransportParticle hops the particle at (x, y) one cell along dir without
// changing its heading. Used for advection by an external flow. An obstacle
// ahead leaves the particle untouched (no reflection: the flow, not the
// particle, chose the direction).
func (l *ParticleLattice) TransportParticle(x, y int, dir Orientation) (Move, error) {
	if !dir.Valid() {
		return Move{}, fmt.Errorf("invalid orientation %d", int8(dir))
	}
	if err := l.checkOccupied(x, y); err != nil {
		return Move{}, err
	}
	return l.hop(x, y, dir, false)
}

func (l *ParticleLattice) hop(x, y int, dir Orientation, reflect bool) (Move, error) {
	nx, ny, err := l.TargetPosition(x, y, dir)
	if err != nil {
		return Move{}, err
	}
	if l.IsObstacle(nx, ny) {
		if reflect {
			if err := l.FlipParticle(x, y); err != nil {
				return Move{}, err
			}
			return Move{Outcome: HopReflected, X: x, Y: y}, nil
		}
		return Move{Outcome: HopBlocked, X: x, Y: y}, nil
	}
	if !l.IsEmpty(nx, ny) {
		return Move{Outcome: HopBlocked, X: x, Y: y}, nil
	}

	srcIdx, dstIdx := l.index(x, y), l.index(nx, ny)
	if l.IsSink(nx, ny) {
		l.cells[srcIdx] = OrientationNone
		if id, ok := l.cellToID[srcIdx]; ok {
			delete(l.cellToID, srcIdx)
			delete(l.idToCell, id)
		}
		return Move{Outcome: HopAbsorbed}, nil
	}

	l.cells[dstIdx] = l.cells[srcIdx]
	l.cells[srcIdx] = OrientationNone
	if id, ok := l.cellToID[srcIdx]; ok {
		delete(l.cellToID, srcIdx)
		l.cellToID[dstIdx] = id
		l.idToCell[id] = dstIdx
	}
	return Move{Outcome: HopMoved, X: nx, Y: ny}, nil
}

// SetObstacle marks (x, y) as an obstacle. The cell must be empty and not
// already special.
func (l *ParticleLattice) SetObstacle(x, y int) error {
	if err := l.checkAvailable(x, y); err != nil {
		return err
	}
	if l.sinks[l.index(x, y)] {
		return fmt.Errorf("cell (%d, %d) is already a sink", x, y)
	}
	l.obstacles[l.index(x, y)] = true
	return nil
}

// SetSink marks (x, y) as a sink. The cell must be empty and not already
// special.
func (l *ParticleLattice) SetSink(x, y int) error {
	if err := l.checkAvailable(x, y); err != nil {
		return err
	}
	l.sinks[l.index(x, y)] = true
	return nil
}

// SetObstacleRow marks the whole row y as obstacles. Channel geometries
// (top and bottom walls) are built from this.
func (l *ParticleLattice) SetObstacleRow(y int) error {
	for x := 0; x < l.Width; x++ {
		if err := l.SetObstacle(x, y); err != nil {
			return err
		}
	}
	return nil
}

// SetSinkColumn marks the column x as sinks, skipping obstacle cells so a
// sink outlet can share a column with channel walls.
func (l *ParticleLattice) SetSinkColumn(x int) error {
	if err := l.checkBounds(x, 0); err != nil {
		return err
	}
	for y := 0; y < l.Height; y++ {
		if l.IsObstacle(x, y) {
			continue
		}
		if err := l.SetSink(x, y); err != nil {
			return err
		}
	}
	return nil
}

// Populate fills a fraction of the non-obstacle cells with randomly
// oriented particles at distinct random sites. Returns the number added.
func (l *ParticleLattice) Populate(density float64, rng *rand.Rand) (int, error) {
	if density < 0 || density > 1 {
		return 0, fmt.Errorf("density must be in [0, 1], got %v", density)
	}
	free := l.freeCells(Region{X1: 0, Y1: 0, X2: l.Width - 1, Y2: l.Height - 1})
	capacity := l.Width*l.Height - l.obstacleCount()
	n := int(density * float64(capacity))
	if n > len(free) {
		n = len(free)
	}
	perm := rng.Perm(len(free))
	for i := 0; i < n; i++ {
		idx := free[perm[i]]
		x, y := idx%l.Width, idx/l.Width
		if err := l.AddRandomParticle(x, y, rng); err != nil {
			return i, err
		}
	}
	return n, nil
}

// AddFlux adds n particles with heading o at random free sites of the
// region. A non-cardinal o means each particle draws a random heading.
// Fails when the region cannot host n more particles.
func (l *ParticleLattice) AddFlux(region Region, o Orientation, n int, rng *rand.Rand) (int, error) {
	if region.X1 < 0 || region.Y1 < 0 || region.X2 >= l.Width || region.Y2 >= l.Height ||
		region.X1 > region.X2 || region.Y1 > region.Y2 {
		return 0, fmt.Errorf("%w: region (%d,%d)-(%d,%d)", ErrOutOfBounds, region.X1, region.Y1, region.X2, region.Y2)
	}
	free := l.freeCells(region)
	if n > len(free) {
		return 0, fmt.Errorf("region holds only %d free cells, cannot add %d particles", len(free), n)
	}
	perm := rng.Perm(len(free))
	for i := 0; i < n; i++ {
		idx := free[perm[i]]
		x, y := idx%l.Width, idx/l.Width
		var err error
		if o.Valid() {
			err = l.AddParticle(x, y, o)
		} else {
			err = l.AddRandomParticle(x, y, rng)
		}
		if err != nil {
			return i, err
		}
	}
	return n, nil
}

// freeCells lists cell indices inside region that are empty and not obstacles.
func (l *ParticleLattice) freeCells(region Region) []int {
	var free []int
	for y := region.Y1; y <= region.Y2; y++ {
		for x := region.X1; x <= region.X2; x++ {
			idx := l.index(x, y)
			if !l.obstacles[idx] && l.cells[idx] == OrientationNone {
				free = append(free, idx)
			}
		}
	}
	return free
}

func (l *ParticleLattice) obstacleCount() int {
	n := 0
	for _, ob := range l.obstacles {
		if ob {
			n++
		}
	}
	return n
}

// ParticleCount returns the number of particles currently on the lattice.
func (l *ParticleLattice) ParticleCount() int {
	return len(l.idToCell)
}

// Density returns the occupied fraction of non-obstacle cells.
func (l *ParticleLattice) Density() float64 {
	capacity := l.Width*l.Height - l.obstacleCount()
	if capacity == 0 {
		return 0
	}
	return float64(l.ParticleCount()) / float64(capacity)
}

// Shape returns (width, height).
func (l *ParticleLattice) Shape() (int, int) {
	return l.Width, l.Height
}

// String renders the lattice as a glyph grid: particle headings as arrows,
// ■ obstacles, ▼ sinks, ✱ a particle sitting on a sink, · empty cells.
func (l *ParticleLattice) String() string {
	var sb strings.Builder
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			idx := l.index(x, y)
			switch {
			case l.obstacles[idx]:
				sb.WriteString("■")
			case l.sinks[idx] && l.cells[idx] != OrientationNone:
				sb.WriteString("✱")
			case l.sinks[idx]:
				sb.WriteString("▼")
			default:
				sb.WriteString(l.cells[idx].String())
			}
			if x < l.Width-1 {
				sb.WriteString(" ")
			}
		}
		if y < l.Height-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
