// The rates manager computes, per lattice site, the rate of every kinetic
// move: alignment-driven reorientations (flip, quarter turns), self-propelled
// forward hops and, when a flow is attached, advection and flow-driven
// rotation. rates.go owns the Gillespie bookkeeping; the lattice stays a
// plain grid.

package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Rate grid indices. Advection keeps one grid per transport direction.
const (
	gridFlip = iota
	gridRotateCW
	gridRotateCCW
	gridHop
	gridAdvectBase

	numRateGrids = gridAdvectBase + NumOrientations
)

// gridEvent maps a rate grid to the event it fires.
func gridEvent(grid int) (EventType, Orientation) {
	switch grid {
	case gridFlip:
		return EventFlip, OrientationNone
	case gridRotateCW:
		return EventRotateCW, OrientationNone
	case gridRotateCCW:
		return EventRotateCCW, OrientationNone
	case gridHop:
		return EventHop, OrientationNone
	}
	return EventAdvect, Orientation(grid - gridAdvectBase)
}

// RatesManager maintains the per-site event rates for a lattice.
//
// The alignment field F(site) is the vector sum of the four periodic
// neighbors' headings; the site energy is E = -F.sigma. Reorientation
// moves fire at exp(-g * dE) with dE the energy change of the move, hops
// fire at v0 into any non-occupied forward cell (an obstacle ahead still
// fires and reflects), and flow terms add advection and shear rotation.
type RatesManager struct {
	lattice *ParticleLattice
	flow    *Flow

	// g is the alignment coupling, v0 the self-propulsion rate.
	g  float64
	v0 float64

	fx       []float64
	fy       []float64
	energies []float64

	grids [numRateGrids][]float64
	sums  [numRateGrids]float64
	total float64
}

// NewRatesManager creates a rates manager for the lattice and computes the
// initial rates.
func NewRatesManager(lattice *ParticleLattice, g, v0 float64) *RatesManager {
	n := lattice.Width * lattice.Height
	rm := &RatesManager{
		lattice:  lattice,
		g:        g,
		v0:       v0,
		fx:       make([]float64, n),
		fy:       make([]float64, n),
		energies: make([]float64, n),
	}
	for i := range rm.grids {
		rm.grids[i] = make([]float64, n)
	}
	rm.Update()
	return rm
}

// AttachFlow couples a flow field to the rates. The flow shape must match
// the lattice.
func (rm *RatesManager) AttachFlow(f *Flow) {
	rm.flow = f
	rm.Update()
}

// Update recomputes every rate grid from the current lattice state. Called
// after each applied event; a full sweep keeps the rates exact without
// incremental-update bookkeeping.
func (rm *RatesManager) Update() {
	rm.computeAlignmentField()
	rm.computeEnergies()
	rm.computeRates()
	for i := range rm.grids {
		rm.sums[i] = floats.Sum(rm.grids[i])
	}
	rm.total = 0
	for _, s := range rm.sums {
		rm.total += s
	}
}

// computeAlignmentField accumulates each particle's heading vector onto its
// four periodic neighbors.
func (rm *RatesManager) computeAlignmentField() {
	l := rm.lattice
	for i := range rm.fx {
		rm.fx[i] = 0
		rm.fy[i] = 0
	}
	for idx, o := range l.cells {
		if o == OrientationNone {
			continue
		}
		x, y := idx%l.Width, idx/l.Width
		sx, sy := o.Vector()
		for _, dir := range Orientations() {
			nx, ny, _ := l.TargetPosition(x, y, dir)
			nIdx := l.index(nx, ny)
			rm.fx[nIdx] += float64(sx)
			rm.fy[nIdx] += float64(sy)
		}
	}
}

// computeEnergies fills the per-site energy E = -F.sigma (0 on empty cells).
func (rm *RatesManager) computeEnergies() {
	l := rm.lattice
	for idx, o := range l.cells {
		if o == OrientationNone {
			rm.energies[idx] = 0
			continue
		}
		sx, sy := o.Vector()
		rm.energies[idx] = -(rm.fx[idx]*float64(sx) + rm.fy[idx]*float64(sy))
	}
}

func (rm *RatesManager) computeRates() {
	l := rm.lattice
	for i := range rm.grids {
		for j := range rm.grids[i] {
			rm.grids[i][j] = 0
		}
	}

	for idx, o := range l.cells {
		if o == OrientationNone {
			continue
		}
		x, y := idx%l.Width, idx/l.Width
		e := rm.energies[idx]

		// Flip: sigma -> -sigma, so E' = -E and dE = -2E.
		rm.grids[gridFlip][idx] = math.Exp(-rm.g * (-2 * e))

		// Quarter turns: dE from the rotated heading's energy.
		rm.grids[gridRotateCW][idx] = math.Exp(-rm.g * (rm.orientationEnergy(idx, o.RotatedCW()) - e))
		rm.grids[gridRotateCCW][idx] = math.Exp(-rm.g * (rm.orientationEnergy(idx, o.RotatedCCW()) - e))

		// Hop: v0 unless another particle blocks the forward cell. An
		// obstacle ahead keeps the rate (the hop resolves as a reflection),
		// a sink ahead keeps it too (the hop resolves as absorption).
		nx, ny, _ := l.TargetPosition(x, y, o)
		if l.IsObstacle(nx, ny) || l.IsEmpty(nx, ny) {
			rm.grids[gridHop][idx] = rm.v0
		}

		if rm.flow != nil {
			rm.addFlowRates(idx, x, y)
		}
	}
}

// orientationEnergy is the energy the particle at cell idx would have with
// heading o.
func (rm *RatesManager) orientationEnergy(idx int, o Orientation) float64 {
	sx, sy := o.Vector()
	return -(rm.fx[idx]*float64(sx) + rm.fy[idx]*float64(sy))
}

// addFlowRates folds the flow's advection and shear-rotation terms into the
// grids for the occupied cell (x, y).
func (rm *RatesManager) addFlowRates(idx, x, y int) {
	l := rm.lattice
	for _, dir := range Orientations() {
		rate := rm.flow.MigrationRate(x, y, dir)
		if rate <= 0 {
			continue
		}
		// Advection only carries particles into free cells; an obstacle or
		// another particle downstream stalls it.
		nx, ny, _ := l.TargetPosition(x, y, dir)
		if l.IsObstacle(nx, ny) || !l.IsEmpty(nx, ny) {
			continue
		}
		rm.grids[gridAdvectBase+int(dir)][idx] = rate
	}

	rate, ccw := rm.flow.ReorientationRate(x, y)
	if rate > 0 {
		if ccw {
			rm.grids[gridRotateCCW][idx] += rate
		} else {
			rm.grids[gridRotateCW][idx] += rate
		}
	}
}

// TotalRate returns the sum of all event rates on the lattice.
func (rm *RatesManager) TotalRate() float64 {
	return rm.total
}

// TypeRate returns the summed rate of one event type across the lattice.
func (rm *RatesManager) TypeRate(t EventType) float64 {
	switch t {
	case EventFlip:
		return rm.sums[gridFlip]
	case EventRotateCW:
		return rm.sums[gridRotateCW]
	case EventRotateCCW:
		return rm.sums[gridRotateCCW]
	case EventHop:
		return rm.sums[gridHop]
	case EventAdvect:
		var s float64
		for d := 0; d < NumOrientations; d++ {
			s += rm.sums[gridAdvectBase+d]
		}
		return s
	}
	return 0
}

// RateAt returns the rate of one event type at a single site. Advection
// queries take the direction; other types ignore it.
func (rm *RatesManager) RateAt(t EventType, x, y int, dir Orientation) float64 {
	if rm.lattice.checkBounds(x, y) != nil {
		return 0
	}
	idx := rm.lattice.index(x, y)
	switch t {
	case EventFlip:
		return rm.grids[gridFlip][idx]
	case EventRotateCW:
		return rm.grids[gridRotateCW][idx]
	case EventRotateCCW:
		return rm.grids[gridRotateCCW][idx]
	case EventHop:
		return rm.grids[gridHop][idx]
	case EventAdvect:
		if !dir.Valid() {
			return 0
		}
		return rm.grids[gridAdvectBase+int(dir)][idx]
	}
	return 0
}

// TotalEnergy returns the summed site energy of the lattice.
func (rm *RatesManager) TotalEnergy() float64 {
	return floats.Sum(rm.energies)
}

// sample maps u in [0, 1) onto a (grid, cell) pair with probability
// proportional to the cell's rate. Returns ok=false when the total rate is
// zero.
func (rm *RatesManager) sample(u float64) (grid, cell int, ok bool) {
	if rm.total <= 0 {
		return 0, 0, false
	}
	r := u * rm.total
	for g := range rm.grids {
		if r >= rm.sums[g] {
			r -= rm.sums[g]
			continue
		}
		cum := 0.0
		for idx, rate := range rm.grids[g] {
			cum += rate
			if r < cum {
				return g, idx, true
			}
		}
		// Float roundoff walked past the last positive entry; take it.
		for idx := len(rm.grids[g]) - 1; idx >= 0; idx-- {
			if rm.grids[g][idx] > 0 {
				return g, idx, true
			}
		}
	}
	for g := numRateGrids - 1; g >= 0; g-- {
		if rm.sums[g] > 0 {
			for idx := len(rm.grids[g]) - 1; idx >= 0; idx-- {
				if rm.grids[g][idx] > 0 {
					return g, idx, true
				}
			}
		}
	}
	return 0, 0, false
}
