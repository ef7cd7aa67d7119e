// sim/simulation.go
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/lvmc-sim/lvmc-sim/sim/trace"
)

// ErrNoEvents is returned by Step when no kinetic move has a positive rate
// (e.g. an empty lattice, or every particle fully jammed with v0 = 0).
var ErrNoEvents = errors.New("no kinetic events possible: total rate is zero")

// ErrNotBuilt is returned when Step is called before Build.
var ErrNotBuilt = errors.New("simulation not built: call Build first")

// pendingFlux defers a region injection until Build, so that the RNG draw
// order is fixed by the builder's declaration order, not by call timing.
type pendingFlux struct {
	region Region
	o      Orientation
	n      int
}

// Simulation is the core object that holds the lattice, the rate grids and
// the kinetic clock. It is assembled through a fluent builder chain:
//
//	s := sim.NewSimulation(2.0, 10.0).
//		AddLattice(32, 16).
//		AddParticles(0.3).
//		WithSeed(42)
//	if err := s.Build(); err != nil { ... }
//	ev, err := s.Step()
//
// Each Step draws one exponentially-distributed waiting time and fires one
// event chosen with probability proportional to its rate (Gillespie).
type Simulation struct {
	// Clock is the continuous simulation time.
	Clock float64

	Lattice *ParticleLattice
	Rates   *RatesManager
	Flow    *Flow
	Metrics *Metrics
	Trace   *trace.RunTrace

	g       float64
	v0      float64
	density float64
	seed    int64
	fluxes  []pendingFlux

	rng   *PartitionedRNG
	built bool
	steps int

	// err holds the first builder error; Build reports it.
	err error
}

// NewSimulation starts a builder chain with alignment coupling g and
// self-propulsion rate v0.
func NewSimulation(g, v0 float64) *Simulation {
	s := &Simulation{
		g:       g,
		v0:      v0,
		density: math.NaN(),
		seed:    42,
	}
	if math.IsNaN(g) || math.IsInf(g, 0) {
		s.fail(fmt.Errorf("alignment coupling g must be finite, got %v", g))
	}
	if math.IsNaN(v0) || math.IsInf(v0, 0) || v0 < 0 {
		s.fail(fmt.Errorf("self-propulsion rate v0 must be finite and >= 0, got %v", v0))
	}
	return s
}

func (s *Simulation) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// WithSeed fixes the master seed. The default is 42.
func (s *Simulation) WithSeed(seed int64) *Simulation {
	s.seed = seed
	return s
}

// AddLattice creates the width x height periodic lattice.
func (s *Simulation) AddLattice(width, height int) *Simulation {
	if s.Lattice != nil {
		s.fail(errors.New("AddLattice called twice"))
		return s
	}
	l, err := NewParticleLattice(width, height)
	if err != nil {
		s.fail(err)
		return s
	}
	s.Lattice = l
	return s
}

// AddParticles requests the lattice be populated at the given fraction of
// its non-obstacle cells. Placement happens in Build, after obstacles and
// sinks are in place.
func (s *Simulation) AddParticles(fraction float64) *Simulation {
	if fraction < 0 || fraction > 1 {
		s.fail(fmt.Errorf("particle fraction must be in [0, 1], got %v", fraction))
		return s
	}
	s.density = fraction
	return s
}

// AddObstacle marks one cell as an obstacle.
func (s *Simulation) AddObstacle(x, y int) *Simulation {
	if s.Lattice == nil {
		s.fail(errors.New("AddObstacle before AddLattice"))
		return s
	}
	if err := s.Lattice.SetObstacle(x, y); err != nil {
		s.fail(err)
	}
	return s
}

// AddObstacleWalls turns the top and bottom rows into obstacle walls,
// the channel geometry a Poiseuille flow implies.
func (s *Simulation) AddObstacleWalls() *Simulation {
	if s.Lattice == nil {
		s.fail(errors.New("AddObstacleWalls before AddLattice"))
		return s
	}
	if err := s.Lattice.SetObstacleRow(0); err != nil {
		s.fail(err)
		return s
	}
	if err := s.Lattice.SetObstacleRow(s.Lattice.Height - 1); err != nil {
		s.fail(err)
	}
	return s
}

// AddSink marks one cell as a sink.
func (s *Simulation) AddSink(x, y int) *Simulation {
	if s.Lattice == nil {
		s.fail(errors.New("AddSink before AddLattice"))
		return s
	}
	if err := s.Lattice.SetSink(x, y); err != nil {
		s.fail(err)
	}
	return s
}

// AddSinkColumn turns one column into absorbing sinks.
func (s *Simulation) AddSinkColumn(x int) *Simulation {
	if s.Lattice == nil {
		s.fail(errors.New("AddSinkColumn before AddLattice"))
		return s
	}
	if err := s.Lattice.SetSinkColumn(x); err != nil {
		s.fail(err)
	}
	return s
}

// AddFlux schedules n particles with heading o to be injected at random
// free sites of region during Build. Pass OrientationNone for random
// headings.
func (s *Simulation) AddFlux(region Region, o Orientation, n int) *Simulation {
	s.fluxes = append(s.fluxes, pendingFlux{region: region, o: o, n: n})
	return s
}

// AttachFlow couples an external flow field to the dynamics. The flow shape
// must match the lattice; Build checks it.
func (s *Simulation) AttachFlow(f *Flow) *Simulation {
	s.Flow = f
	return s
}

// WithTraceLevel enables event tracing at the given level.
func (s *Simulation) WithTraceLevel(level trace.TraceLevel) *Simulation {
	s.Trace = trace.NewRunTrace(trace.TraceConfig{Level: level})
	return s
}

// Build validates the assembled configuration, places the particles and
// computes the initial rates. It reports the first error recorded by any
// builder method.
func (s *Simulation) Build() error {
	if s.err != nil {
		return s.err
	}
	if s.built {
		return errors.New("Build called twice")
	}
	if s.Lattice == nil {
		return errors.New("no lattice: call AddLattice")
	}
	if s.Flow != nil && (s.Flow.Width != s.Lattice.Width || s.Flow.Height != s.Lattice.Height) {
		return fmt.Errorf("flow shape %dx%d does not match lattice %dx%d",
			s.Flow.Width, s.Flow.Height, s.Lattice.Width, s.Lattice.Height)
	}

	s.rng = NewPartitionedRNG(NewSimulationKey(s.seed))

	if !math.IsNaN(s.density) {
		added, err := s.Lattice.Populate(s.density, s.rng.ForSubsystem(SubsystemPopulate))
		if err != nil {
			return fmt.Errorf("populate: %w", err)
		}
		logrus.Debugf("populated lattice with %d particles (fraction %.3f)", added, s.density)
	}
	for _, fl := range s.fluxes {
		if _, err := s.Lattice.AddFlux(fl.region, fl.o, fl.n, s.rng.ForSubsystem(SubsystemFlux)); err != nil {
			return fmt.Errorf("flux: %w", err)
		}
	}

	s.Rates = NewRatesManager(s.Lattice, s.g, s.v0)
	if s.Flow != nil {
		s.Rates.AttachFlow(s.Flow)
	}
	s.Metrics = NewMetrics()
	s.built = true
	return nil
}

// Polarization returns the order parameter |sum sigma| / N, the magnitude
// of the mean heading. 1 means fully aligned, 0 disordered or empty.
func (s *Simulation) Polarization() float64 {
	if s.Lattice == nil {
		return 0
	}
	var sx, sy, n float64
	for _, o := range s.Lattice.cells {
		if o == OrientationNone {
			continue
		}
		dx, dy := o.Vector()
		sx += float64(dx)
		sy += float64(dy)
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Hypot(sx, sy) / n
}

// Step advances the simulation by one kinetic event and returns it.
func (s *Simulation) Step() (Event, error) {
	if !s.built {
		return Event{}, ErrNotBuilt
	}
	total := s.Rates.TotalRate()
	if total <= 0 {
		return Event{}, ErrNoEvents
	}

	rng := s.rng.ForSubsystem(SubsystemKinetics)
	dt := rng.ExpFloat64() / total
	grid, cell, ok := s.Rates.sample(rng.Float64())
	if !ok {
		return Event{}, ErrNoEvents
	}

	t, dir := gridEvent(grid)
	x, y := cell%s.Lattice.Width, cell/s.Lattice.Width
	if t != EventAdvect {
		if o, err := s.Lattice.ParticleOrientation(x, y); err == nil {
			dir = o
		}
	}

	s.Clock += dt
	ev := Event{
		Type:      t,
		X:         x,
		Y:         y,
		Direction: dir,
		Dt:        dt,
		Time:      s.Clock,
	}
	move, err := ev.apply(s.Lattice)
	if err != nil {
		return Event{}, fmt.Errorf("apply %s at (%d, %d): %w", t, x, y, err)
	}
	ev.Outcome = move.Outcome

	s.Rates.Update()
	s.steps++
	s.Metrics.RecordEvent(ev)
	s.Metrics.Sample(s.Rates.TotalEnergy(), s.Polarization())
	if s.Trace.Enabled() {
		s.Trace.RecordEvent(trace.EventRecord{
			Step:    s.steps,
			Time:    ev.Time,
			Dt:      ev.Dt,
			Type:    ev.Type.String(),
			X:       ev.X,
			Y:       ev.Y,
			Outcome: ev.Outcome.String(),
		})
	}
	logrus.Debugf("[step %06d] %s", s.steps, ev)
	return ev, nil
}

// RunSteps applies up to n kinetic events, logging progress along the way.
// It stops early without error when no events remain (all particles
// absorbed or jammed) and returns the number of events applied.
func (s *Simulation) RunSteps(n int) (int, error) {
	interval := n / 10
	if interval == 0 {
		interval = 1
	}
	for i := 0; i < n; i++ {
		ev, err := s.Step()
		if errors.Is(err, ErrNoEvents) {
			logrus.Infof("[step %06d] no events left, stopping early", s.steps)
			return i, nil
		}
		if err != nil {
			return i, err
		}
		if (i+1)%interval == 0 || i == n-1 {
			logrus.Infof("[step %06d/%06d] t=%.4f particles=%d",
				i+1, n, ev.Time, s.Lattice.ParticleCount())
		}
	}
	return n, nil
}

// RunUntil applies kinetic events until the simulation clock reaches
// horizon. Returns the number of events applied.
func (s *Simulation) RunUntil(horizon float64) (int, error) {
	applied := 0
	for s.Clock < horizon {
		_, err := s.Step()
		if errors.Is(err, ErrNoEvents) {
			logrus.Infof("[t=%.4f] no events left, stopping before horizon %.4f", s.Clock, horizon)
			return applied, nil
		}
		if err != nil {
			return applied, err
		}
		applied++
	}
	logrus.Infof("[t=%.4f] horizon reached after %d events", s.Clock, applied)
	return applied, nil
}

// StepCount returns the number of events applied so far.
func (s *Simulation) StepCount() int {
	return s.steps
}
