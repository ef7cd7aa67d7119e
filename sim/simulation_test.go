package sim

import (
	"errors"
	"testing"

	"github.com/lvmc-sim/lvmc-sim/sim/trace"
)

func buildTestSim(t *testing.T, g, v0 float64, seed int64) *Simulation {
	t.Helper()
	s := NewSimulation(g, v0).
		AddLattice(10, 10).
		AddParticles(0.3).
		WithSeed(seed)
	if err := s.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuild_PopulatesLattice(t *testing.T) {
	s := buildTestSim(t, 1.0, 5.0, 42)
	if got := s.Lattice.ParticleCount(); got != 30 {
		t.Errorf("ParticleCount() = %d, want 30", got)
	}
	if s.Rates.TotalRate() <= 0 {
		t.Error("TotalRate() = 0 after Build with particles")
	}
}

func TestBuild_RequiresLattice(t *testing.T) {
	s := NewSimulation(1.0, 5.0)
	if err := s.Build(); err == nil {
		t.Error("Build without AddLattice: want error, got nil")
	}
}

func TestBuild_ReportsFirstBuilderError(t *testing.T) {
	// An invalid fraction recorded mid-chain surfaces from Build.
	s := NewSimulation(1.0, 5.0).
		AddLattice(10, 10).
		AddParticles(1.5)
	if err := s.Build(); err == nil {
		t.Error("Build after AddParticles(1.5): want error, got nil")
	}
}

func TestBuild_RejectsInvalidParams(t *testing.T) {
	if err := NewSimulation(1.0, -2.0).AddLattice(4, 4).Build(); err == nil {
		t.Error("negative v0: want error, got nil")
	}
}

func TestBuild_RejectsObstacleBeforeLattice(t *testing.T) {
	s := NewSimulation(1.0, 5.0).AddObstacle(0, 0).AddLattice(10, 10)
	if err := s.Build(); err == nil {
		t.Error("AddObstacle before AddLattice: want error, got nil")
	}
}

func TestBuild_RejectsMismatchedFlow(t *testing.T) {
	f, err := NewFlow(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSimulation(1.0, 5.0).AddLattice(10, 10).AttachFlow(f)
	if err := s.Build(); err == nil {
		t.Error("mismatched flow shape: want error, got nil")
	}
}

func TestBuild_CalledTwice(t *testing.T) {
	s := buildTestSim(t, 1.0, 5.0, 42)
	if err := s.Build(); err == nil {
		t.Error("second Build: want error, got nil")
	}
}

func TestStep_BeforeBuild(t *testing.T) {
	s := NewSimulation(1.0, 5.0).AddLattice(10, 10)
	if _, err := s.Step(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Step before Build: err = %v, want ErrNotBuilt", err)
	}
}

func TestStep_ReturnsEventAndAdvancesClock(t *testing.T) {
	s := buildTestSim(t, 1.0, 5.0, 42)
	ev, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if ev.Dt <= 0 {
		t.Errorf("event Dt = %v, want > 0", ev.Dt)
	}
	if ev.Time != s.Clock {
		t.Errorf("event Time = %v, clock = %v, want equal", ev.Time, s.Clock)
	}
	if s.Metrics.Steps != 1 {
		t.Errorf("Metrics.Steps = %d, want 1", s.Metrics.Steps)
	}
	if s.StepCount() != 1 {
		t.Errorf("StepCount() = %d, want 1", s.StepCount())
	}
}

func TestStep_EmptyLattice(t *testing.T) {
	s := NewSimulation(1.0, 5.0).AddLattice(10, 10).AddParticles(0)
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(); !errors.Is(err, ErrNoEvents) {
		t.Errorf("Step on empty lattice: err = %v, want ErrNoEvents", err)
	}
}

func TestStep_Deterministic(t *testing.T) {
	// Same seed and configuration must reproduce the event sequence
	// bit-for-bit.
	s1 := buildTestSim(t, 1.5, 8.0, 1234)
	s2 := buildTestSim(t, 1.5, 8.0, 1234)
	for i := 0; i < 100; i++ {
		ev1, err1 := s1.Step()
		ev2, err2 := s2.Step()
		if err1 != nil || err2 != nil {
			t.Fatalf("step %d: errors %v, %v", i, err1, err2)
		}
		if ev1 != ev2 {
			t.Fatalf("step %d diverged: %v vs %v", i, ev1, ev2)
		}
	}
}

func TestStep_SeedChangesSequence(t *testing.T) {
	s1 := buildTestSim(t, 1.5, 8.0, 1)
	s2 := buildTestSim(t, 1.5, 8.0, 2)
	diverged := false
	for i := 0; i < 50; i++ {
		ev1, err1 := s1.Step()
		ev2, err2 := s2.Step()
		if err1 != nil || err2 != nil {
			t.Fatalf("step %d: errors %v, %v", i, err1, err2)
		}
		if ev1 != ev2 {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Error("different seeds produced identical 50-event sequences")
	}
}

func TestStep_ConservesParticlesWithoutSinks(t *testing.T) {
	s := buildTestSim(t, 1.0, 10.0, 7)
	before := s.Lattice.ParticleCount()
	for i := 0; i < 300; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := s.Lattice.ParticleCount(); got != before {
			t.Fatalf("step %d: particle count %d, want %d", i, got, before)
		}
	}
}

func TestStep_SinksOnlyRemoveParticles(t *testing.T) {
	s := NewSimulation(0.0, 20.0).
		AddLattice(10, 10).
		AddSinkColumn(9).
		AddParticles(0.3).
		WithSeed(99)
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	last := s.Lattice.ParticleCount()
	for i := 0; i < 500; i++ {
		_, err := s.Step()
		if errors.Is(err, ErrNoEvents) {
			break
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		count := s.Lattice.ParticleCount()
		if count > last {
			t.Fatalf("step %d: particle count grew from %d to %d", i, last, count)
		}
		last = count
	}
	if s.Metrics.Absorbed == 0 {
		t.Error("no absorptions recorded next to a sink column")
	}
}

func TestPolarization(t *testing.T) {
	// A lone particle is fully polarized; an opposed pair cancels.
	s := NewSimulation(1.0, 1.0).AddLattice(6, 6)
	s.Lattice.AddParticle(1, 1, Right)
	if got := s.Polarization(); got != 1.0 {
		t.Errorf("single particle polarization = %v, want 1", got)
	}
	s.Lattice.AddParticle(4, 4, Left)
	if got := s.Polarization(); got != 0.0 {
		t.Errorf("opposed pair polarization = %v, want 0", got)
	}
}

func TestRunSteps(t *testing.T) {
	s := buildTestSim(t, 1.0, 5.0, 42)
	n, err := s.RunSteps(50)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if n != 50 {
		t.Errorf("RunSteps applied %d events, want 50", n)
	}
	if s.Metrics.Steps != 50 {
		t.Errorf("Metrics.Steps = %d, want 50", s.Metrics.Steps)
	}
}

func TestRunSteps_StopsEarlyWhenNoEvents(t *testing.T) {
	s := NewSimulation(1.0, 5.0).AddLattice(10, 10).AddParticles(0)
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	n, err := s.RunSteps(100)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if n != 0 {
		t.Errorf("RunSteps on empty lattice applied %d events, want 0", n)
	}
}

func TestRunUntil(t *testing.T) {
	s := buildTestSim(t, 1.0, 5.0, 42)
	n, err := s.RunUntil(0.05)
	if err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if n == 0 {
		t.Error("RunUntil applied no events")
	}
	if s.Clock < 0.05 {
		t.Errorf("clock %v did not reach horizon", s.Clock)
	}
}

func TestTrace_RecordsEveryEvent(t *testing.T) {
	s := NewSimulation(1.0, 5.0).
		AddLattice(10, 10).
		AddParticles(0.3).
		WithSeed(42).
		WithTraceLevel(trace.TraceLevelEvents)
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunSteps(25); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Trace.Events); got != 25 {
		t.Errorf("trace recorded %d events, want 25", got)
	}
	first := s.Trace.Events[0]
	if first.Step != 1 || first.Time <= 0 || first.Type == "" {
		t.Errorf("malformed first record: %+v", first)
	}
}

func TestAddFlux_ThroughBuilder(t *testing.T) {
	s := NewSimulation(1.0, 5.0).
		AddLattice(10, 10).
		AddFlux(Region{X1: 0, Y1: 0, X2: 2, Y2: 2}, Down, 4).
		WithSeed(5)
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	if got := s.Lattice.ParticleCount(); got != 4 {
		t.Errorf("ParticleCount() = %d, want 4", got)
	}
}
