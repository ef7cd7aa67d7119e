// Tracks simulation-wide statistics: event counts by type, boundary
// interactions, and per-step traces of energy and polarization.

package sim

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Metrics aggregates statistics about the simulation for final reporting.
// Useful for evaluating steady-state behavior and debugging dynamics over
// time.
type Metrics struct {
	Steps       int             // Number of kinetic events applied
	EventCounts map[EventType]int
	Absorbed    int // Particles removed by sinks
	Reflected   int // Hops bounced off obstacles
	Blocked     int // Hops/advections stalled by another particle

	// Per-step traces, sampled after each applied event.
	EnergyTrace       []float64
	PolarizationTrace []float64

	FinalTime float64 // Simulation clock at the last recorded event
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EventCounts: make(map[EventType]int),
	}
}

// RecordEvent folds one applied event into the counters.
func (m *Metrics) RecordEvent(ev Event) {
	m.Steps++
	m.EventCounts[ev.Type]++
	m.FinalTime = ev.Time
	switch ev.Outcome {
	case HopAbsorbed:
		m.Absorbed++
	case HopReflected:
		m.Reflected++
	case HopBlocked:
		m.Blocked++
	}
}

// Sample appends one point to the energy and polarization traces.
func (m *Metrics) Sample(energy, polarization float64) {
	m.EnergyTrace = append(m.EnergyTrace, energy)
	m.PolarizationTrace = append(m.PolarizationTrace, polarization)
}

// EnergyStats returns the mean and standard deviation of the energy trace.
func (m *Metrics) EnergyStats() (mean, stddev float64) {
	if len(m.EnergyTrace) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(m.EnergyTrace, nil)
}

// PolarizationStats returns the mean and standard deviation of the
// polarization trace.
func (m *Metrics) PolarizationStats() (mean, stddev float64) {
	if len(m.PolarizationTrace) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(m.PolarizationTrace, nil)
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print(elapsed time.Duration) {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Events applied       : %d\n", m.Steps)
	fmt.Printf("Simulation time      : %.4f\n", m.FinalTime)
	for _, t := range []EventType{EventFlip, EventRotateCW, EventRotateCCW, EventHop, EventAdvect} {
		if n, ok := m.EventCounts[t]; ok {
			fmt.Printf("  %-18s : %d\n", t, n)
		}
	}
	fmt.Printf("Absorbed by sinks    : %d\n", m.Absorbed)
	fmt.Printf("Reflected off walls  : %d\n", m.Reflected)
	fmt.Printf("Blocked moves        : %d\n", m.Blocked)
	if len(m.EnergyTrace) > 0 {
		eMean, eStd := m.EnergyStats()
		pMean, pStd := m.PolarizationStats()
		fmt.Printf("Energy (mean±std)    : %.4f ± %.4f\n", eMean, eStd)
		fmt.Printf("Polarization         : %.4f ± %.4f\n", pMean, pStd)
	}
	fmt.Printf("Wall clock           : %s\n", elapsed)
}
