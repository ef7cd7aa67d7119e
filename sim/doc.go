// Package sim provides the kinetic Monte Carlo engine for LVMC, a lattice
// model of self-propelled aligning particles.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - lattice.go: the periodic grid, particle moves, obstacles and sinks
//   - rates.go: per-site event rates from alignment energies, v0 and flow
//   - simulation.go: the builder chain and the Gillespie event loop
//
// # Architecture
//
// The sim package holds the engine; supporting concerns live in
// sub-packages:
//   - sim/trace/: per-event trace recording and summaries
//   - sim/store/: SQLite persistence of runs, events and snapshots
//
// A Simulation is assembled with a fluent builder
// (NewSimulation(g, v0).AddLattice(w, h).AddParticles(f).Build()) and then
// advanced one event at a time with Step, or in bulk with RunSteps /
// RunUntil. Every Step draws an exponential waiting time from the total
// event rate and fires one move chosen with probability proportional to
// its per-site rate.
//
// Reproducibility: all randomness flows through PartitionedRNG, which
// derives an isolated, deterministically-seeded stream per subsystem
// (placement, kinetics, flux injection) from a single master seed.
package sim
