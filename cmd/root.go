package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lvmc-sim/lvmc-sim/sim"
	"github.com/lvmc-sim/lvmc-sim/sim/store"
	"github.com/lvmc-sim/lvmc-sim/sim/trace"
)

var (
	// CLI flags for the kinetic model
	g       float64 // Alignment coupling
	v0      float64 // Self-propulsion hop rate
	width   int     // Lattice width
	height  int     // Lattice height
	density float64 // Initial particle fraction of non-obstacle cells
	seed    int64   // Master seed for all RNG subsystems

	// CLI flags for the run loop
	steps    int     // Number of kinetic events to apply
	horizon  float64 // Stop once the simulation clock passes this (0 = use --steps)
	logLevel string  // Log verbosity level

	// CLI flags for geometry and flow
	flowProfile   string  // Flow profile: "none" or "poiseuille"
	flowV1        float64 // Peak velocity of the Poiseuille profile
	obstacleWalls bool    // Turn top and bottom rows into obstacle walls
	sinkColumn    int     // Column index to make absorbing (-1 = none)

	// CLI flags for output
	dbPath       string // SQLite database to record the run into ("" = off)
	traceLevel   string // Event trace level: "none" or "events"
	printLattice bool   // Print the final lattice as a glyph grid
	snapshotEach int    // Persist a lattice snapshot every N steps (0 = off)

	// Preset selection
	presetName  string // Named preset from the presets file
	presetsFile string // Path to the presets YAML
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lvmc-sim",
	Short: "Kinetic Monte Carlo simulator for lattice active matter",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the lattice simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if presetName != "" {
			p, err := GetPreset(presetsFile, presetName)
			if err != nil {
				logrus.Fatalf("Failed to load preset %q: %v", presetName, err)
			}
			applyPreset(cmd, p)
		}

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level %q (want none or events)", traceLevel)
		}

		logrus.Infof("Starting simulation: %dx%d lattice, g=%v, v0=%v, density=%v, seed=%d",
			width, height, g, v0, density, seed)

		startTime := time.Now()

		s := sim.NewSimulation(g, v0).
			AddLattice(width, height).
			WithSeed(seed).
			WithTraceLevel(trace.TraceLevel(traceLevel))

		if obstacleWalls {
			s.AddObstacleWalls()
		}
		if sinkColumn >= 0 {
			s.AddSinkColumn(sinkColumn)
		}
		s.AddParticles(density)

		flowName := "none"
		if flowProfile == "poiseuille" {
			f, err := sim.NewPoiseuilleFlow(width, height, flowV1)
			if err != nil {
				logrus.Fatalf("Failed to build flow: %v", err)
			}
			s.AttachFlow(f)
			flowName = flowProfile
		} else if flowProfile != "none" {
			logrus.Fatalf("Unknown flow profile %q (want none or poiseuille)", flowProfile)
		}

		if err := s.Build(); err != nil {
			logrus.Fatalf("Failed to build simulation: %v", err)
		}

		var (
			rs    *store.RunStore
			runID int64
		)
		ctx := context.Background()
		if dbPath != "" {
			rs, err = store.Open(dbPath)
			if err != nil {
				logrus.Fatalf("Failed to open run store: %v", err)
			}
			defer rs.Close()
			runID, err = rs.BeginRun(ctx, store.RunParams{
				Seed: seed, G: g, V0: v0,
				Width: width, Height: height, Density: density,
				Flow: flowName,
			})
			if err != nil {
				logrus.Fatalf("Failed to begin run: %v", err)
			}
		}

		applied, err := runLoop(ctx, s, rs, runID)
		if err != nil {
			logrus.Fatalf("Simulation failed after %d events: %v", applied, err)
		}

		if rs != nil {
			if s.Trace.Enabled() {
				if err := rs.WriteEvents(ctx, runID, s.Trace.Events); err != nil {
					logrus.Fatalf("Failed to persist events: %v", err)
				}
			}
			if err := rs.FinishRun(ctx, runID, s.StepCount(), s.Clock); err != nil {
				logrus.Fatalf("Failed to finish run: %v", err)
			}
		}

		if printLattice {
			logrus.Infof("Final lattice:\n%s", s.Lattice)
		}
		s.Metrics.Print(time.Since(startTime))

		logrus.Info("Simulation complete.")
	},
}

// runLoop drives the simulation to the configured step count or horizon,
// persisting periodic snapshots when a store is attached.
func runLoop(ctx context.Context, s *sim.Simulation, rs *store.RunStore, runID int64) (int, error) {
	if rs == nil || snapshotEach <= 0 {
		if horizon > 0 {
			return s.RunUntil(horizon)
		}
		return s.RunSteps(steps)
	}

	applied := 0
	for {
		if horizon > 0 {
			if s.Clock >= horizon {
				return applied, nil
			}
		} else if applied >= steps {
			return applied, nil
		}
		n, err := s.RunSteps(min(snapshotEach, max(steps-applied, 1)))
		applied += n
		if err != nil {
			return applied, err
		}
		snap := store.Snapshot{
			Step:         s.StepCount(),
			Time:         s.Clock,
			Particles:    s.Lattice.ParticleCount(),
			Energy:       s.Rates.TotalEnergy(),
			Polarization: s.Polarization(),
			Grid:         s.Lattice.String(),
		}
		if err := rs.WriteSnapshot(ctx, runID, snap); err != nil {
			return applied, err
		}
		if n == 0 {
			// No events left; the snapshot above captured the final state.
			return applied, nil
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {

	runCmd.Flags().Float64Var(&g, "g", 1.0, "Alignment coupling strength")
	runCmd.Flags().Float64Var(&v0, "v0", 10.0, "Self-propulsion hop rate")
	runCmd.Flags().IntVar(&width, "width", 32, "Lattice width")
	runCmd.Flags().IntVar(&height, "height", 32, "Lattice height")
	runCmd.Flags().Float64Var(&density, "density", 0.3, "Initial particle fraction of non-obstacle cells")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for all RNG subsystems")

	runCmd.Flags().IntVar(&steps, "steps", 1000, "Number of kinetic events to apply")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Stop once the simulation clock passes this (0 = use --steps)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&flowProfile, "flow", "none", "Flow profile (none, poiseuille)")
	runCmd.Flags().Float64Var(&flowV1, "flow-v1", 1.0, "Peak velocity of the Poiseuille profile")
	runCmd.Flags().BoolVar(&obstacleWalls, "obstacle-walls", false, "Turn top and bottom rows into obstacle walls")
	runCmd.Flags().IntVar(&sinkColumn, "sink-col", -1, "Column index to make absorbing (-1 = none)")

	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to record the run into (empty = off)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Event trace level (none, events)")
	runCmd.Flags().BoolVar(&printLattice, "print-lattice", false, "Print the final lattice as a glyph grid")
	runCmd.Flags().IntVar(&snapshotEach, "snapshot-every", 0, "Persist a lattice snapshot every N steps (0 = off)")

	runCmd.Flags().StringVar(&presetName, "preset", "", "Named preset from the presets file")
	runCmd.Flags().StringVar(&presetsFile, "presets-file", "defaults.yaml", "Path to the presets YAML")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(presetsCmd)
}
