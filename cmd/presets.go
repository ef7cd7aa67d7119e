package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Preset describes a named run configuration in defaults.yaml.
type Preset struct {
	G             float64 `yaml:"g"`
	V0            float64 `yaml:"v0"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Density       float64 `yaml:"density"`
	Steps         int     `yaml:"steps"`
	Flow          string  `yaml:"flow"`
	FlowV1        float64 `yaml:"flow_v1"`
	ObstacleWalls bool    `yaml:"obstacle_walls"`
	SinkColumn    int     `yaml:"sink_col"`
	Description   string  `yaml:"description"`
}

// PresetsConfig represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type PresetsConfig struct {
	Version string            `yaml:"version"`
	Presets map[string]Preset `yaml:"presets"`
}

// loadPresets reads and strictly parses the presets file.
func loadPresets(path string) (*PresetsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	// Parse YAML with strict field checking: typos must cause errors
	var cfg PresetsConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse presets YAML: %w", err)
	}
	return &cfg, nil
}

// GetPreset returns the named preset from the presets file.
func GetPreset(path, name string) (Preset, error) {
	cfg, err := loadPresets(path)
	if err != nil {
		return Preset{}, err
	}
	p, ok := cfg.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("no preset named %q in %s", name, path)
	}
	return p, nil
}

// applyPreset copies preset values into the run flags, keeping any value the
// user set explicitly on the command line.
func applyPreset(cmd *cobra.Command, p Preset) {
	flags := cmd.Flags()
	if !flags.Changed("g") {
		g = p.G
	}
	if !flags.Changed("v0") {
		v0 = p.V0
	}
	if !flags.Changed("width") {
		width = p.Width
	}
	if !flags.Changed("height") {
		height = p.Height
	}
	if !flags.Changed("density") {
		density = p.Density
	}
	if !flags.Changed("steps") && p.Steps > 0 {
		steps = p.Steps
	}
	if !flags.Changed("flow") && p.Flow != "" {
		flowProfile = p.Flow
	}
	if !flags.Changed("flow-v1") && p.FlowV1 != 0 {
		flowV1 = p.FlowV1
	}
	if !flags.Changed("obstacle-walls") {
		obstacleWalls = p.ObstacleWalls
	}
	if !flags.Changed("sink-col") && p.SinkColumn != 0 {
		sinkColumn = p.SinkColumn
	}
	logrus.Infof("Applied preset %q: %s", presetName, p.Description)
}

// presetsCmd lists the presets available in the presets file.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List available run presets",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadPresets(presetsFile)
		if err != nil {
			logrus.Fatalf("Failed to load presets: %v", err)
		}
		names := make([]string, 0, len(cfg.Presets))
		for name := range cfg.Presets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := cfg.Presets[name]
			fmt.Printf("%-12s %dx%d g=%v v0=%v density=%v  %s\n",
				name, p.Width, p.Height, p.G, p.V0, p.Density, p.Description)
		}
	},
}

func init() {
	presetsCmd.Flags().StringVar(&presetsFile, "presets-file", "defaults.yaml", "Path to the presets YAML")
}
