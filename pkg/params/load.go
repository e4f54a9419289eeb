package params

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is looked up in the working directory when no
// --config flag is given.
const DefaultConfigFile = "coilblock.yaml"

// Export configures the output file.
type Export struct {
	Path     string  `koanf:"path" yaml:"path"`
	CellSize float64 `koanf:"cell_size" yaml:"cell_size"` // marching cubes cell edge, mm
}

// Config is everything a build run needs.
type Config struct {
	Parameters `koanf:",squash" yaml:",inline"`

	Export  Export `koanf:"export" yaml:"export"`
	Workers int    `koanf:"workers" yaml:"workers"`
	Report  string `koanf:"report" yaml:"report,omitempty"`
	Script  string `koanf:"script" yaml:"script,omitempty"`
	Verbose bool   `koanf:"verbose" yaml:"verbose,omitempty"`
}

// flagKeys maps CLI flags whose name differs from their config key.
var flagKeys = map[string]string{
	"out":       "export.path",
	"cell-size": "export.cell_size",
}

// defaults flattens p into koanf keys.
func defaults(p Parameters) map[string]interface{} {
	return map[string]interface{}{
		"plate.width":               p.Plate.Width,
		"plate.depth":               p.Plate.Depth,
		"plate.thickness":           p.Plate.Thickness,
		"plate.stations":            p.Plate.Stations,
		"corrugation.amplitude":     p.Corrugation.Amplitude,
		"corrugation.cycles":        p.Corrugation.Cycles,
		"grid.columns":              p.Grid.Columns,
		"grid.rows":                 p.Grid.Rows,
		"grid.hole_diameter":        p.Grid.HoleDiameter,
		"grid.stagger_ratio":        p.Grid.StaggerRatio,
		"stack.spacing":             p.Stack.Spacing,
		"stack.target_height":       p.Stack.TargetHeight,
		"tube.wall":                 p.Tube.Wall,
		"tube.overhang":             p.Tube.Overhang,
		"header.radius_multiplier":  p.Header.RadiusMultiplier,
		"header.standoff":           p.Header.Standoff,
		"header.connector_margin":   p.Header.ConnectorMargin,
		"header.bottom.ports":       p.Header.Bottom.Ports,
		"header.bottom.stub_offset": p.Header.Bottom.StubOffset,
		"header.bottom.stub_length": p.Header.Bottom.StubLength,
		"header.top.ports":          p.Header.Top.Ports,
		"header.top.stub_offset":    p.Header.Top.StubOffset,
		"header.top.stub_length":    p.Header.Top.StubLength,
		"bends.top":                 p.Bends.Top,
		"bends.bottom":              p.Bends.Bottom,
		"bends.column":              p.Bends.Column,
		"export.path":               "coilblock.3mf",
		"export.cell_size":          0.5,
		"workers":                   4,
		"verbose":                   false,
	}
}

// findConfigFile returns the config file to use, or "" for none.
// Priority: explicit path > coilblock.yaml in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Load builds a Config from the defaults of a preset (the --preset flag,
// "reference" when absent), an optional YAML file and the CLI flags that
// were explicitly set.
// Precedence (highest to lowest): flags > config file > defaults.
// It returns the config file used, if any.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	preset := "reference"
	if flags != nil && flags.Lookup("preset") != nil {
		preset, _ = flags.GetString("preset")
	}
	base, ok := Presets[preset]
	if !ok {
		return nil, "", fmt.Errorf("params: unknown preset %q", preset)
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(base()), "."), nil); err != nil {
		return nil, "", fmt.Errorf("params: failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("params: error reading config file %s: %w", used, err)
		}
	}

	// 3. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("params: failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("params: unable to decode config: %w", err)
	}
	if cfg.Export.CellSize <= 0 {
		return nil, "", fmt.Errorf("params: export.cell_size must be positive, got %v", cfg.Export.CellSize)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, used, nil
}
