package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazu/coilblock/pkg/params"
)

// newRootCmd builds the command tree. Results go to stdout, logs to stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool
	logger := newLogger(stderr, log.InfoLevel)

	root := &cobra.Command{
		Use:           "coilblock",
		Short:         "coilblock generates stacked plate-and-tube coil blocks",
		Long:          `coilblock builds a corrugated plate stack threaded with tube coils, U-bends and header manifolds, and exports it as a 3MF file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newBuildCmd(logger))
	root.AddCommand(newParamsCmd(logger))
	return root
}

// addConfigFlags registers the flags shared by every command that loads
// a configuration.
func addConfigFlags(cmd *cobra.Command, cfgFile, script *string) {
	cmd.Flags().StringVar(cfgFile, "config", "", "config file (default ./"+params.DefaultConfigFile+" if present)")
	cmd.Flags().StringVar(script, "script", "", "design script applied on top of the config")
	cmd.Flags().String("preset", "reference", "parameter preset to start from (reference, preview)")
}

// loadConfig loads the config for cmd and raises the log level if the
// config asks for it.
func loadConfig(cmd *cobra.Command, logger *log.Logger, cfgFile string) (*params.Config, error) {
	cfg, used, err := params.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if used != "" {
		logger.Debug("loaded config", "path", used)
	}
	return cfg, nil
}

func newBuildCmd(logger *log.Logger) *cobra.Command {
	var cfgFile, script string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the coil block and export it as 3MF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, logger, cfgFile)
			if err != nil {
				return err
			}
			rep, err := NewApp(logger).Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	addConfigFlags(cmd, &cfgFile, &script)
	cmd.Flags().StringP("out", "o", "coilblock.3mf", "output 3MF file")
	cmd.Flags().Float64("cell-size", 0.5, "tessellation cell size in mm")
	cmd.Flags().Int("workers", 4, "concurrent bend and tessellation workers")
	cmd.Flags().String("report", "", "write the run report as YAML to this file")
	return cmd
}

func newParamsCmd(logger *log.Logger) *cobra.Command {
	var cfgFile, script string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the resolved parameters as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, logger, cfgFile)
			if err != nil {
				return err
			}
			p, err := NewApp(logger).Resolve(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if _, err := p.Derive(); err != nil {
				return err
			}
			data, err := yaml.Marshal(p)
			if err != nil {
				return fmt.Errorf("params: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	addConfigFlags(cmd, &cfgFile, &script)
	return cmd
}
