package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/chazu/coilblock/pkg/engine"
	"github.com/chazu/coilblock/pkg/kernel/sdfx"
	"github.com/chazu/coilblock/pkg/params"
	"github.com/chazu/coilblock/pkg/pipeline"
)

// App ties the script engine, the kernel and the pipeline together for
// one CLI invocation.
type App struct {
	engine *engine.Engine
	logger *log.Logger
}

// NewApp creates a new App that logs to logger.
func NewApp(logger *log.Logger) *App {
	return &App{
		engine: engine.NewEngine(),
		logger: logger,
	}
}

// Resolve returns the parameters of cfg with its design script, if any,
// applied on top.
func (a *App) Resolve(ctx context.Context, cfg *params.Config) (params.Parameters, error) {
	if cfg.Script == "" {
		return cfg.Parameters, nil
	}
	p, err := a.engine.EvaluateFile(ctx, cfg.Script, cfg.Parameters)
	if err != nil {
		return params.Parameters{}, err
	}
	a.logger.Debug("applied design script", "path", cfg.Script)
	return *p, nil
}

// Build runs the whole pipeline for cfg and writes the report file when
// one is configured.
func (a *App) Build(ctx context.Context, cfg *params.Config) (*pipeline.Report, error) {
	p, err := a.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}

	k := sdfx.New(sdfx.WithCellSize(cfg.Export.CellSize))
	rep, err := pipeline.NewRunner(k, cfg.Workers, a.logger).Run(ctx, p, cfg.Export.Path)
	if err != nil {
		return nil, err
	}

	if cfg.Report != "" {
		if err := writeReport(cfg.Report, rep); err != nil {
			return nil, err
		}
		a.logger.Debug("wrote report", "path", cfg.Report)
	}
	return rep, nil
}

func writeReport(path string, rep *pipeline.Report) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
