package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/coilblock/pkg/engine"
	"github.com/chazu/coilblock/pkg/export"
	"github.com/chazu/coilblock/pkg/params"
)

func TestE2EUnknownPreset(t *testing.T) {
	_, _, err := runCLI(t, "params", "--preset", "huge")
	if err == nil || !strings.Contains(err.Error(), "unknown preset") {
		t.Fatalf("expected unknown preset error, got %v", err)
	}
}

func TestE2EMissingConfigFile(t *testing.T) {
	_, _, err := runCLI(t, "params", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestE2EInvalidParameters(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	data := "grid:\n  hole_diameter: 500\ntube:\n  wall: -1\n"
	if err := os.WriteFile(cfgFile, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, "params", "--config", cfgFile)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"grid.hole_diameter", "tube.wall"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestE2EScriptError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bad.coil")
	if err := os.WriteFile(script, []byte("(plate :width 10)\n(grid :colour 3)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := previewConfig(dir)
	cfg.Script = script

	_, err := quietApp().Build(context.Background(), cfg)
	var se *engine.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("expected *engine.ScriptError, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Export.Path); !os.IsNotExist(statErr) {
		t.Error("no output should be written when the script fails")
	}
}

func TestE2ESyntaxErrorInScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "broken.coil")
	if err := os.WriteFile(script, []byte("(tube :wall 0.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, "params", "--preset", "preview", "--script", script)
	if err == nil {
		t.Fatal("expected error for a broken script")
	}
}

func TestE2EUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := previewConfig(dir)
	cfg.Export.Path = filepath.Join(blocker, "out.3mf")

	_, err := quietApp().Build(context.Background(), cfg)
	if !errors.Is(err, export.ErrExport) {
		t.Fatalf("expected ErrExport, got %v", err)
	}
}

func TestE2ECancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quietApp().Build(ctx, previewConfig(t.TempDir()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestE2EBuildRejectsArgs(t *testing.T) {
	_, _, err := runCLI(t, "build", "extra")
	if err == nil {
		t.Fatal("expected error for positional arguments")
	}
}

func TestE2EZeroWorkersStillBuilds(t *testing.T) {
	cfg := previewConfig(t.TempDir())
	cfg.Workers = 0
	cfg.Parameters = params.Preview()
	if _, err := quietApp().Build(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
