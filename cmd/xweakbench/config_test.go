package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := defaultConfig().validate(); err != nil {
		t.Fatalf("default config must be valid, got %v", err)
	}
}

func TestLoadConfigBytesPartialOverride(t *testing.T) {
	cfg := defaultConfig()
	data := []byte("workers: 4\npin: 32\n")

	if err := loadConfigBytes(data, &cfg); err != nil {
		t.Fatalf("loadConfigBytes failed: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Pin != 32 {
		t.Errorf("Pin = %d, want 32", cfg.Pin)
	}
	// 未出现的键保留默认值
	if cfg.Ops != defaultOps {
		t.Errorf("Ops = %d, want default %d", cfg.Ops, defaultOps)
	}
	if cfg.Phases != defaultPhases {
		t.Errorf("Phases = %d, want default %d", cfg.Phases, defaultPhases)
	}
}

func TestLoadConfigBytesInvalidYAML(t *testing.T) {
	cfg := defaultConfig()
	err := loadConfigBytes([]byte("workers: [unclosed"), &cfg)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	var usageErr *usageError
	if !errors.As(err, &usageErr) {
		t.Errorf("expected *usageError, got %T: %v", err, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*workloadConfig)
	}{
		{"zero_workers", func(c *workloadConfig) { c.Workers = 0 }},
		{"negative_ops", func(c *workloadConfig) { c.Ops = -1 }},
		{"zero_keys", func(c *workloadConfig) { c.Keys = 0 }},
		{"zero_params", func(c *workloadConfig) { c.Params = 0 }},
		{"zero_phases", func(c *workloadConfig) { c.Phases = 0 }},
		{"negative_pin", func(c *workloadConfig) { c.Pin = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var usageErr *usageError
			if !errors.As(err, &usageErr) {
				t.Errorf("expected *usageError, got %T: %v", err, err)
			}
		})
	}
}

// resolveFromArgs 用真实 flag 解析路径求取最终配置。
func resolveFromArgs(t *testing.T, args []string) (workloadConfig, error) {
	t.Helper()
	app := createApp()

	var (
		got    workloadConfig
		gotErr error
	)
	app.Action = func(_ context.Context, cmd *cli.Command) error {
		got, gotErr = resolveConfig(cmd)
		return nil
	}
	if err := app.Run(context.Background(), args); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got, gotErr
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.yaml")
	if err := os.WriteFile(path, []byte("workers: 4\nops: 500\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// flag > 配置文件 > 默认值
	cfg, err := resolveFromArgs(t, []string{"xweakbench", "-c", path, "--workers", "2"})
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2 (flag wins over file)", cfg.Workers)
	}
	if cfg.Ops != 500 {
		t.Errorf("Ops = %d, want 500 (file wins over default)", cfg.Ops)
	}
	if cfg.Keys != defaultKeys {
		t.Errorf("Keys = %d, want default %d", cfg.Keys, defaultKeys)
	}
}

func TestResolveConfigMissingFile(t *testing.T) {
	_, err := resolveFromArgs(t, []string{"xweakbench", "-c", "/nonexistent/workload.yaml"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	var usageErr *usageError
	if !errors.As(err, &usageErr) {
		t.Errorf("expected *usageError, got %T: %v", err, err)
	}
}

func TestResolveConfigInvalidFlag(t *testing.T) {
	_, err := resolveFromArgs(t, []string{"xweakbench", "--workers", "0"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var usageErr *usageError
	if !errors.As(err, &usageErr) {
		t.Errorf("expected *usageError, got %T: %v", err, err)
	}
}
