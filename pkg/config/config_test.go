package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/glint/pkg/config"
	glinterrors "github.com/odvcencio/glint/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Touch.TapHold != 500*time.Millisecond || cfg.Touch.DoubleTap != 500*time.Millisecond {
		t.Fatalf("unexpected tap timings: %+v", cfg.Touch)
	}
	if cfg.Touch.GestureMax != 750*time.Millisecond {
		t.Fatalf("unexpected gesture max: %v", cfg.Touch.GestureMax)
	}
	if cfg.Scroll.AutoHide != time.Second {
		t.Fatalf("unexpected auto hide: %v", cfg.Scroll.AutoHide)
	}
	if !cfg.Touch.FirstSampleTap {
		t.Fatal("first sample tap should default on")
	}
}

func TestLoadHierarchy(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)

	userCfgDir := filepath.Join(home, ".glint")
	if err := os.MkdirAll(userCfgDir, 0o755); err != nil {
		t.Fatalf("mkdir user config: %v", err)
	}
	userCfg := `
display:
  width: 480
  height: 272
touch:
  tap_hold: 700ms
`
	if err := os.WriteFile(filepath.Join(userCfgDir, "config.yaml"), []byte(userCfg), 0o644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	projectCfgDir := filepath.Join(project, ".glint")
	if err := os.MkdirAll(projectCfgDir, 0o755); err != nil {
		t.Fatalf("mkdir project config: %v", err)
	}
	projectCfg := `
display:
  width: 800
apps:
  shell: launcher
`
	if err := os.WriteFile(filepath.Join(projectCfgDir, "config.yaml"), []byte(projectCfg), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	if err := os.Chdir(project); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Display.Width != 800 {
		t.Errorf("project width should win, got %d", cfg.Display.Width)
	}
	if cfg.Display.Height != 272 {
		t.Errorf("user height should survive, got %d", cfg.Display.Height)
	}
	if cfg.Touch.TapHold != 700*time.Millisecond {
		t.Errorf("tap hold = %v, want 700ms", cfg.Touch.TapHold)
	}
	if cfg.Touch.DoubleTap != config.DefaultDoubleTap {
		t.Errorf("untouched default changed: %v", cfg.Touch.DoubleTap)
	}
	if cfg.Apps.Shell != "launcher" {
		t.Errorf("shell = %q", cfg.Apps.Shell)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("display:\n  width: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := config.LoadFromPath(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !glinterrors.IsCode(err, glinterrors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := config.LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if !glinterrors.IsCode(err, glinterrors.ErrCodeConfigLoad) {
		t.Fatalf("expected CONFIG_LOAD, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GLINT_LOG_LEVEL", "warn")
	t.Setenv("GLINT_MAX_CONTEXTS", "4")
	t.Setenv("GLINT_FIRST_SAMPLE_TAP", "off")
	t.Setenv("GLINT_HEADLESS", "yes")

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Apps.MaxContexts != 4 {
		t.Errorf("max contexts = %d", cfg.Apps.MaxContexts)
	}
	if cfg.Touch.FirstSampleTap {
		t.Error("first sample tap should be disabled by env")
	}
	if !cfg.Display.Headless {
		t.Error("headless should be enabled by env")
	}
}

func TestValidate_IPC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IPC.Enabled = true
	cfg.IPC.Bind = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bind validation error")
	}

	cfg.IPC.Bind = "0.0.0.0:4590"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.ValidationWarnings()) == 0 {
		t.Error("expected non-loopback warning")
	}
}

func TestValidate_FadeStepBounds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Overlay.FadeStep = 300
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected fade step error")
	}
}

func TestResolveModuleDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := config.DefaultConfig()
	cfg.Apps.ModuleDir = "~/apps"
	if got := config.ResolveModuleDir(cfg); got != filepath.Join(home, "apps") {
		t.Errorf("ResolveModuleDir = %q", got)
	}
}
