package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	glinterrors "github.com/odvcencio/glint/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultWidth  = 320
	DefaultHeight = 240

	DefaultPollInterval     = 25 * time.Millisecond
	DefaultNoiseThreshold   = 10
	DefaultGestureThreshold = 50
	DefaultTapHold          = 500 * time.Millisecond
	DefaultHoldPoll         = 10 * time.Millisecond
	DefaultDoubleTap        = 500 * time.Millisecond
	DefaultGestureMax       = 750 * time.Millisecond

	DefaultAutoHide      = time.Second
	DefaultAnimationTick = 25 * time.Millisecond
	DefaultFlingStep     = 24

	DefaultOverlayHold = 2 * time.Second
	DefaultFadeTick    = 30 * time.Millisecond
	DefaultFadeStep    = 16

	DefaultTickRate     = time.Second
	DefaultIPCBind      = "127.0.0.1:4590"
	DefaultNATSSubject  = "glint.bus"
	DefaultBroadcastRPS = 20
)

// Config represents the complete glint configuration
type Config struct {
	Display   DisplayConfig   `yaml:"display"`
	Touch     TouchConfig     `yaml:"touch"`
	Scroll    ScrollConfig    `yaml:"scroll"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Apps      AppsConfig      `yaml:"apps"`
	Bus       BusConfig       `yaml:"bus"`
	IPC       IPCConfig       `yaml:"ipc"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DisplayConfig describes the physical screen.
type DisplayConfig struct {
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Headless   bool          `yaml:"headless"`    // Use the in-memory device instead of the terminal
	ShowCursor bool          `yaml:"show_cursor"` // Draw the pointer glyph
	TickRate   time.Duration `yaml:"tick_rate"`   // Clock refresher period
}

// TouchConfig tunes the touch pipeline thresholds.
type TouchConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	NoiseThreshold   int           `yaml:"noise_threshold"`
	GestureThreshold int           `yaml:"gesture_threshold"`
	TapHold          time.Duration `yaml:"tap_hold"`
	HoldPoll         time.Duration `yaml:"hold_poll"`
	DoubleTap        time.Duration `yaml:"double_tap"`
	GestureMax       time.Duration `yaml:"gesture_max"`
	FirstSampleTap   bool          `yaml:"first_sample_tap"` // Treat the first sample after start as a tap
}

// ScrollConfig tunes scrollable regions.
type ScrollConfig struct {
	AutoHide      time.Duration `yaml:"auto_hide"`
	AnimationTick time.Duration `yaml:"animation_tick"`
	FlingStep     int           `yaml:"fling_step"` // Step magnitude at force 1.0
	Strict        bool          `yaml:"strict"`     // Reject misordered ranges instead of clamping
}

// OverlayConfig tunes the transient notification overlay.
type OverlayConfig struct {
	Hold     time.Duration `yaml:"hold"`
	FadeTick time.Duration `yaml:"fade_tick"`
	FadeStep int           `yaml:"fade_step"`
}

// AppsConfig controls the module host.
type AppsConfig struct {
	ModuleDir   string `yaml:"module_dir"`
	Shell       string `yaml:"shell"`        // Module launched at startup
	MaxContexts int    `yaml:"max_contexts"` // 0 means unbounded
	Watch       bool   `yaml:"watch"`        // Watch module_dir for descriptor changes
}

// BusConfig controls the optional NATS bridge.
type BusConfig struct {
	NATSURL string        `yaml:"nats_url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// IPCConfig controls the device management API.
type IPCConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Bind         string  `yaml:"bind"`
	BroadcastRPS float64 `yaml:"broadcast_rps"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Tracing bool `yaml:"tracing"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Width:      DefaultWidth,
			Height:     DefaultHeight,
			ShowCursor: true,
			TickRate:   DefaultTickRate,
		},
		Touch: TouchConfig{
			PollInterval:     DefaultPollInterval,
			NoiseThreshold:   DefaultNoiseThreshold,
			GestureThreshold: DefaultGestureThreshold,
			TapHold:          DefaultTapHold,
			HoldPoll:         DefaultHoldPoll,
			DoubleTap:        DefaultDoubleTap,
			GestureMax:       DefaultGestureMax,
			FirstSampleTap:   true,
		},
		Scroll: ScrollConfig{
			AutoHide:      DefaultAutoHide,
			AnimationTick: DefaultAnimationTick,
			FlingStep:     DefaultFlingStep,
		},
		Overlay: OverlayConfig{
			Hold:     DefaultOverlayHold,
			FadeTick: DefaultFadeTick,
			FadeStep: DefaultFadeStep,
		},
		Apps: AppsConfig{
			ModuleDir: "~/.glint/modules",
			Shell:     "shell",
		},
		Bus: BusConfig{
			Subject: DefaultNATSSubject,
			Timeout: 5 * time.Second,
		},
		IPC: IPCConfig{
			Bind:         DefaultIPCBind,
			BroadcastRPS: DefaultBroadcastRPS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".glint", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, glinterrors.Wrap(err, glinterrors.ErrCodeConfigLoad, "loading user config")
		}
	}

	projectConfigPath := filepath.Join(".", ".glint", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, glinterrors.Wrap(err, glinterrors.ErrCodeConfigLoad, "loading project config")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, glinterrors.Wrap(err, glinterrors.ErrCodeConfigLoad, "loading config from "+path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GLINT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GLINT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("GLINT_MODULE_DIR"); v != "" {
		cfg.Apps.ModuleDir = v
	}
	if v := os.Getenv("GLINT_SHELL"); v != "" {
		cfg.Apps.Shell = v
	}
	if v := os.Getenv("GLINT_NATS_URL"); v != "" {
		cfg.Bus.NATSURL = v
	}
	if v := os.Getenv("GLINT_IPC_BIND"); v != "" {
		cfg.IPC.Bind = v
	}
	if v := os.Getenv("GLINT_MAX_CONTEXTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Apps.MaxContexts = n
		}
	}
	if val, ok := envBool("GLINT_HEADLESS"); ok {
		cfg.Display.Headless = val
	}
	if val, ok := envBool("GLINT_IPC_ENABLED"); ok {
		cfg.IPC.Enabled = val
	}
	if val, ok := envBool("GLINT_FIRST_SAMPLE_TAP"); ok {
		cfg.Touch.FirstSampleTap = val
	}
	if val, ok := envBool("GLINT_TRACING"); ok {
		cfg.Telemetry.Tracing = val
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func isLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return glinterrors.New(glinterrors.ErrCodeConfigInvalid, msg)
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return invalid(fmt.Sprintf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.Display.TickRate < 0 {
		return invalid("display.tick_rate must not be negative")
	}

	durations := map[string]time.Duration{
		"touch.poll_interval":   c.Touch.PollInterval,
		"touch.tap_hold":        c.Touch.TapHold,
		"touch.hold_poll":       c.Touch.HoldPoll,
		"touch.double_tap":      c.Touch.DoubleTap,
		"touch.gesture_max":     c.Touch.GestureMax,
		"scroll.auto_hide":      c.Scroll.AutoHide,
		"scroll.animation_tick": c.Scroll.AnimationTick,
		"overlay.fade_tick":     c.Overlay.FadeTick,
	}
	for name, d := range durations {
		if d <= 0 {
			return invalid(name + " must be positive")
		}
	}
	if c.Touch.NoiseThreshold < 0 {
		return invalid("touch.noise_threshold must not be negative")
	}
	if c.Touch.GestureThreshold <= 0 {
		return invalid("touch.gesture_threshold must be positive")
	}
	if c.Scroll.FlingStep <= 0 {
		return invalid("scroll.fling_step must be positive")
	}
	if c.Overlay.FadeStep <= 0 || c.Overlay.FadeStep > 256 {
		return invalid("overlay.fade_step must be within 1..256")
	}
	if c.Apps.MaxContexts < 0 {
		return invalid("apps.max_contexts must not be negative")
	}
	if c.IPC.Enabled {
		if _, _, err := net.SplitHostPort(c.IPC.Bind); err != nil {
			return invalid("ipc.bind must be host:port")
		}
		if c.IPC.BroadcastRPS <= 0 {
			return invalid("ipc.broadcast_rps must be positive")
		}
	}
	return nil
}

// ValidationWarnings returns non-fatal configuration concerns.
func (c *Config) ValidationWarnings() []string {
	var warnings []string
	if c.IPC.Enabled && !isLoopbackBindAddress(c.IPC.Bind) {
		warnings = append(warnings, fmt.Sprintf("ipc.bind %s is not a loopback address; the management API is unauthenticated", c.IPC.Bind))
	}
	if c.Touch.DoubleTap > c.Touch.TapHold {
		warnings = append(warnings, "touch.double_tap exceeds touch.tap_hold; slow double taps may register as holds")
	}
	if c.Touch.PollInterval > c.Touch.TapHold {
		warnings = append(warnings, "touch.poll_interval exceeds touch.tap_hold")
	}
	return warnings
}
