package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StepperConfig holds the configuration for a stepper motor axis.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
}

// CameraConfig describes how to trigger the camera.
// Type selects a concrete implementation (e.g., "nikon_d90_gpio").
type CameraConfig struct {
	Type            string `yaml:"type"`               // e.g., "nikon_d90_gpio"
	FocusPin        int    `yaml:"focus_pin"`          // GPIO pin for FOCUS line
	ShutterPin      int    `yaml:"shutter_pin"`        // GPIO pin for SHUTTER line
	FocusDelayMs    int    `yaml:"focus_delay_ms"`     // autofocus delay (ms)
	ShutterDelayMs  int    `yaml:"shutter_delay_ms"`   // shutter hold time (ms)
	PostShotDelayMs int    `yaml:"post_shot_delay_ms"` // delay after shot before movement (ms)
}

// LensConfig describes the mounted lens.
type LensConfig struct {
	Name          string  `yaml:"name"`            // e.g., "Nikkor 35mm f/1.8"
	FocalLengthMm float64 `yaml:"focal_length_mm"` // focal length in use
}

// SensorConfig is optional: physical sensor size in mm.
// Used to derive the FOV when no explicit FOV override is set.
type SensorConfig struct {
	WidthMm  float64 `yaml:"width_mm"`  // e.g., 23.6 for Nikon APS-C
	HeightMm float64 `yaml:"height_mm"` // e.g., 15.8
}

// SurveyConfig describes the angular region the panorama must cover
// and the guarantees the plan has to hold.
type SurveyConfig struct {
	PanRadiusDeg         float64 `yaml:"pan_radius_deg"`         // cover -radius..+radius around center (default: 90)
	TiltRadiusDeg        float64 `yaml:"tilt_radius_deg"`        // cover -radius..+radius around center (default: 15)
	OverlapPercent       float64 `yaml:"overlap_percent"`        // required overlap between adjacent shots (0-100)
	AttitudeToleranceDeg float64 `yaml:"attitude_tolerance_deg"` // worst-case pointing error margin (default: 0)
	HFovDeg              float64 `yaml:"h_fov_deg"`              // explicit horizontal FOV; 0 = derive from sensor+lens
	VFovDeg              float64 `yaml:"v_fov_deg"`              // explicit vertical FOV; 0 = derive from sensor+lens
	TargetsFile          string  `yaml:"targets_file"`           // optional pose list for targets mode
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	MoveSpeedMs int  `yaml:"move_speed_ms"` // delay between motor steps
	DebugLevel  int  `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO    bool `yaml:"mock_gpio"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	PanStepper  StepperConfig  `yaml:"pan_stepper"`
	TiltStepper StepperConfig  `yaml:"tilt_stepper"`
	Camera      CameraConfig   `yaml:"camera"`
	Lens        LensConfig     `yaml:"lens"`
	Sensor      *SensorConfig  `yaml:"sensor,omitempty"` // optional
	Survey      SurveyConfig   `yaml:"survey"`
	Defaults    DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that a config path points at a .yaml file
// inside the configs/ directory, rejecting traversal outside it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension, got %q", path)
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		// Absolute paths are allowed only if they contain a configs/ element.
		if !strings.Contains(clean, string(filepath.Separator)+"configs"+string(filepath.Separator)) {
			return fmt.Errorf("config file must live under a configs/ directory: %q", path)
		}
	} else {
		if strings.HasPrefix(clean, "..") {
			return fmt.Errorf("config path escapes working directory: %q", path)
		}
		if filepath.Base(filepath.Dir(clean)) != "configs" {
			return fmt.Errorf("config file must live under configs/: %q", path)
		}
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Camera.Type == "" {
		return nil, fmt.Errorf("camera.type is required")
	}
	if cfg.Defaults.MoveSpeedMs <= 0 {
		cfg.Defaults.MoveSpeedMs = 2 // reasonable default
	}
	if cfg.Survey.OverlapPercent < 0 || cfg.Survey.OverlapPercent >= 100 {
		return nil, fmt.Errorf("survey.overlap_percent must be in [0, 100), got %.2f", cfg.Survey.OverlapPercent)
	}
	if cfg.Survey.OverlapPercent == 0 {
		cfg.Survey.OverlapPercent = 30 // reasonable default (30%)
	}
	if cfg.Survey.PanRadiusDeg < 0 || cfg.Survey.PanRadiusDeg > 180 {
		return nil, fmt.Errorf("survey.pan_radius_deg must be in [0, 180], got %.2f", cfg.Survey.PanRadiusDeg)
	}
	if cfg.Survey.TiltRadiusDeg < 0 || cfg.Survey.TiltRadiusDeg > 90 {
		return nil, fmt.Errorf("survey.tilt_radius_deg must be in [0, 90], got %.2f", cfg.Survey.TiltRadiusDeg)
	}
	if cfg.Survey.AttitudeToleranceDeg < 0 {
		return nil, fmt.Errorf("survey.attitude_tolerance_deg must be >= 0, got %.2f", cfg.Survey.AttitudeToleranceDeg)
	}
	if cfg.Survey.HFovDeg < 0 || cfg.Survey.VFovDeg < 0 {
		return nil, fmt.Errorf("survey FOV overrides must be >= 0")
	}
	if cfg.Survey.HFovDeg == 0 || cfg.Survey.VFovDeg == 0 {
		// FOV will be derived from sensor geometry; sensor+lens must be usable.
		if cfg.Sensor == nil {
			return nil, fmt.Errorf("sensor block is required when survey FOV is not set explicitly")
		}
		if cfg.Lens.FocalLengthMm <= 0 {
			return nil, fmt.Errorf("lens.focal_length_mm must be > 0")
		}
	}

	// Default values for camera delays
	if cfg.Camera.FocusDelayMs <= 0 {
		cfg.Camera.FocusDelayMs = 500 // 500ms for autofocus
	}
	if cfg.Camera.ShutterDelayMs <= 0 {
		cfg.Camera.ShutterDelayMs = 200 // 200ms shutter hold
	}
	if cfg.Camera.PostShotDelayMs <= 0 {
		cfg.Camera.PostShotDelayMs = 300 // 300ms after shot before movement
	}

	return &cfg, nil
}

const degToRad = math.Pi / 180.0

// MoveSpeed returns the duration between two motor steps.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond
}

// OverlapRatio returns the overlap as a ratio (0.0 to 1.0).
func (c *Config) OverlapRatio() float64 {
	return c.Survey.OverlapPercent / 100.0
}

// PanRadius returns the pan coverage radius in radians.
func (c *Config) PanRadius() float64 {
	return c.Survey.PanRadiusDeg * degToRad
}

// TiltRadius returns the tilt coverage radius in radians.
func (c *Config) TiltRadius() float64 {
	return c.Survey.TiltRadiusDeg * degToRad
}

// AttitudeTolerance returns the pointing error margin in radians.
func (c *Config) AttitudeTolerance() float64 {
	return c.Survey.AttitudeToleranceDeg * degToRad
}

// HFovOverride returns the explicit horizontal FOV in radians, or 0 if
// the FOV should be derived from sensor geometry.
func (c *Config) HFovOverride() float64 {
	return c.Survey.HFovDeg * degToRad
}

// VFovOverride returns the explicit vertical FOV in radians, or 0 if
// the FOV should be derived from sensor geometry.
func (c *Config) VFovOverride() float64 {
	return c.Survey.VFovDeg * degToRad
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// PostShotDelay returns the delay after shot before movement.
func (c *Config) PostShotDelay() time.Duration {
	return time.Duration(c.Camera.PostShotDelayMs) * time.Millisecond
}
