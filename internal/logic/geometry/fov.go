package geometry

import (
	"fmt"
	"math"

	"github.com/cjeanneret/SweepGo/internal/config"
)

// FOVCalculator derives the camera field of view from lens and sensor
// configuration. The planner itself takes FOV values directly; this
// calculator is how the rest of the application obtains them when the
// config does not set an explicit override.
type FOVCalculator struct {
	cfg *config.Config
}

// NewFOVCalculator creates a new FOV calculator.
// Returns an error if sensor information is not available.
func NewFOVCalculator(cfg *config.Config) (*FOVCalculator, error) {
	if cfg.Sensor == nil {
		return nil, fmt.Errorf("sensor configuration is required for FOV calculations")
	}
	if cfg.Lens.FocalLengthMm <= 0 {
		return nil, fmt.Errorf("lens focal length is required for FOV calculations")
	}
	return &FOVCalculator{cfg: cfg}, nil
}

// HorizontalFOV calculates the horizontal field of view in radians.
// Formula: FOV = 2 × arctan(sensor_width / (2 × focal_length))
func (f *FOVCalculator) HorizontalFOV() float64 {
	sensorWidth := f.cfg.Sensor.WidthMm
	focalLength := f.cfg.Lens.FocalLengthMm
	return 2.0 * math.Atan(sensorWidth/(2.0*focalLength))
}

// VerticalFOV calculates the vertical field of view in radians.
// Formula: FOV = 2 × arctan(sensor_height / (2 × focal_length))
func (f *FOVCalculator) VerticalFOV() float64 {
	sensorHeight := f.cfg.Sensor.HeightMm
	focalLength := f.cfg.Lens.FocalLengthMm
	return 2.0 * math.Atan(sensorHeight/(2.0*focalLength))
}
