package geometry

import (
	"math"

	"github.com/cjeanneret/SweepGo/internal/config"
)

// StepsCalculator converts gimbal angles (radians) to motor step counts.
type StepsCalculator struct {
	panStepsPerRadian  float64
	tiltStepsPerRadian float64
}

// NewStepsCalculator creates a step calculator from configuration.
func NewStepsCalculator(cfg *config.Config) *StepsCalculator {
	panMicrostepsPerRev := float64(cfg.PanStepper.StepsPerRev * cfg.PanStepper.Microstepping)
	tiltMicrostepsPerRev := float64(cfg.TiltStepper.StepsPerRev * cfg.TiltStepper.Microstepping)

	return &StepsCalculator{
		panStepsPerRadian:  panMicrostepsPerRev / (2 * math.Pi),
		tiltStepsPerRadian: tiltMicrostepsPerRev / (2 * math.Pi),
	}
}

// PanSteps converts a pan angle (radians) to motor steps, rounded to
// the nearest reachable step.
func (s *StepsCalculator) PanSteps(angle float64) int {
	return int(math.Round(angle * s.panStepsPerRadian))
}

// TiltSteps converts a tilt angle (radians) to motor steps, rounded to
// the nearest reachable step.
func (s *StepsCalculator) TiltSteps(angle float64) int {
	return int(math.Round(angle * s.tiltStepsPerRadian))
}
