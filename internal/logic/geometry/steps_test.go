package geometry

import (
	"math"
	"testing"

	"github.com/cjeanneret/SweepGo/internal/config"
)

func newStepsConfig(stepsPerRev, microstepping int) *config.Config {
	return &config.Config{
		PanStepper: config.StepperConfig{
			StepsPerRev:   stepsPerRev,
			Microstepping: microstepping,
		},
		TiltStepper: config.StepperConfig{
			StepsPerRev:   stepsPerRev,
			Microstepping: microstepping,
		},
	}
}

func TestStepsCalculator_KnownConfig(t *testing.T) {
	// 200 steps/rev * 16 microstepping = 3200 microsteps per 2*pi.
	sc := NewStepsCalculator(newStepsConfig(200, 16))

	cases := []struct {
		name  string
		angle float64
		want  int
	}{
		{"quarter_turn", math.Pi / 2, 800},
		{"negative_quarter", -math.Pi / 2, -800},
		{"zero", 0, 0},
		{"full_turn", 2 * math.Pi, 3200},
		{"half_turn", math.Pi, 1600},
	}
	for _, tc := range cases {
		t.Run("Pan_"+tc.name, func(t *testing.T) {
			if got := sc.PanSteps(tc.angle); got != tc.want {
				t.Errorf("PanSteps(%v) = %d, want %d", tc.angle, got, tc.want)
			}
		})
		t.Run("Tilt_"+tc.name, func(t *testing.T) {
			if got := sc.TiltSteps(tc.angle); got != tc.want {
				t.Errorf("TiltSteps(%v) = %d, want %d", tc.angle, got, tc.want)
			}
		})
	}
}

func TestStepsCalculator_RoundsToNearestStep(t *testing.T) {
	// 3200 microsteps per rev: one step = 2*pi/3200 rad. Half a step
	// rounds to the nearest whole step rather than truncating.
	sc := NewStepsCalculator(newStepsConfig(200, 16))
	oneStep := 2 * math.Pi / 3200

	if got := sc.PanSteps(0.6 * oneStep); got != 1 {
		t.Errorf("PanSteps(0.6 step) = %d, want 1", got)
	}
	if got := sc.PanSteps(0.4 * oneStep); got != 0 {
		t.Errorf("PanSteps(0.4 step) = %d, want 0", got)
	}
}

func TestStepsCalculator_AsymmetricAxes(t *testing.T) {
	cfg := &config.Config{
		PanStepper: config.StepperConfig{
			StepsPerRev:   200,
			Microstepping: 16,
		},
		TiltStepper: config.StepperConfig{
			StepsPerRev:   400,
			Microstepping: 8,
		},
	}
	sc := NewStepsCalculator(cfg)

	if got := sc.PanSteps(math.Pi / 2); got != 800 {
		t.Errorf("pan steps = %d, want 800", got)
	}
	if got := sc.TiltSteps(math.Pi / 2); got != 800 {
		t.Errorf("tilt steps = %d, want 800", got)
	}

	sc2 := NewStepsCalculator(newStepsConfig(400, 16))
	if got := sc2.TiltSteps(math.Pi / 2); got != 1600 {
		t.Errorf("tilt steps at 400x16 = %d, want 1600", got)
	}
}
