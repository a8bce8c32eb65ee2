package motion

import (
	"github.com/cjeanneret/SweepGo/internal/debug"
	"github.com/cjeanneret/SweepGo/internal/hw/stepper"
	"github.com/cjeanneret/SweepGo/internal/logic/geometry"
)

// Controller orchestrates pan/tilt movements via two stepper motors.
// It tracks the head's current position in microsteps relative to the
// survey center (where it is assumed to start), so callers work in
// absolute gimbal angles and the controller issues delta moves.
type Controller struct {
	pan   *stepper.Stepper
	tilt  *stepper.Stepper
	steps *geometry.StepsCalculator

	panPos  int // current pan position, microsteps from center
	tiltPos int // current tilt position, microsteps from center
}

func NewController(pan, tilt *stepper.Stepper, steps *geometry.StepsCalculator) *Controller {
	return &Controller{
		pan:   pan,
		tilt:  tilt,
		steps: steps,
	}
}

// MoveTo points the head at the given absolute pan/tilt angles
// (radians, relative to the survey center). Pan moves first, then tilt.
func (c *Controller) MoveTo(pan, tilt float64) error {
	panTarget := c.steps.PanSteps(pan)
	tiltTarget := c.steps.TiltSteps(tilt)

	if d := panTarget - c.panPos; d != 0 {
		debug.Move("pan", d, directionName(d, "right", "left"))
		if err := c.pan.MoveSteps(d); err != nil {
			return err
		}
		c.panPos = panTarget
	}
	if d := tiltTarget - c.tiltPos; d != 0 {
		debug.Move("tilt", d, directionName(d, "up", "down"))
		if err := c.tilt.MoveSteps(d); err != nil {
			return err
		}
		c.tiltPos = tiltTarget
	}
	return nil
}

// Recenter returns the head to pan=0, tilt=0.
func (c *Controller) Recenter() error {
	return c.MoveTo(0, 0)
}

// Position returns the current pan/tilt position in microsteps from center.
func (c *Controller) Position() (panSteps, tiltSteps int) {
	return c.panPos, c.tiltPos
}

// EnableMotors powers both motor drivers (holding torque on).
func (c *Controller) EnableMotors() error {
	if err := c.pan.Enable(); err != nil {
		return err
	}
	return c.tilt.Enable()
}

// DisableMotors cuts both motor drivers (no holding torque). Used
// during exposure to avoid vibration.
func (c *Controller) DisableMotors() error {
	if err := c.pan.Disable(); err != nil {
		return err
	}
	return c.tilt.Disable()
}

func directionName(delta int, positive, negative string) string {
	if delta > 0 {
		return positive
	}
	return negative
}
