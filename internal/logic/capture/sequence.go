package capture

import (
	"context"
	"time"

	"github.com/cjeanneret/SweepGo/internal/debug"
	"github.com/cjeanneret/SweepGo/internal/hw/camera"
	"github.com/cjeanneret/SweepGo/internal/logic/motion"
	"github.com/cjeanneret/SweepGo/internal/logic/pano"
	"github.com/cjeanneret/SweepGo/internal/logic/poses"
)

// Sequence contains the high-level capture logic: it walks a plan's
// orientations in emitted order, pointing the head and triggering the
// camera one cell at a time, advancing only after each shot completes.
type Sequence struct {
	motion *motion.Controller
	camera camera.Camera
}

func NewSequence(m *motion.Controller, c camera.Camera) *Sequence {
	return &Sequence{
		motion: m,
		camera: c,
	}
}

// SurveyParams defines the parameters for a panorama survey run.
type SurveyParams struct {
	Plan *pano.Plan // computed orientation plan

	Delay         time.Duration // settle delay after movement
	ShotDelay     time.Duration // delay before shot (stabilization)
	PostShotDelay time.Duration // delay after shot before movement
}

// RunSurvey executes the plan's orientation sequence. The emitted order
// is already serpentine (rows bottom-to-top, alternating pan
// direction), so the walk is a straight iteration. Cancellation is via
// ctx; the head is recentered on successful completion.
func (s *Sequence) RunSurvey(ctx context.Context, p SurveyParams) error {
	plan := p.Plan
	total := len(plan.Orientations)

	_ = s.motion.EnableMotors()

	lastRow := -1
	for i, att := range plan.Orientations {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if att.Iy != lastRow {
			direction := "left-to-right"
			if att.Iy%2 == 1 {
				direction = "right-to-left"
			}
			debug.Row(att.Iy+1, plan.Rows, direction)
			lastRow = att.Iy
		}

		debug.Verbose("Orientation %d/%d: pan=%.4f tilt=%.4f (ix=%d, iy=%d)",
			i+1, total, att.Pan, att.Tilt, att.Ix, att.Iy)
		if err := s.motion.MoveTo(att.Pan, att.Tilt); err != nil {
			return err
		}
		time.Sleep(p.Delay)

		if err := s.shoot(att.Ix, att.Iy, p.ShotDelay, p.PostShotDelay); err != nil {
			return err
		}
	}

	debug.Live("Survey complete, recentering")
	return s.motion.Recenter()
}

// TargetsParams defines the parameters for a pose-list run.
type TargetsParams struct {
	Targets []poses.Pose // loaded target poses, executed in file order

	Delay         time.Duration
	ShotDelay     time.Duration
	PostShotDelay time.Duration
}

// RunTargets points the head at each target's orientation in turn and
// takes one shot per target. Target positions are informational on a
// fixed head; only the orientation is realized.
func (s *Sequence) RunTargets(ctx context.Context, p TargetsParams) error {
	_ = s.motion.EnableMotors()

	for i, target := range p.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		panAngle, tiltAngle := target.Orientation.PanTilt()
		debug.Live("Target %d/%d: pan=%.4f tilt=%.4f", i+1, len(p.Targets), panAngle, tiltAngle)
		if err := s.motion.MoveTo(panAngle, tiltAngle); err != nil {
			return err
		}
		time.Sleep(p.Delay)

		if err := s.shoot(i, 0, p.ShotDelay, p.PostShotDelay); err != nil {
			return err
		}
	}

	debug.Live("Targets complete, recentering")
	return s.motion.Recenter()
}

// shoot runs one capture with motors disabled during exposure
// (reduces vibration, no holding torque).
func (s *Sequence) shoot(ix, iy int, shotDelay, postShotDelay time.Duration) error {
	_ = s.motion.DisableMotors()
	time.Sleep(shotDelay)
	if err := s.camera.Shoot(); err != nil {
		_ = s.motion.EnableMotors()
		return err
	}
	debug.Shot(ix, iy)
	time.Sleep(postShotDelay)
	return s.motion.EnableMotors()
}
