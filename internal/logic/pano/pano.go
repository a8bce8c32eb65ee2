// Package pano computes the set of pan/tilt orientations needed to
// fully photograph a bounded angular region with a camera of fixed
// rectangular field of view, guaranteeing a minimum overlap between
// adjacent shots even under bounded actuator pointing error.
//
// The planner works purely in gimbal angle space: pan and tilt are
// treated as independent axes and the FOV footprint is a fixed
// rectangle in that space. Angles are relative to the survey center,
// which the caller points wherever it wants.
package pano

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// eps absorbs float rounding when the coverage range is an exact
// multiple of the step, so ceil does not add a spurious row or column.
const eps = 1e-9

// PanoAttitude is one planned camera pointing target.
type PanoAttitude struct {
	Pan  float64 // pan angle, radians, within [-PanRadius, +PanRadius]
	Tilt float64 // tilt angle, radians, within [-TiltRadius, +TiltRadius]
	Iy   int     // row index, 0 = bottommost row, increases with tilt
	Ix   int     // column index, 0 = leftmost column, increases with pan
}

// Params describes the coverage a plan must achieve.
// All angles are radians; Overlap is a fraction in [0, 1).
type Params struct {
	PanRadius         float64 // cover pan range -PanRadius .. +PanRadius
	TiltRadius        float64 // cover tilt range -TiltRadius .. +TiltRadius
	HFov              float64 // horizontal field of view of one shot
	VFov              float64 // vertical field of view of one shot
	Overlap           float64 // required overlap between adjacent shots
	AttitudeTolerance float64 // worst-case pointing error of the actuator
}

// Plan is the computed orientation sequence. Orientations are in
// execution order: rows bottom-to-top, serpentine within rows.
type Plan struct {
	Orientations []PanoAttitude
	Rows         int // number of tilt rows
	Cols         int // number of pan columns per row
}

// ConfigError reports that the requested overlap and attitude tolerance
// leave no positive coverage advance per step on the given axis.
type ConfigError struct {
	Axis string  // "pan" or "tilt"
	Step float64 // the non-positive effective step that was computed
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pano: %s effective step %g <= 0; overlap and attitude tolerance leave no coverage advance", e.Axis, e.Step)
}

// CalculatePlan computes the full orientation grid for the given
// coverage parameters. It is deterministic and holds no state; the
// returned Plan is owned by the caller.
func CalculatePlan(p Params) (*Plan, error) {
	tilts, err := rowCenters(p)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Rows: len(tilts)}
	for iy, tilt := range tilts {
		pans, err := columnCenters(p, tilt)
		if err != nil {
			return nil, err
		}
		if iy == 0 {
			plan.Cols = len(pans)
			plan.Orientations = make([]PanoAttitude, 0, len(tilts)*len(pans))
		}

		// Serpentine traversal: even rows left-to-right, odd rows
		// right-to-left. Ix always records the true left-to-right
		// column position; only the emission order alternates.
		if iy%2 == 0 {
			for ix, pan := range pans {
				plan.Orientations = append(plan.Orientations, PanoAttitude{Pan: pan, Tilt: tilt, Iy: iy, Ix: ix})
			}
		} else {
			for ix := len(pans) - 1; ix >= 0; ix-- {
				plan.Orientations = append(plan.Orientations, PanoAttitude{Pan: pans[ix], Tilt: tilt, Iy: iy, Ix: ix})
			}
		}
	}
	return plan, nil
}

// rowCenters returns the tilt angle of every row, bottom-to-top.
func rowCenters(p Params) ([]float64, error) {
	return axisCenters(p.TiltRadius, p.VFov, p.Overlap, p.AttitudeTolerance, "tilt")
}

// columnCenters returns the pan angle of every column in one row,
// left-to-right. The row tilt is informational: pan and tilt are
// independent gimbal axes, so the pan step does not depend on it.
func columnCenters(p Params, tilt float64) ([]float64, error) {
	_ = tilt
	return axisCenters(p.PanRadius, p.HFov, p.Overlap, p.AttitudeTolerance, "pan")
}

// axisCenters partitions one axis: image centers covering
// -radius .. +radius such that adjacent shots keep the requested
// overlap even if each realized angle is off by up to tolerance.
//
// The effective step subtracts the tolerance once per side of each
// image edge; the count rounds up so the boundary images land exactly
// on ±radius (never beyond) with uniform interior spacing.
func axisCenters(radius, fov, overlap, tolerance float64, axis string) ([]float64, error) {
	step := fov*(1-overlap) - 2*tolerance
	if step <= 0 {
		return nil, &ConfigError{Axis: axis, Step: step}
	}
	if radius == 0 {
		return []float64{0}, nil
	}

	n := int(math.Ceil(2*radius/step-eps)) + 1
	if n < 2 {
		// A radius below the rounding guard still means one shot
		// centered on the axis covers the whole range.
		return []float64{0}, nil
	}
	centers := floats.Span(make([]float64, n), -radius, radius)
	// Span's endpoints are exact, but guard against accumulated
	// rounding ever pushing an outer center past the physical limit.
	centers[0], centers[n-1] = -radius, radius
	return centers, nil
}
