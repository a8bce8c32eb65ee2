package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/SweepGo/internal/config"
	"github.com/cjeanneret/SweepGo/internal/hw/gpio"
	"github.com/cjeanneret/SweepGo/internal/hw/stepper"
	"github.com/cjeanneret/SweepGo/internal/logic/geometry"
	"github.com/cjeanneret/SweepGo/internal/logic/motion"
	"github.com/cjeanneret/SweepGo/internal/logic/pano"
	"github.com/cjeanneret/SweepGo/internal/logic/poses"
)

// mockCamera records Shoot calls.
type mockCamera struct {
	mu    sync.Mutex
	shots int
	fail  bool
}

func (m *mockCamera) Shoot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("shutter jam")
	}
	m.shots++
	return nil
}

func (m *mockCamera) shotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shots
}

func newTestController() *motion.Controller {
	drv := &gpio.MockDriver{}
	pan := stepper.NewStepper(drv, stepper.Config{
		StepPin: 1, DirPin: 2, EnablePin: 3,
		StepsPerRev: 200, Microstepping: 16,
		StepDelay: 1 * time.Microsecond,
	})
	tilt := stepper.NewStepper(drv, stepper.Config{
		StepPin: 4, DirPin: 5, EnablePin: 6,
		StepsPerRev: 200, Microstepping: 16,
		StepDelay: 1 * time.Microsecond,
	})
	steps := geometry.NewStepsCalculator(&config.Config{
		PanStepper:  config.StepperConfig{StepsPerRev: 200, Microstepping: 16},
		TiltStepper: config.StepperConfig{StepsPerRev: 200, Microstepping: 16},
	})
	return motion.NewController(pan, tilt, steps)
}

func mustPlan(t *testing.T, p pano.Params) *pano.Plan {
	t.Helper()
	plan, err := pano.CalculatePlan(p)
	if err != nil {
		t.Fatalf("CalculatePlan: %v", err)
	}
	return plan
}

func fastParams(plan *pano.Plan) SurveyParams {
	return SurveyParams{
		Plan:          plan,
		Delay:         1 * time.Microsecond,
		ShotDelay:     1 * time.Microsecond,
		PostShotDelay: 1 * time.Microsecond,
	}
}

func TestRunSurvey_SingleOrientation(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 0, TiltRadius: 0, HFov: 0.5, VFov: 0.5, Overlap: 0.3})

	if err := seq.RunSurvey(context.Background(), fastParams(plan)); err != nil {
		t.Fatalf("RunSurvey: %v", err)
	}
	if cam.shotCount() != 1 {
		t.Errorf("shots = %d, want 1", cam.shotCount())
	}
}

func TestRunSurvey_ShotPerCell(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 0.5, TiltRadius: 0.5, HFov: 0.5, VFov: 0.5, Overlap: 0})
	want := plan.Rows * plan.Cols

	if err := seq.RunSurvey(context.Background(), fastParams(plan)); err != nil {
		t.Fatalf("RunSurvey: %v", err)
	}
	if cam.shotCount() != want {
		t.Errorf("shots = %d, want %d (%dx%d)", cam.shotCount(), want, plan.Rows, plan.Cols)
	}
}

func TestRunSurvey_RecentersWhenDone(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 0.5, TiltRadius: 0.5, HFov: 0.5, VFov: 0.5, Overlap: 0})

	if err := seq.RunSurvey(context.Background(), fastParams(plan)); err != nil {
		t.Fatal(err)
	}
	pan, tilt := ctrl.Position()
	if pan != 0 || tilt != 0 {
		t.Errorf("position after survey = (%d, %d), want (0, 0)", pan, tilt)
	}
}

func TestRunSurvey_ContextCancellation(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 3, TiltRadius: 1.5, HFov: 0.1, VFov: 0.1, Overlap: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := seq.RunSurvey(ctx, fastParams(plan))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if cam.shotCount() != 0 {
		t.Errorf("shots = %d, want 0 after immediate cancel", cam.shotCount())
	}
}

func TestRunSurvey_CancelMidSequence(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 1, TiltRadius: 1, HFov: 0.3, VFov: 0.3, Overlap: 0})
	total := plan.Rows * plan.Cols

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := seq.RunSurvey(ctx, SurveyParams{
		Plan:          plan,
		Delay:         5 * time.Millisecond,
		ShotDelay:     1 * time.Microsecond,
		PostShotDelay: 1 * time.Microsecond,
	})
	if err == nil {
		t.Error("expected context deadline error, got nil")
	}
	if shots := cam.shotCount(); shots >= total {
		t.Errorf("shots = %d, want fewer than %d due to cancellation", shots, total)
	}
}

func TestRunSurvey_CameraErrorAborts(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{fail: true}
	seq := NewSequence(ctrl, cam)

	plan := mustPlan(t, pano.Params{PanRadius: 0.5, TiltRadius: 0.5, HFov: 0.5, VFov: 0.5, Overlap: 0})

	if err := seq.RunSurvey(context.Background(), fastParams(plan)); err == nil {
		t.Error("expected camera error, got nil")
	}
}

func TestRunTargets_ShotPerTarget(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	targets := []poses.Pose{
		{Orientation: poses.FromRPY(0, 0, 0)},
		{Orientation: poses.FromRPY(0, 0.2, 0.5)},
		{Orientation: poses.FromRPY(0, -0.1, -0.5)},
	}

	err := seq.RunTargets(context.Background(), TargetsParams{
		Targets:       targets,
		Delay:         1 * time.Microsecond,
		ShotDelay:     1 * time.Microsecond,
		PostShotDelay: 1 * time.Microsecond,
	})
	if err != nil {
		t.Fatalf("RunTargets: %v", err)
	}
	if cam.shotCount() != 3 {
		t.Errorf("shots = %d, want 3", cam.shotCount())
	}
	pan, tilt := ctrl.Position()
	if pan != 0 || tilt != 0 {
		t.Errorf("position after targets = (%d, %d), want (0, 0)", pan, tilt)
	}
}

func TestRunTargets_ContextCancellation(t *testing.T) {
	ctrl := newTestController()
	cam := &mockCamera{}
	seq := NewSequence(ctrl, cam)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := seq.RunTargets(ctx, TargetsParams{
		Targets: []poses.Pose{{Orientation: poses.FromRPY(0, 0, 1)}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
