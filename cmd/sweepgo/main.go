package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/SweepGo/internal/config"
	"github.com/cjeanneret/SweepGo/internal/debug"
	"github.com/cjeanneret/SweepGo/internal/hw/camera"
	"github.com/cjeanneret/SweepGo/internal/hw/gpio"
	"github.com/cjeanneret/SweepGo/internal/hw/stepper"
	"github.com/cjeanneret/SweepGo/internal/logic/capture"
	"github.com/cjeanneret/SweepGo/internal/logic/geometry"
	"github.com/cjeanneret/SweepGo/internal/logic/motion"
	"github.com/cjeanneret/SweepGo/internal/logic/pano"
	"github.com/cjeanneret/SweepGo/internal/logic/poses"
	"github.com/cjeanneret/SweepGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	planOnly := flag.Bool("plan_only", false, "print the computed orientation grid and exit (no hardware)")
	targetsFile := flag.String("targets", "", "pose list file for targets mode (overrides survey mode)")
	panRadiusDeg := flag.Float64("pan_radius_deg", 0, "override pan coverage radius in degrees (0-180)")
	tiltRadiusDeg := flag.Float64("tilt_radius_deg", 0, "override tilt coverage radius in degrees (0-90)")
	overlapPercent := flag.Float64("overlap_percent", 0, "override overlap percentage (0-100)")
	attitudeToleranceDeg := flag.Float64("attitude_tolerance_deg", 0, "override attitude tolerance in degrees")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := web.Overrides{
		PanRadiusDeg:         *panRadiusDeg,
		TiltRadiusDeg:        *tiltRadiusDeg,
		OverlapPercent:       *overlapPercent,
		AttitudeToleranceDeg: *attitudeToleranceDeg,
	}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if *planOnly {
		plan, err := planFromConfig(cfg)
		if err != nil {
			log.Fatalf("plan failed: %v", err)
		}
		printPlan(os.Stdout, plan)
		return
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize stepper motors
	debug.Step(2, "Initializing stepper motors")
	stepDelay := cfg.MoveSpeed() / 2
	panMotor := stepper.NewStepper(gpioDriver, stepper.Config{
		StepPin:       cfg.PanStepper.StepPin,
		DirPin:        cfg.PanStepper.DirPin,
		EnablePin:     cfg.PanStepper.EnablePin,
		StepsPerRev:   cfg.PanStepper.StepsPerRev,
		Microstepping: cfg.PanStepper.Microstepping,
		StepDelay:     stepDelay,
	})
	debug.PrintStruct("Pan stepper config", cfg.PanStepper)
	tiltMotor := stepper.NewStepper(gpioDriver, stepper.Config{
		StepPin:       cfg.TiltStepper.StepPin,
		DirPin:        cfg.TiltStepper.DirPin,
		EnablePin:     cfg.TiltStepper.EnablePin,
		StepsPerRev:   cfg.TiltStepper.StepsPerRev,
		Microstepping: cfg.TiltStepper.Microstepping,
		StepDelay:     stepDelay,
	})
	debug.PrintStruct("Tilt stepper config", cfg.TiltStepper)

	// Initialize camera
	debug.Step(3, "Initializing camera")
	cam, err := newCameraFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)

	motionCtrl := motion.NewController(panMotor, tiltMotor, geometry.NewStepsCalculator(cfg))
	seq := capture.NewSequence(motionCtrl, cam)

	runSurvey := func(ctx context.Context, overrides web.Overrides) error {
		return executeSurvey(ctx, cfg, seq, overrides)
	}
	planSurvey := func(overrides web.Overrides) (*pano.Plan, error) {
		return planFromConfig(applyOverridesToCopy(cfg, overrides))
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv := web.NewServer(webAddr, broadcaster, runSurvey, planSurvey, formDefaults(cfg))
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if file := targetsFileOrConfig(*targetsFile, cfg); file != "" {
		if err := executeTargets(ctx, cfg, seq, file); err != nil {
			log.Fatalf("targets run failed: %v", err)
		}
		return
	}

	// Run the survey once with current config (CLI overrides applied)
	if err := runSurvey(ctx, web.Overrides{}); err != nil {
		log.Fatalf("survey failed: %v", err)
	}
}

// planFromConfig resolves the FOV and computes the orientation plan.
func planFromConfig(cfg *config.Config) (*pano.Plan, error) {
	hFov, vFov, err := resolveFOV(cfg)
	if err != nil {
		return nil, err
	}
	return pano.CalculatePlan(pano.Params{
		PanRadius:         cfg.PanRadius(),
		TiltRadius:        cfg.TiltRadius(),
		HFov:              hFov,
		VFov:              vFov,
		Overlap:           cfg.OverlapRatio(),
		AttitudeTolerance: cfg.AttitudeTolerance(),
	})
}

// resolveFOV returns the effective horizontal/vertical FOV in radians:
// explicit config overrides win, otherwise it is derived from the
// sensor and lens geometry.
func resolveFOV(cfg *config.Config) (hFov, vFov float64, err error) {
	hFov = cfg.HFovOverride()
	vFov = cfg.VFovOverride()
	if hFov > 0 && vFov > 0 {
		return hFov, vFov, nil
	}

	fovCalc, err := geometry.NewFOVCalculator(cfg)
	if err != nil {
		return 0, 0, fmt.Errorf("derive FOV: %w", err)
	}
	if hFov == 0 {
		hFov = fovCalc.HorizontalFOV()
	}
	if vFov == 0 {
		vFov = fovCalc.VerticalFOV()
	}
	return hFov, vFov, nil
}

// executeSurvey computes the plan for the (possibly overridden) config
// and drives the capture sequence through it.
func executeSurvey(ctx context.Context, baseCfg *config.Config, seq *capture.Sequence, overrides web.Overrides) error {
	cfg := applyOverridesToCopy(baseCfg, overrides)

	debug.Step(4, "Calculating orientation plan")
	plan, err := planFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("calculate plan: %w", err)
	}

	debug.Summary("Survey Plan")
	debug.Pano(plan.Rows, plan.Cols, len(plan.Orientations))
	debug.Value("Pan radius (deg)", cfg.Survey.PanRadiusDeg)
	debug.Value("Tilt radius (deg)", cfg.Survey.TiltRadiusDeg)
	debug.Value("Overlap (%)", cfg.Survey.OverlapPercent)
	debug.Value("Attitude tolerance (deg)", cfg.Survey.AttitudeToleranceDeg)

	debug.Section("Starting Survey")
	err = seq.RunSurvey(ctx, capture.SurveyParams{
		Plan:          plan,
		Delay:         500 * time.Millisecond,
		ShotDelay:     300 * time.Millisecond,
		PostShotDelay: cfg.PostShotDelay(),
	})
	if err != nil {
		return err
	}

	debug.Section("Survey Complete")
	return nil
}

// executeTargets loads a pose list and shoots each target orientation.
func executeTargets(ctx context.Context, cfg *config.Config, seq *capture.Sequence, file string) error {
	targets, err := poses.Load(file)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no valid targets in %s", file)
	}
	debug.Info("Loaded %d targets from %s", len(targets), file)

	return seq.RunTargets(ctx, capture.TargetsParams{
		Targets:       targets,
		Delay:         500 * time.Millisecond,
		ShotDelay:     300 * time.Millisecond,
		PostShotDelay: cfg.PostShotDelay(),
	})
}

// printPlan writes the orientation grid to w, top row first, matching
// how the panorama will look.
func printPlan(w io.Writer, plan *pano.Plan) {
	const radToDeg = 180.0 / math.Pi

	fmt.Fprintf(w, "%d rows x %d cols [pan tilt] (deg)\n", plan.Rows, plan.Cols)

	byRow := make(map[int][]pano.PanoAttitude)
	for _, o := range plan.Orientations {
		byRow[o.Iy] = append(byRow[o.Iy], o)
	}
	for iy := plan.Rows - 1; iy >= 0; iy-- {
		row := byRow[iy]
		sort.Slice(row, func(i, j int) bool { return row[i].Ix < row[j].Ix })
		fmt.Fprint(w, "  ")
		for _, o := range row {
			fmt.Fprintf(w, "[%.0f %.0f] ", o.Pan*radToDeg, o.Tilt*radToDeg)
		}
		fmt.Fprintln(w)
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within
// valid ranges. Zero values mean "use config default".
func validateCLIOverrides(o web.Overrides) error {
	if o.PanRadiusDeg != 0 {
		if math.IsNaN(o.PanRadiusDeg) || math.IsInf(o.PanRadiusDeg, 0) || o.PanRadiusDeg < 0 || o.PanRadiusDeg > 180 {
			return fmt.Errorf("pan_radius_deg must be between 0 and 180, got %g", o.PanRadiusDeg)
		}
	}
	if o.TiltRadiusDeg != 0 {
		if math.IsNaN(o.TiltRadiusDeg) || math.IsInf(o.TiltRadiusDeg, 0) || o.TiltRadiusDeg < 0 || o.TiltRadiusDeg > 90 {
			return fmt.Errorf("tilt_radius_deg must be between 0 and 90, got %g", o.TiltRadiusDeg)
		}
	}
	if o.OverlapPercent != 0 {
		if math.IsNaN(o.OverlapPercent) || math.IsInf(o.OverlapPercent, 0) || o.OverlapPercent < 0 || o.OverlapPercent >= 100 {
			return fmt.Errorf("overlap_percent must be in [0, 100), got %g", o.OverlapPercent)
		}
	}
	if o.AttitudeToleranceDeg != 0 {
		if math.IsNaN(o.AttitudeToleranceDeg) || math.IsInf(o.AttitudeToleranceDeg, 0) || o.AttitudeToleranceDeg < 0 {
			return fmt.Errorf("attitude_tolerance_deg must be >= 0, got %g", o.AttitudeToleranceDeg)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero values apply.
func applyOverrides(cfg *config.Config, o web.Overrides) {
	if o.PanRadiusDeg > 0 {
		cfg.Survey.PanRadiusDeg = o.PanRadiusDeg
	}
	if o.TiltRadiusDeg > 0 {
		cfg.Survey.TiltRadiusDeg = o.TiltRadiusDeg
	}
	if o.OverlapPercent > 0 {
		cfg.Survey.OverlapPercent = o.OverlapPercent
	}
	if o.AttitudeToleranceDeg > 0 {
		cfg.Survey.AttitudeToleranceDeg = o.AttitudeToleranceDeg
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
func applyOverridesToCopy(baseCfg *config.Config, o web.Overrides) *config.Config {
	cfg := *baseCfg
	applyOverrides(&cfg, o)
	return &cfg
}

// formDefaults builds the web form defaults from the loaded config,
// including the resolved FOV so the page can show it.
func formDefaults(cfg *config.Config) web.FormConfig {
	const radToDeg = 180.0 / math.Pi
	fd := web.FormConfig{
		PanRadiusDeg:         cfg.Survey.PanRadiusDeg,
		TiltRadiusDeg:        cfg.Survey.TiltRadiusDeg,
		OverlapPercent:       cfg.Survey.OverlapPercent,
		AttitudeToleranceDeg: cfg.Survey.AttitudeToleranceDeg,
	}
	if hFov, vFov, err := resolveFOV(cfg); err == nil {
		fd.HFovDeg = hFov * radToDeg
		fd.VFovDeg = vFov * radToDeg
	}
	return fd
}

// targetsFileOrConfig picks the targets file: CLI flag wins, then the
// config's survey block; "" means survey mode.
func targetsFileOrConfig(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Survey.TargetsFile
}

// webPortFlag implements flag.Value for -web: 0 = disabled,
// -web= -> default port, -web 8980 -> 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(g gpio.Driver, cfg *config.Config) (camera.Camera, error) {
	switch cfg.Camera.Type {
	case "nikon_d90_gpio":
		return camera.NewNikonD90GPIO(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
