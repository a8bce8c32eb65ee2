package camera

import (
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/SweepGo/internal/hw/gpio"
)

// seqDriver records (pin, level) writes in order.
type seqDriver struct {
	writes []struct {
		pin   int
		level gpio.Level
	}
	failOn int // fail the Nth write (1-based), 0 = never
}

func (d *seqDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (d *seqDriver) WritePin(pin int, level gpio.Level) error {
	d.writes = append(d.writes, struct {
		pin   int
		level gpio.Level
	}{pin, level})
	if d.failOn > 0 && len(d.writes) == d.failOn {
		return errors.New("write failed")
	}
	return nil
}

func (d *seqDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.Low, nil }
func (d *seqDriver) Close() error                        { return nil }

const (
	focusPin   = 17
	shutterPin = 27
)

func newTestCamera(d gpio.Driver) *NikonD90GPIO {
	return NewNikonD90GPIO(d, focusPin, shutterPin, time.Microsecond, time.Microsecond)
}

func TestShoot_LineSequence(t *testing.T) {
	d := &seqDriver{}
	cam := newTestCamera(d)

	// Drop the two init writes (both lines HIGH).
	d.writes = nil

	if err := cam.Shoot(); err != nil {
		t.Fatalf("Shoot: %v", err)
	}

	want := []struct {
		pin   int
		level gpio.Level
	}{
		{focusPin, gpio.Low},    // focus
		{shutterPin, gpio.Low},  // trigger
		{shutterPin, gpio.High}, // release shutter
		{focusPin, gpio.High},   // release focus
	}
	if len(d.writes) != len(want) {
		t.Fatalf("got %d writes, want %d: %v", len(d.writes), len(want), d.writes)
	}
	for i, w := range want {
		if d.writes[i] != w {
			t.Errorf("write %d = %+v, want %+v", i, d.writes[i], w)
		}
	}
}

func TestShoot_ReleasesFocusOnShutterError(t *testing.T) {
	d := &seqDriver{}
	cam := newTestCamera(d)
	d.writes = nil
	d.failOn = 2 // the shutter-low write

	if err := cam.Shoot(); err == nil {
		t.Fatal("expected error from failed shutter write")
	}

	// The last successful action must put FOCUS back to HIGH.
	last := d.writes[len(d.writes)-1]
	if last.pin != focusPin || last.level != gpio.High {
		t.Errorf("last write = %+v, want FOCUS released (pin %d HIGH)", last, focusPin)
	}
}

func TestNewNikonD90GPIO_LinesIdleHigh(t *testing.T) {
	d := &seqDriver{}
	newTestCamera(d)

	if len(d.writes) != 2 {
		t.Fatalf("got %d init writes, want 2", len(d.writes))
	}
	for _, w := range d.writes {
		if w.level != gpio.High {
			t.Errorf("init write %+v, want HIGH (inactive)", w)
		}
	}
}
