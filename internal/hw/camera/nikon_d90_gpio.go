package camera

import (
	"time"

	"github.com/cjeanneret/SweepGo/internal/debug"
	"github.com/cjeanneret/SweepGo/internal/hw/gpio"
)

// NikonD90GPIO triggers a Nikon D90 through the 3-pin remote connector:
// GND to Pi ground, FOCUS and SHUTTER pulled LOW to activate.
//
// Trigger sequence: FOCUS low -> wait for AF -> SHUTTER low -> hold ->
// release SHUTTER then FOCUS.
type NikonD90GPIO struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration // time for autofocus
	shutterDelay time.Duration // shutter hold time
}

// NewNikonD90GPIO creates a GPIO-controlled Nikon D90 trigger.
func NewNikonD90GPIO(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) *NikonD90GPIO {
	_ = g.SetupPin(focusPin, gpio.Output)
	_ = g.SetupPin(shutterPin, gpio.Output)

	// Lines are HIGH (inactive) at rest.
	_ = g.WritePin(focusPin, gpio.High)
	_ = g.WritePin(shutterPin, gpio.High)

	return &NikonD90GPIO{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
	}
}

// Shoot triggers a photo on the D90.
func (n *NikonD90GPIO) Shoot() error {
	debug.Printf("Camera: triggering shot (focus=%d, shutter=%d)", n.focusPin, n.shutterPin)

	debug.Verbose("Camera: activating FOCUS (pin %d -> LOW)", n.focusPin)
	if err := n.gpio.WritePin(n.focusPin, gpio.Low); err != nil {
		return err
	}

	debug.Verbose("Camera: waiting for autofocus (%v)", n.focusDelay)
	time.Sleep(n.focusDelay)

	debug.Verbose("Camera: activating SHUTTER (pin %d -> LOW)", n.shutterPin)
	if err := n.gpio.WritePin(n.shutterPin, gpio.Low); err != nil {
		// Release FOCUS before bailing so the AF line is not left held.
		_ = n.gpio.WritePin(n.focusPin, gpio.High)
		return err
	}

	debug.Verbose("Camera: holding shutter (%v)", n.shutterDelay)
	time.Sleep(n.shutterDelay)

	debug.Verbose("Camera: releasing SHUTTER (pin %d -> HIGH)", n.shutterPin)
	if err := n.gpio.WritePin(n.shutterPin, gpio.High); err != nil {
		_ = n.gpio.WritePin(n.focusPin, gpio.High)
		return err
	}

	debug.Verbose("Camera: releasing FOCUS (pin %d -> HIGH)", n.focusPin)
	if err := n.gpio.WritePin(n.focusPin, gpio.High); err != nil {
		return err
	}

	debug.Printf("Camera: shot triggered successfully")
	return nil
}
