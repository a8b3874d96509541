// Package indicator drives the activity LED toggled by the liveness scheduler.
package indicator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/sysfs"
)

// Indicator is a write-only binary output.
type Indicator interface {
	Set(on bool) error
}

// Nop ignores every state change.
type Nop struct{}

// Set implements Indicator.
func (Nop) Set(bool) error { return nil }

type output interface {
	Out(gpio.Level) error
}

// LED is a kernel LED, e.g. "led0" under /sys/class/leds.
type LED struct {
	Name string
	out  output
}

// OpenLED finds the LED by name.
func OpenLED(name string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	led, err := sysfs.LEDByName(name)
	if err != nil {
		return nil, fmt.Errorf("LED %s: %w", name, err)
	}
	return &LED{Name: name, out: led}, nil
}

// Set implements Indicator.
func (l *LED) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := l.out.Out(level); err != nil {
		return fmt.Errorf("set LED %s: %w", l.Name, err)
	}
	return nil
}

// New opens the Indicator for name, an empty name gives Nop.
func New(name string) (Indicator, error) {
	if name == "" {
		return Nop{}, nil
	}
	return OpenLED(name)
}
