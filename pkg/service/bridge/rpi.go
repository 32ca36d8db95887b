//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

//go:build linux

package bridge

import (
	"strconv"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

const (
	// DefaultChip is the GPIO character device of the 40-pin header.
	DefaultChip = "gpiochip0"
	consumer    = "irworker"
)

// Config of the GPIO character device bridge.
type Config struct {
	// Name of the GPIO chip (e.g. gpiochip0)
	Chip string
	// BCM pin number of the status led. Negative disables the led.
	StatusLEDPin int
}

type inputConfig struct {
	debounce time.Duration
}

type piBridge struct {
	log        zerolog.Logger
	chip       string
	mutex      sync.Mutex
	inputs     map[int]*inputConfig
	dispatcher *dispatcher
	statusLed  *statusLed
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's
// (and other Linux boards) using the GPIO character device.
func NewRaspberryPiBridge(cfg Config, log zerolog.Logger) (API, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	led, err := newStatusLed(cfg.StatusLEDPin)
	if err != nil {
		return nil, errors.Wrap(err, "status led failed")
	}
	return &piBridge{
		log:        log.With().Str("component", "bridge").Str("chip", cfg.Chip).Logger(),
		chip:       cfg.Chip,
		inputs:     make(map[int]*inputConfig),
		dispatcher: newDispatcher(monotonicTick),
		statusLed:  led,
	}, nil
}

// monotonicTick returns CLOCK_MONOTONIC in usec, the same clock
// the kernel uses to timestamp line events.
func monotonicTick() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Nano() / int64(time.Microsecond))
}

// ConfigureInput prepares the given pin as input.
func (p *piBridge) ConfigureInput(pin int) error {
	c, err := gpiocdev.NewChip(p.chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return errors.Wrapf(err, "NewChip[%s] failed", p.chip)
	}
	defer c.Close()
	if pin < 0 || pin >= c.Lines() {
		return errors.Wrapf(InvalidPinError, "pin %d out of range [0..%d)", pin, c.Lines())
	}
	if _, err := c.LineInfo(pin); err != nil {
		return errors.Wrapf(err, "LineInfo[%d] failed", pin)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if _, found := p.inputs[pin]; !found {
		p.inputs[pin] = &inputConfig{}
	}
	p.log.Debug().Int("pin", pin).Msg("configured input")
	return nil
}

// SetGlitchFilter sets the debounce period of the given pin.
// It takes effect at the next RegisterEdgeCallback.
func (p *piBridge) SetGlitchFilter(pin int, usec uint32) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	cfg, found := p.inputs[pin]
	if !found {
		return errors.Wrapf(InvalidPinError, "pin %d is not configured as input", pin)
	}
	cfg.debounce = time.Duration(usec) * time.Microsecond
	return nil
}

// SetWatchdog arms or cancels the watchdog of given pin.
func (p *piBridge) SetWatchdog(pin int, msec uint32) error {
	p.dispatcher.setWatchdog(pin, msec)
	return nil
}

// RegisterEdgeCallback requests the line with edge detection and
// forwards its events to the given handler.
func (p *piBridge) RegisterEdgeCallback(pin int, edge Edge, handler EdgeHandler) (Callback, error) {
	p.mutex.Lock()
	cfg, found := p.inputs[pin]
	p.mutex.Unlock()
	if !found {
		return nil, errors.Wrapf(InvalidPinError, "pin %d is not configured as input", pin)
	}

	reg, err := p.dispatcher.register(pin, handler)
	if err != nil {
		return nil, err
	}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			level := LevelLow
			if evt.Type == gpiocdev.LineEventRisingEdge {
				level = LevelHigh
			}
			p.dispatcher.deliver(evt.Offset, level, uint32(evt.Timestamp/time.Microsecond))
		}),
	}
	switch edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	default:
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	if cfg.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.debounce))
	}
	line, err := gpiocdev.RequestLine(p.chip, pin, opts...)
	if err != nil {
		lineRequestErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		reg.Cancel()
		return nil, errors.Wrapf(err, "RequestLine[%s:%d] failed", p.chip, pin)
	}
	reg.release = line.Close
	p.log.Debug().Int("pin", pin).Dur("debounce", cfg.debounce).Msg("registered edge callback")
	return reg, nil
}

// Turn status led on/off
func (p *piBridge) SetStatusLED(on bool) error {
	if err := p.statusLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[statusLed] failed")
	}
	return nil
}

// Blink status led with given duration between on/off
func (p *piBridge) BlinkStatusLED(delay time.Duration) error {
	if err := p.statusLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[statusLed] failed")
	}
	return nil
}

// Close releases all lines, watchdogs and the status led.
func (p *piBridge) Close() error {
	var ae aerr.AggregateError
	ae.Add(p.dispatcher.cancelAll())
	ae.Add(p.statusLed.Close())
	return ae.AsError()
}
