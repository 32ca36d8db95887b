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

//go:build !linux

package bridge

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultChip is the GPIO character device of the 40-pin header.
	DefaultChip = "gpiochip0"
)

// Config of the GPIO character device bridge.
type Config struct {
	// Name of the GPIO chip (e.g. gpiochip0)
	Chip string
	// BCM pin number of the status led. Negative disables the led.
	StatusLEDPin int
}

// NewRaspberryPiBridge is only available on Linux.
func NewRaspberryPiBridge(cfg Config, log zerolog.Logger) (API, error) {
	return nil, errors.Errorf("GPIO character device bridge is not supported on %s", runtime.GOOS)
}
