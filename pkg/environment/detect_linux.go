//    Copyright 2018 Ewout Prangsma
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

package environment

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// AutoDetectBridgeType detects the default bridge type based on the environment.
// A system with the given GPIO character device uses the "rpi" bridge,
// anything else gets a virtual bridge.
func AutoDetectBridgeType(log zerolog.Logger, chip string) string {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		log.Debug().Err(err).Msg("Uname failed")
	} else {
		release := strings.TrimRight(string(name.Release[:]), "\x00")
		machine := strings.TrimRight(string(name.Machine[:]), "\x00")
		log.Debug().Str("release", release).Str("machine", machine).Msg("Detected kernel")
	}
	if _, err := os.Stat(chipPath(chip)); err != nil {
		log.Debug().Err(err).Str("chip", chip).Msg("GPIO chip not found")
		return BridgeTypeVirtual
	}
	return BridgeTypeRPI
}

// chipPath returns the device path of the given chip name.
func chipPath(chip string) string {
	if strings.HasPrefix(chip, "/") {
		return chip
	}
	return "/dev/" + chip
}
