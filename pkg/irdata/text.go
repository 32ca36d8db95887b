// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package irdata

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	keyPulse = "pulse"
	keySpace = "space"
)

var (
	// SyntaxError is returned (wrapped) when a timing text cannot be parsed.
	SyntaxError = errors.New("invalid timing text")
)

// Format renders the frame in the textual timing format:
//
//	pulse 9000
//	space 4500
//	...
func Format(frame RawFrame) string {
	var sb strings.Builder
	for _, p := range frame {
		sb.WriteString(keyPulse + " " + strconv.FormatUint(uint64(p.Pulse), 10) + "\n")
		sb.WriteString(keySpace + " " + strconv.FormatUint(uint64(p.Space), 10) + "\n")
	}
	return sb.String()
}

// Parse reads a frame in the textual timing format.
// Empty lines and lines starting with '#' are ignored.
// Every pulse line must be followed by its space line, except
// that the very last pulse may lack a space (it is then 0).
func Parse(r io.Reader) (RawFrame, error) {
	var frame RawFrame
	pulseOpen := false
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Wrapf(SyntaxError, "line %d: expected '<pulse|space> <usec>', got '%s'", lineNo, line)
		}
		value, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(SyntaxError, "line %d: invalid duration '%s'", lineNo, fields[1])
		}
		switch fields[0] {
		case keyPulse:
			if pulseOpen {
				return nil, errors.Wrapf(SyntaxError, "line %d: pulse without preceding space", lineNo)
			}
			frame = append(frame, TimingPair{Pulse: uint32(value)})
			pulseOpen = true
		case keySpace:
			if !pulseOpen {
				return nil, errors.Wrapf(SyntaxError, "line %d: space without preceding pulse", lineNo)
			}
			frame[len(frame)-1].Space = uint32(value)
			pulseOpen = false
		default:
			return nil, errors.Wrapf(SyntaxError, "line %d: unknown key '%s'", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Scan failed")
	}
	return frame, nil
}

// ParseFile reads a frame from the file with given path.
func ParseFile(path string) (RawFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Open '%s' failed", path)
	}
	defer f.Close()
	return Parse(f)
}
