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

package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Result of analyzing a single frame.
type Result struct {
	Format Format
	// Buttons maps a logical name to one or more candidate codes.
	// Candidate zero is canonical.
	Buttons map[string][]string
	// Extracted bits in transmission order
	Bits []byte
	// Advisory warnings (e.g. complement mismatch)
	Warnings []string
}

func newResult(format Format) Result {
	return Result{
		Format:  format,
		Buttons: make(map[string][]string),
	}
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Recognized returns true when the frame matched a protocol.
func (r Result) Recognized() bool {
	return r.Format != FormatUnrecognized
}

// Button returns the canonical code of the main button, or "" if none.
func (r Result) Button() string {
	if codes := r.Buttons[ButtonKey]; len(codes) > 0 {
		return codes[0]
	}
	return ""
}

// BitString returns the bits as a string of '0' and '1'.
func (r Result) BitString() string {
	var sb strings.Builder
	for _, b := range r.Bits {
		if b == 0 {
			sb.WriteByte('0')
		} else {
			sb.WriteByte('1')
		}
	}
	return sb.String()
}

type jsonResult struct {
	Format   Format                 `json:"format"`
	Buttons  map[string]interface{} `json:"buttons"`
	Bits     string                 `json:"bits"`
	Warnings []string               `json:"warnings,omitempty"`
}

// MarshalJSON renders a button with a single candidate as a string
// and a button with several candidates as a list.
func (r Result) MarshalJSON() ([]byte, error) {
	jr := jsonResult{
		Format:   r.Format,
		Buttons:  make(map[string]interface{}, len(r.Buttons)),
		Bits:     r.BitString(),
		Warnings: r.Warnings,
	}
	for name, codes := range r.Buttons {
		if len(codes) == 1 {
			jr.Buttons[name] = codes[0]
		} else {
			jr.Buttons[name] = codes
		}
	}
	return json.Marshal(jr)
}

// Serialize renders the result as JSON.
func Serialize(r Result) ([]byte, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "Marshal result failed")
	}
	return encoded, nil
}
