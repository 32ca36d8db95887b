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
	"github.com/binkynet/IrWorker/pkg/irdata"
)

// Format identifies the protocol of a frame.
type Format string

const (
	FormatAEHA         Format = "AEHA"
	FormatNEC          Format = "NEC"
	FormatSONY         Format = "SONY"
	FormatUnrecognized Format = "Unrecognized"
)

// Encoding is the way a protocol maps a pulse/space pair to a bit.
type Encoding int

const (
	// PulseDistance encodes the bit in the length of the space.
	PulseDistance Encoding = iota
	// PulseWidth encodes the bit in the length of the pulse.
	PulseWidth
)

// Range is an inclusive usec range.
type Range struct {
	Min, Max uint32
}

// Contains returns true if v is in the range.
func (r Range) Contains(v uint32) bool {
	return v >= r.Min && v <= r.Max
}

// units returns a range of multiples of the given unit time.
func units(t uint32, min, max float64) Range {
	return Range{Min: uint32(float64(t) * min), Max: uint32(float64(t) * max)}
}

// ProtocolSpec describes the timing and layout of a single protocol.
// All supported protocols send their bits LSB first.
type ProtocolSpec struct {
	Format      Format
	LeaderPulse Range
	LeaderSpace Range
	// Unit time in usec
	Unit     uint32
	Encoding Encoding
	MinBits  int
	MaxBits  int
	// Decode fills the buttons & warnings of a result from the extracted bits.
	Decode func(bits []byte, r *Result)
}

// Protocols lists all supported protocols in match priority order.
// The table is read-only.
var Protocols = []ProtocolSpec{
	{
		Format:      FormatAEHA,
		LeaderPulse: Range{2600, 4200},
		LeaderSpace: Range{1200, 2200},
		Unit:        425,
		Encoding:    PulseDistance,
		MinBits:     48,
		MaxBits:     8 * 32,
		Decode:      decodeAEHA,
	},
	{
		Format:      FormatNEC,
		LeaderPulse: Range{7000, 11000},
		LeaderSpace: Range{3500, 5500},
		Unit:        562,
		Encoding:    PulseDistance,
		MinBits:     32,
		MaxBits:     32,
		Decode:      decodeNEC,
	},
	{
		Format:      FormatSONY,
		LeaderPulse: Range{1900, 2900},
		LeaderSpace: Range{400, 900},
		Unit:        600,
		Encoding:    PulseWidth,
		MinBits:     12,
		MaxBits:     20,
		Decode:      decodeSONY,
	},
}

// MatchLeader returns true if the given pair is a leader of this protocol.
func (s ProtocolSpec) MatchLeader(p irdata.TimingPair) bool {
	return s.LeaderPulse.Contains(p.Pulse) && s.LeaderSpace.Contains(p.Space)
}

// ExtractBits converts the pairs following the leader into bits.
// Extraction stops at the first pair that is not a valid bit.
func (s ProtocolSpec) ExtractBits(pairs []irdata.TimingPair) []byte {
	switch s.Encoding {
	case PulseWidth:
		return s.extractPulseWidth(pairs)
	default:
		return s.extractPulseDistance(pairs)
	}
}

func (s ProtocolSpec) extractPulseDistance(pairs []irdata.TimingPair) []byte {
	pulse := units(s.Unit, 0.3, 2.5)
	zero := units(s.Unit, 0.4, 1.8)
	one := units(s.Unit, 2.0, 4.0)
	var bits []byte
	for _, p := range pairs {
		if !pulse.Contains(p.Pulse) {
			break
		}
		if zero.Contains(p.Space) {
			bits = append(bits, 0)
		} else if one.Contains(p.Space) {
			bits = append(bits, 1)
		} else {
			// Stop bit followed by the trailing gap
			break
		}
	}
	return bits
}

func (s ProtocolSpec) extractPulseWidth(pairs []irdata.TimingPair) []byte {
	zero := units(s.Unit, 0.5, 1.5)
	one := units(s.Unit, 1.5, 2.6)
	space := units(s.Unit, 0.5, 1.5)
	var bits []byte
	for _, p := range pairs {
		if zero.Contains(p.Pulse) && p.Pulse < one.Min {
			bits = append(bits, 0)
		} else if one.Contains(p.Pulse) {
			bits = append(bits, 1)
		} else {
			break
		}
		if !space.Contains(p.Space) {
			// Last bit, followed by the trailing gap
			break
		}
	}
	return bits
}
