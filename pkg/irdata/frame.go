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

import "fmt"

// TimingPair holds the duration (in usec) of a single pulse (mark)
// and the space that follows it.
type TimingPair struct {
	Pulse uint32
	Space uint32
}

// String returns a human readable form of the pair.
func (p TimingPair) String() string {
	return fmt.Sprintf("(%d, %d)", p.Pulse, p.Space)
}

// RawFrame is one captured transmission, in transmission order.
type RawFrame []TimingPair

// IsEmpty returns true when the frame contains no pairs.
func (f RawFrame) IsEmpty() bool {
	return len(f) == 0
}

// Duration returns the total length of the frame in usec.
func (f RawFrame) Duration() uint64 {
	var total uint64
	for _, p := range f {
		total += uint64(p.Pulse) + uint64(p.Space)
	}
	return total
}

// Clone returns a copy of the frame that does not share
// its backing array.
func (f RawFrame) Clone() RawFrame {
	if f == nil {
		return nil
	}
	result := make(RawFrame, len(f))
	copy(result, f)
	return result
}

// TickDiff returns the number of usec from tick a to tick b.
// Ticks are 32-bit wrapping microsecond counters, so the difference
// is taken modulo 2^32.
func TickDiff(a, b uint32) uint32 {
	return b - a
}
