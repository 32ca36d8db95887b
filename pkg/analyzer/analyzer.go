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

// Analyze classifies the given frame against the supported protocols
// and extracts its button codes.
// Analyze never fails: a frame that does not match any protocol
// yields a result with FormatUnrecognized and no buttons.
// It is safe to call concurrently.
func Analyze(frame irdata.RawFrame) Result {
	result := analyze(frame)
	resultsTotal.WithLabelValues(string(result.Format)).Inc()
	if len(result.Warnings) > 0 {
		warningsTotal.WithLabelValues(string(result.Format)).Add(float64(len(result.Warnings)))
	}
	return result
}

func analyze(frame irdata.RawFrame) Result {
	if len(frame) < 2 {
		return newResult(FormatUnrecognized)
	}
	for _, proto := range Protocols {
		if !proto.MatchLeader(frame[0]) {
			continue
		}
		bits := proto.ExtractBits(frame[1:])
		if len(bits) < proto.MinBits {
			// Leader matched, but not enough data. Try the next protocol.
			continue
		}
		result := newResult(proto.Format)
		if len(bits) > proto.MaxBits {
			result.warn("%d bits exceed maximum of %d; extra bits ignored", len(bits), proto.MaxBits)
			bits = bits[:proto.MaxBits]
		}
		result.Bits = bits
		proto.Decode(bits, &result)
		return result
	}
	return newResult(FormatUnrecognized)
}
