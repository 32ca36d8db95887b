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

package receiver

import (
	"github.com/binkynet/IrWorker/pkg/metrics"
)

const (
	subSystem = "receiver"
)

var (
	// Total number of frames received
	framesTotal = metrics.MustRegisterCounterVec(subSystem,
		"frames_total",
		"Total number of frames received",
		"pin")
	// Total number of receive attempts aborted because of a short leader
	abortedTotal = metrics.MustRegisterCounterVec(subSystem,
		"aborted_total",
		"Total number of receive attempts aborted because the leader was too short",
		"pin")
	// Total number of events dropped because the queue was full
	droppedEventsTotal = metrics.MustRegisterCounterVec(subSystem,
		"dropped_events_total",
		"Total number of edge events dropped because the queue was full",
		"pin")
	// Number of pulse/space pairs per frame
	framePairs = metrics.MustRegisterHistogram(subSystem,
		"frame_pairs",
		"Number of pulse/space pairs per received frame",
		[]float64{1, 2, 4, 8, 16, 24, 34, 50, 75, 100, 150, 200})
)
