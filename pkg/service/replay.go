// Copyright 2018 Ewout Prangsma
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

package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
)

const (
	replayStartTick = 1000
	replayPollDelay = time.Millisecond
)

// Replay plays the given frame on the given pin of a virtual bridge,
// as soon as a receiver is listening on that pin.
// The trailing space of the frame is reported as a watchdog timeout.
func Replay(ctx context.Context, v *bridge.VirtualBridge, pin int, frame irdata.RawFrame, activeLow bool) error {
	if frame.IsEmpty() {
		return errors.New("cannot replay an empty frame")
	}
	for !v.HasCallback(pin) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(replayPollDelay):
			// Retry
		}
	}
	last := v.Play(pin, frame, replayStartTick, activeLow)
	v.Timeout(pin, last+frame[len(frame)-1].Space)
	return nil
}
