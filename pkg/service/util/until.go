// Copyright 2021 Ewout Prangsma
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

package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	minDelay = time.Millisecond * 10
	maxDelay = time.Second * 5
)

type stopError struct {
	err error
}

func (e stopError) Error() string {
	return e.err.Error()
}

// Stop wraps the given error such that UntilCanceled returns it
// instead of retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stopError{err: err}
}

// UntilCanceled continues to call the given callback
// until the given context is canceled.
// Failed calls are retried with an exponential backoff, unless the
// returned error was wrapped by Stop, in which case that error is returned.
func UntilCanceled(ctx context.Context, log zerolog.Logger, description string, cb func() error) error {
	delay := minDelay
	for {
		if ctx.Err() != nil {
			// Context canceled
			return nil
		}
		if err := cb(); err != nil {
			if stop, ok := errors.Cause(err).(stopError); ok {
				log.Debug().Err(stop.err).Msgf("Stopping %s", description)
				return stop.err
			}
			log.Warn().Err(err).Msgf("%s failed", description)
			delay = time.Duration(float64(delay) * 1.5)
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			delay = minDelay
		}
		select {
		case <-ctx.Done():
			// Context canceled
			log.Info().Msgf("Stopping %s; context canceled", description)
			return nil
		case <-time.After(delay):
			// Continue
		}
	}
}
