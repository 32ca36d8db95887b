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
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/receiver"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
	"github.com/binkynet/IrWorker/pkg/service/results"
	"github.com/binkynet/IrWorker/pkg/service/util"
)

// Mode determines what is printed for every received frame.
type Mode string

const (
	// ModeAnalyze prints the analysis result of every frame.
	ModeAnalyze Mode = "analyze"
	// ModeRecv prints the raw pulse/space text of every frame.
	ModeRecv Mode = "recv"
)

// Config of the service.
type Config struct {
	Mode Mode
	// Receiver configuration
	Receiver receiver.Config
	// In analyze mode, print only the canonical button code
	CodesOnly bool
	// Print Ready/Done markers around every capture
	Verbose bool
}

// Dependencies of the service.
type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	Hub    *results.Hub
	// Output for printed frames (defaults to stdout)
	Out io.Writer
}

// Service receives frames, analyzes them and distributes the results.
type Service struct {
	Config
	Dependencies

	receiver       *receiver.Receiver
	pinLabel       string
	startedAt      time.Time
	framesReceived uint64 // atomic
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (*Service, error) {
	if conf.Mode == "" {
		conf.Mode = ModeAnalyze
	}
	switch conf.Mode {
	case ModeAnalyze, ModeRecv:
		// OK
	default:
		return nil, errors.Errorf("unknown mode '%s'", conf.Mode)
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Hub == nil {
		deps.Hub = results.NewHub(deps.Logger)
	}
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	r, err := receiver.New(conf.Receiver, receiver.Dependencies{
		Log:    deps.Logger,
		Bridge: deps.Bridge,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create receiver")
	}
	return &Service{
		Config:       conf,
		Dependencies: deps,
		receiver:     r,
		pinLabel:     strconv.Itoa(conf.Receiver.Pin),
		startedAt:    time.Now(),
	}, nil
}

// StartedAt returns the time the service was created.
func (s *Service) StartedAt() time.Time {
	return s.startedAt
}

// Receiver returns the frame receiver of the service.
func (s *Service) Receiver() *receiver.Receiver {
	return s.receiver
}

// FramesReceived returns the number of completed Recv calls,
// including those that yielded an empty (noise) frame.
func (s *Service) FramesReceived() uint64 {
	return atomic.LoadUint64(&s.framesReceived)
}

// Run receives frames until the given context is canceled.
func (s *Service) Run(ctx context.Context) error {
	log := s.Logger
	defer s.Bridge.SetStatusLED(false)

	// End the receiver when the context is canceled
	go func() {
		<-ctx.Done()
		s.receiver.End()
	}()

	log.Info().
		Int("pin", s.Receiver().Pin).
		Str("mode", string(s.Mode)).
		Msg("Starting receiver loop")
	err := util.UntilCanceled(ctx, log, "receive frame", s.receiveFrame)
	if errors.Cause(err) == receiver.ErrClosed {
		return nil
	}
	return err
}

// receiveFrame receives, analyzes and distributes a single frame.
func (s *Service) receiveFrame() error {
	log := s.Logger
	if s.Mode == ModeRecv {
		fmt.Fprintln(s.Out, "# -")
	}
	if s.Verbose {
		fmt.Fprintln(s.Out, "Ready")
	}
	s.Bridge.SetStatusLED(true)
	frame, err := s.receiver.Recv()
	s.Bridge.SetStatusLED(false)
	if errors.Cause(err) == receiver.ErrClosed {
		return util.Stop(err)
	} else if err != nil {
		recvErrorsTotal.WithLabelValues(s.pinLabel).Inc()
		s.Bridge.BlinkStatusLED(time.Millisecond * 250)
		return errors.Wrap(err, "Recv failed")
	}
	if s.Verbose {
		fmt.Fprintln(s.Out, "Done")
	}

	result := s.Process(frame)
	defer atomic.AddUint64(&s.framesReceived, 1)
	if s.Mode == ModeRecv {
		fmt.Fprint(s.Out, irdata.Format(frame))
		fmt.Fprintln(s.Out, "# /")
		return nil
	}
	if frame.IsEmpty() {
		log.Debug().Msg("Empty frame")
		return nil
	}
	if s.CodesOnly {
		if code := result.Button(); code != "" {
			fmt.Fprintln(s.Out, code)
		}
		return nil
	}
	encoded, err := analyzer.Serialize(result)
	if err != nil {
		return errors.Wrap(err, "Serialize failed")
	}
	fmt.Fprintln(s.Out, string(encoded))
	return nil
}

// Process analyzes the given frame and publishes the result.
func (s *Service) Process(frame irdata.RawFrame) analyzer.Result {
	result := analyzer.Analyze(frame)
	framesProcessedTotal.WithLabelValues(s.pinLabel, string(result.Format)).Inc()
	s.Logger.Debug().
		Int("pairs", len(frame)).
		Str("format", string(result.Format)).
		Str("button", result.Button()).
		Strs("warnings", result.Warnings).
		Msg("Frame analyzed")
	if !frame.IsEmpty() {
		s.Hub.Publish(results.Event{
			Time:   time.Now(),
			Pin:    s.Receiver().Pin,
			Frame:  frame,
			Result: result,
		})
	}
	return result
}
