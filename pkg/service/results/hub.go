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

package results

import (
	"context"
	"sync"
	"time"

	"github.com/mattn/go-pubsub"
	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/irdata"
)

// Event is a single received and analyzed frame.
type Event struct {
	// Time the frame was completed
	Time time.Time
	// Input pin the frame was received on
	Pin    int
	Frame  irdata.RawFrame
	Result analyzer.Result
}

// Hub distributes analyzed frames to interested receivers
// (MQTT publisher, UI, HTTP API) and remembers the last one.
type Hub struct {
	log    zerolog.Logger
	events *pubsub.PubSub

	mutex   sync.Mutex
	last    Event
	hasLast bool
	count   int
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:    log.With().Str("component", "results").Logger(),
		events: pubsub.New(),
	}
}

// Publish the given event to all receivers.
func (h *Hub) Publish(e Event) {
	h.mutex.Lock()
	h.last = e
	h.hasLast = true
	h.count++
	h.mutex.Unlock()

	eventsPublishedTotal.WithLabelValues(string(e.Result.Format)).Inc()
	h.events.Pub(e)
}

// Last returns the most recently published event.
// Returns false if nothing has been published yet.
func (h *Hub) Last() (Event, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.last, h.hasLast
}

// Count returns the number of published events.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.count
}

// Subscribe registers a receiver for all future events.
// Call the returned function to unsubscribe.
func (h *Hub) Subscribe(cb func(Event) error) context.CancelFunc {
	wcb := func(e Event) {
		if err := cb(e); err != nil {
			h.log.Warn().Err(err).Msg("Event processing error")
		}
	}
	if err := h.events.Sub(wcb); err != nil {
		h.log.Error().Err(err).Msg("Subscribe failed")
		return func() {}
	}
	return func() {
		h.events.Leave(wcb)
	}
}
