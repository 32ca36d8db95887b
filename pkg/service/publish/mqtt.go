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

package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/service/results"
)

const (
	publishTimeout = time.Millisecond * 200
	// DefaultTopicPrefix is the topic prefix used when none is configured.
	DefaultTopicPrefix = "irworker"
)

// Config of the MQTT publisher.
type Config struct {
	// Address (host:port) of the MQTT broker
	BrokerAddress string
	// ClientID used to connect to the broker
	ClientID string
	// Prefix of all topics
	TopicPrefix string
}

// Dependencies of the MQTT publisher.
type Dependencies struct {
	Log zerolog.Logger
	Hub *results.Hub
}

// Publisher sends every analyzed frame to an MQTT broker on
// topic <prefix>/<format>.
type Publisher struct {
	Config
	Dependencies

	mutex  sync.Mutex
	client mqttapi.Client
}

// New creates a Publisher.
func New(cfg Config, deps Dependencies) (*Publisher, error) {
	if cfg.BrokerAddress == "" {
		return nil, errors.New("broker address is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("irworker-%d", time.Now().UnixNano())
	}
	deps.Log = deps.Log.With().Str("component", "publish").Logger()
	return &Publisher{
		Config:       cfg,
		Dependencies: deps,
	}, nil
}

// Topic returns the topic used for results of the given format.
func (p *Publisher) Topic(format analyzer.Format) string {
	return p.TopicPrefix + "/" + string(format)
}

// Run connects to the broker and publishes events until the given
// context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	log := p.Log
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + p.BrokerAddress).
		SetClientID(p.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)

	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to connect to mqtt broker at %s", p.BrokerAddress)
	}
	p.mutex.Lock()
	p.client = client
	p.mutex.Unlock()
	defer func() {
		p.mutex.Lock()
		p.client = nil
		p.mutex.Unlock()
		client.Disconnect(250)
	}()
	log.Info().Str("broker", p.BrokerAddress).Msg("Connected to MQTT broker")

	cancel := p.Hub.Subscribe(p.publish)
	defer cancel()

	<-ctx.Done()
	return nil
}

// publish a single event.
func (p *Publisher) publish(e results.Event) error {
	payload, err := analyzer.Serialize(e.Result)
	if err != nil {
		return errors.Wrap(err, "Serialize failed")
	}
	return p.Publish(p.Topic(e.Result.Format), payload)
}

// Publish the given payload on the given topic.
func (p *Publisher) Publish(topic string, payload []byte) error {
	p.mutex.Lock()
	client := p.client
	p.mutex.Unlock()
	if client == nil {
		return errors.New("not connected")
	}
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		publishFailuresTotal.Inc()
		return errors.Errorf("failed to deliver MQTT message on '%s' in time", topic)
	}
	if err := token.Error(); err != nil {
		publishFailuresTotal.Inc()
		return errors.Wrapf(err, "Publish on '%s' failed", topic)
	}
	publishedTotal.Inc()
	return nil
}
