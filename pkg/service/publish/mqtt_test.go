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
	"testing"

	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/service/results"
)

func TestNewRequiresBroker(t *testing.T) {
	if _, err := New(Config{}, Dependencies{Log: zerolog.Nop()}); err == nil {
		t.Error("Expected error without broker address")
	}
}

func TestTopic(t *testing.T) {
	tests := []struct {
		Prefix   string
		Format   analyzer.Format
		Expected string
	}{
		{"", analyzer.FormatNEC, "irworker/NEC"},
		{"home/ir/", analyzer.FormatSONY, "home/ir/SONY"},
		{"ir", analyzer.FormatUnrecognized, "ir/Unrecognized"},
	}
	for _, test := range tests {
		p, err := New(Config{BrokerAddress: "localhost:1883", TopicPrefix: test.Prefix}, Dependencies{
			Log: zerolog.Nop(),
			Hub: results.NewHub(zerolog.Nop()),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if topic := p.Topic(test.Format); topic != test.Expected {
			t.Errorf("Expected topic '%s', got '%s'", test.Expected, topic)
		}
	}
}

func TestPublishNotConnected(t *testing.T) {
	p, err := New(Config{BrokerAddress: "localhost:1883"}, Dependencies{Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Publish("irworker/NEC", []byte("{}")); err == nil {
		t.Error("Expected error when not connected")
	}
}
