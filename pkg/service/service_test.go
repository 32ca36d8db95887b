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
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/receiver"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
	"github.com/binkynet/IrWorker/pkg/service/results"
)

const (
	testPin = 17
)

func readFixture(t *testing.T, name string) irdata.RawFrame {
	t.Helper()
	frame, err := irdata.ParseFile(filepath.Join("..", "analyzer", "testdata", name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return frame
}

// runService runs a service on a virtual bridge, replays the given frames
// and returns the printed output.
func runService(t *testing.T, cfg Config, frames ...irdata.RawFrame) (string, *results.Hub, *bridge.VirtualBridge) {
	t.Helper()
	v := bridge.NewVirtualBridge()
	hub := results.NewHub(zerolog.Nop())
	var out bytes.Buffer
	cfg.Receiver.Pin = testPin
	svc, err := NewService(cfg, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: v,
		Hub:    hub,
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error)
	go func() {
		done <- svc.Run(ctx)
	}()
	for i, frame := range frames {
		if err := Replay(ctx, v, testPin, frame, true); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		for svc.FramesReceived() < uint64(i+1) {
			if ctx.Err() != nil {
				t.Fatal("Frame not processed in time")
			}
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return in time")
	}
	return out.String(), hub, v
}

func TestRunCodesOnly(t *testing.T) {
	out, hub, v := runService(t, Config{CodesOnly: true},
		readFixture(t, "raw_data-NEC-1.txt"),
		readFixture(t, "raw_data-SONY-1.txt"))
	if out != "0x000C\n0x095\n" {
		t.Errorf("Unexpected output '%s'", out)
	}
	last, found := hub.Last()
	if !found || last.Result.Format != analyzer.FormatSONY {
		t.Errorf("Expected last result SONY, got %v", last.Result.Format)
	}
	if v.HasCallback(testPin) {
		t.Error("Expected no callback after Run")
	}
	if v.StatusLED() {
		t.Error("Expected status led off after Run")
	}
}

func TestRunNoiseOnly(t *testing.T) {
	// First pulse is shorter than the minimum leader
	out, hub, _ := runService(t, Config{}, irdata.RawFrame{{Pulse: 100, Space: 100}})
	if out != "" {
		t.Errorf("Expected no output, got '%s'", out)
	}
	if hub.Count() != 0 {
		t.Errorf("Expected no published events, got %d", hub.Count())
	}
}

func TestRunAnalyzeJSON(t *testing.T) {
	out, _, _ := runService(t, Config{Verbose: true}, readFixture(t, "raw_data-AEHA-1.txt"))
	if !strings.HasPrefix(out, "Ready\nDone\n{\"format\":\"AEHA\"") {
		t.Errorf("Unexpected output '%s'", out)
	}
}

func TestRunRecvMode(t *testing.T) {
	frame := readFixture(t, "raw_data-SONY-1.txt")
	out, _, _ := runService(t, Config{Mode: ModeRecv}, frame)
	start := strings.Index(out, "# -\n")
	end := strings.Index(out, "# /\n")
	if start < 0 || end < start {
		t.Fatalf("Markers not found in '%s'", out)
	}
	dumped, err := irdata.Parse(strings.NewReader(out[start:end]))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(dumped) != len(frame) {
		t.Fatalf("Expected %d pairs, got %d", len(frame), len(dumped))
	}
	for i := range frame {
		if dumped[i] != frame[i] {
			t.Errorf("Pair %d: expected %s, got %s", i, frame[i], dumped[i])
		}
	}
}

func TestNewServiceUnknownMode(t *testing.T) {
	_, err := NewService(Config{Mode: "transmit", Receiver: receiver.Config{Pin: testPin}}, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: bridge.NewVirtualBridge(),
	})
	if err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestNewServiceInvalidPin(t *testing.T) {
	_, err := NewService(Config{Receiver: receiver.Config{Pin: -1}}, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: bridge.NewVirtualBridge(),
	})
	if err == nil {
		t.Error("Expected error for invalid pin")
	}
}
