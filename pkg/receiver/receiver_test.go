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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
)

const (
	testPin = 24
)

var necFrame = irdata.RawFrame{
	{Pulse: 9000, Space: 4500},
	{Pulse: 560, Space: 560}, {Pulse: 560, Space: 1690}, {Pulse: 560, Space: 560}, {Pulse: 560, Space: 1690},
	{Pulse: 560, Space: 0},
}

type recvResult struct {
	frame irdata.RawFrame
	err   error
}

func newTestReceiver(t *testing.T, cfg Config) (*Receiver, *bridge.VirtualBridge) {
	t.Helper()
	v := bridge.NewVirtualBridge()
	cfg.Pin = testPin
	if cfg.WatchdogMsec == 0 {
		// Long enough to never fire during a test; tests trigger timeouts explicitly
		cfg.WatchdogMsec = 60 * 1000
	}
	r, err := New(cfg, Dependencies{Log: zerolog.Nop(), Bridge: v})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, v
}

func startRecv(t *testing.T, r *Receiver, v *bridge.VirtualBridge) <-chan recvResult {
	t.Helper()
	results := make(chan recvResult, 1)
	go func() {
		frame, err := r.Recv()
		results <- recvResult{frame, err}
	}()
	deadline := time.Now().Add(time.Second)
	for !v.HasCallback(testPin) {
		if time.Now().After(deadline) {
			t.Fatal("Callback not registered in time")
		}
		time.Sleep(time.Millisecond)
	}
	return results
}

func waitResult(t *testing.T, results <-chan recvResult) recvResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return in time")
	}
	return recvResult{}
}

func expectedFrame(trailingSpace uint32) irdata.RawFrame {
	f := necFrame.Clone()
	f[len(f)-1].Space = trailingSpace
	return f
}

func TestNewConfiguresPin(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	if v.GlitchFilter(testPin) != DefaultGlitchUsec {
		t.Errorf("Expected glitch filter %d, got %d", DefaultGlitchUsec, v.GlitchFilter(testPin))
	}
	r.SetWatchdog(0)
	if r.Watchdog() != DefaultWatchdogMsec {
		t.Errorf("Expected default watchdog, got %d", r.Watchdog())
	}
}

func TestNewInvalidPin(t *testing.T) {
	v := bridge.NewVirtualBridge()
	if _, err := New(Config{Pin: 1000}, Dependencies{Log: zerolog.Nop(), Bridge: v}); err == nil {
		t.Error("Expected error for invalid pin")
	}
}

func TestRecvFrame(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	last := v.Play(testPin, necFrame, 1000, true)
	v.Timeout(testPin, last+250000)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	assertFrame(t, expectedFrame(250000), res.frame)
	if v.HasCallback(testPin) {
		t.Error("Expected callback to be canceled after Recv")
	}
}

func TestRecvTickWraparound(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	last := v.Play(testPin, necFrame, 0xFFFFFFFF-10000, true)
	v.Timeout(testPin, last+250000)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	assertFrame(t, expectedFrame(250000), res.frame)
}

func TestRecvClampsTrailingSpace(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	last := v.Play(testPin, necFrame, 1000, true)
	v.Timeout(testPin, last+2*IntervalMaxUsec)

	res := waitResult(t, results)
	assertFrame(t, expectedFrame(IntervalMaxUsec), res.frame)
}

func TestRecvActiveHigh(t *testing.T) {
	r, v := newTestReceiver(t, Config{ActiveHigh: true})
	results := startRecv(t, r, v)
	last := v.Play(testPin, necFrame, 1000, false)
	v.Timeout(testPin, last+250000)

	res := waitResult(t, results)
	assertFrame(t, expectedFrame(250000), res.frame)
}

func TestRecvIgnoresShortLeader(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	// Noise: a 100usec pulse
	v.Inject(testPin, bridge.LevelLow, 500)
	v.Inject(testPin, bridge.LevelHigh, 600)
	// Real frame
	last := v.Play(testPin, necFrame, 50000, true)
	v.Timeout(testPin, last+250000)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	assertFrame(t, expectedFrame(250000), res.frame)
}

func TestRecvEmptyFrame(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	v.Timeout(testPin, 1000)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	if !res.frame.IsEmpty() {
		t.Errorf("Expected empty frame, got %v", res.frame)
	}
}

func TestRecvWatchdogEndsFrame(t *testing.T) {
	r, v := newTestReceiver(t, Config{WatchdogMsec: 20})
	results := startRecv(t, r, v)
	v.Play(testPin, necFrame, 1000, true)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	if len(res.frame) != len(necFrame) {
		t.Fatalf("Expected %d pairs, got %d", len(necFrame), len(res.frame))
	}
	if space := res.frame[len(res.frame)-1].Space; space < 20000 {
		t.Errorf("Expected trailing space >= 20000, got %d", space)
	}
}

func TestRecvIgnoresInvalidLevel(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	v.Inject(testPin, bridge.Level(7), 500)
	last := v.Play(testPin, necFrame, 1000, true)
	v.Inject(testPin, bridge.Level(42), last+100)
	v.Timeout(testPin, last+250000)

	res := waitResult(t, results)
	if res.err != nil {
		t.Fatalf("Recv failed: %v", res.err)
	}
	assertFrame(t, expectedFrame(250000), res.frame)
}

func TestTimeoutWithFullQueue(t *testing.T) {
	r, _ := newTestReceiver(t, Config{})
	c := newCapture(4)
	atomic.StoreInt32(&c.receiving, 1)

	tick := uint32(1000)
	r.onEdge(c, bridge.LevelLow, tick)
	tick += 9000
	r.onEdge(c, bridge.LevelHigh, tick)
	tick += 4500
	r.onEdge(c, bridge.LevelLow, tick)
	tick += 560
	r.onEdge(c, bridge.LevelHigh, tick)
	// Queue is full now, this edge is dropped
	r.onEdge(c, bridge.LevelLow, tick+1690)
	r.onEdge(c, bridge.LevelTimeout, tick+250000)

	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	r.worker(c, b)
	if !completed(b) {
		t.Fatalf("Expected complete frame, got state %s", b.state)
	}
	assertFrame(t, irdata.RawFrame{{Pulse: 9000, Space: 4500}, {Pulse: 560, Space: 250000}}, b.result())
}

func TestRecvBusy(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	if _, err := r.Recv(); err != ErrBusy {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	v.Timeout(testPin, 1000)
	waitResult(t, results)
}

func TestEndInterruptsRecv(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	results := startRecv(t, r, v)
	v.Inject(testPin, bridge.LevelLow, 1000)
	v.Inject(testPin, bridge.LevelHigh, 10000)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.End()
		}()
	}
	wg.Wait()

	res := waitResult(t, results)
	if res.err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", res.err)
	}
	if v.HasCallback(testPin) {
		t.Error("Expected callback to be canceled after End")
	}
	if _, err := r.Recv(); err != ErrClosed {
		t.Errorf("Expected ErrClosed after End, got %v", err)
	}
	r.End()
}

func TestEndWithoutRecv(t *testing.T) {
	r, v := newTestReceiver(t, Config{})
	r.End()
	r.End()
	if v.HasCallback(testPin) {
		t.Error("Expected no callback")
	}
}
