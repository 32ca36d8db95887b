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

package logging

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testPublisher struct {
	mutex    sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *testPublisher) Publish(topic string, payload []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *testPublisher) count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.payloads)
}

func TestMQTTWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewMQTTWriter(ctx)
	p := &testPublisher{}

	// Disabled writer drops lines
	w.Write([]byte("dropped"))

	w.SetDestination("irworker/log", p)
	w.Enable(true)
	line := []byte(`{"message":"hello"}`)
	w.Write(line)
	// Writer must not keep a reference to the caller's buffer
	line[2] = 'X'

	deadline := time.Now().Add(2 * time.Second)
	for p.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Log line not published in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.topics[0] != "irworker/log" {
		t.Errorf("Expected topic irworker/log, got %s", p.topics[0])
	}
	if string(p.payloads[0]) != `{"message":"hello"}` {
		t.Errorf("Unexpected payload %s", p.payloads[0])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("failed")
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter(&a, nil, failingWriter{}, &b)
	n, err := w.Write([]byte("line"))
	if err == nil {
		t.Error("Expected error")
	}
	if n != 4 {
		t.Errorf("Expected 4, got %d", n)
	}
	if a.String() != "line" || b.String() != "line" {
		t.Errorf("Expected both outputs written, got '%s', '%s'", a.String(), b.String())
	}
}
