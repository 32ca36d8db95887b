// Copyright 2023 Ewout Prangsma
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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/service/results"
)

func newTestServer(t *testing.T) (*Server, *results.Hub) {
	t.Helper()
	hub := results.NewHub(zerolog.Nop())
	s, err := New(Config{Host: "127.0.0.1"}, zerolog.Nop(), hub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, hub
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK\n" {
		t.Errorf("Unexpected response %d '%s'", rec.Code, rec.Body.String())
	}
}

func TestLast(t *testing.T) {
	s, hub := newTestServer(t)
	if rec := get(t, s, "/api/v1/last"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	frame := irdata.RawFrame{{Pulse: 9000, Space: 4500}, {Pulse: 560, Space: 250000}}
	hub.Publish(results.Event{
		Time:   time.Now(),
		Pin:    24,
		Frame:  frame,
		Result: analyzer.Analyze(frame),
	})
	rec := get(t, s, "/api/v1/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Pin    int `json:"pin"`
		Result struct {
			Format string `json:"format"`
		} `json:"result"`
		Raw string `json:"raw"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if resp.Pin != 24 {
		t.Errorf("Expected pin 24, got %d", resp.Pin)
	}
	if resp.Result.Format != string(analyzer.FormatUnrecognized) {
		t.Errorf("Expected Unrecognized, got %s", resp.Result.Format)
	}
	if resp.Raw != irdata.Format(frame) {
		t.Errorf("Unexpected raw '%s'", resp.Raw)
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := get(t, s, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
