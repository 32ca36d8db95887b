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
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/service/results"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
}

// Server runs the HTTP server for the service.
type Server struct {
	Config
	log zerolog.Logger
	hub *results.Hub
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, hub *results.Hub) (*Server, error) {
	if hub == nil {
		return nil, errors.New("hub is required")
	}
	return &Server{
		Config: cfg,
		log:    log.With().Str("component", "server").Logger(),
		hub:    hub,
	}, nil
}

// lastResponse is the response of the last-frame API.
type lastResponse struct {
	Time   time.Time       `json:"time"`
	Pin    int             `json:"pin"`
	Result analyzer.Result `json:"result"`
	Raw    string          `json:"raw"`
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	httpRouter := echo.New()
	httpRouter.HideBanner = true
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/health", echo.WrapHandler(http.HandlerFunc(healthHandler)))
	httpRouter.GET("/api/v1/last", s.lastHandler)
	httpRouter.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	return httpRouter
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	// Prepare HTTP listener
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}

	// Prepare HTTP server
	httpSrv := http.Server{
		Handler: s.Handler(),
	}

	// Serve apis
	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to serve HTTP server")
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
	}()

	// Wait until context closed
	<-ctx.Done()

	log.Info().Msg("Closing servers")
	httpSrv.Shutdown(context.Background())
	return nil
}

// lastHandler returns the last received frame.
func (s *Server) lastHandler(c echo.Context) error {
	e, found := s.hub.Last()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "no frame received yet"})
	}
	return c.JSON(http.StatusOK, lastResponse{
		Time:   e.Time,
		Pin:    e.Pin,
		Result: e.Result,
		Raw:    irdata.Format(e.Frame),
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK\n"))
}
