//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/IrWorker/pkg/analyzer"
	"github.com/binkynet/IrWorker/pkg/environment"
	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/logging"
	"github.com/binkynet/IrWorker/pkg/receiver"
	"github.com/binkynet/IrWorker/pkg/server"
	"github.com/binkynet/IrWorker/pkg/service"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
	"github.com/binkynet/IrWorker/pkg/service/publish"
	"github.com/binkynet/IrWorker/pkg/service/results"
	"github.com/binkynet/IrWorker/pkg/service/util"
	"github.com/binkynet/IrWorker/pkg/ui"
)

const (
	projectName       = "BinkyNet IR Worker"
	defaultServerPort = 7130
	defaultPin        = 24

	modeAnalyze = "analyze"
	modeRecv    = "recv"
	modeDecode  = "decode"
	modeReplay  = "replay"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

type options struct {
	level      string
	bridgeType string
	chip       string
	pin        int
	glitchUsec uint32
	watchdog   uint32
	activeHigh bool
	ledPin     int
	serverHost string
	serverPort int
	mqttBroker string
	mqttTopic  string
	mqttLog    bool
	showUI     bool
	codesOnly  bool
	verbose    bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.level, "level", "l", "info", "Set log level")
	pflag.StringVarP(&opts.bridgeType, "bridge", "b", "", "Type of bridge to use (rpi|virtual), auto detected when empty")
	pflag.StringVar(&opts.chip, "chip", bridge.DefaultChip, "GPIO chip the IR receiver is connected to")
	pflag.IntVarP(&opts.pin, "pin", "p", defaultPin, "GPIO pin the IR receiver is connected to")
	pflag.Uint32Var(&opts.glitchUsec, "glitch", receiver.DefaultGlitchUsec, "Glitch filter in usec")
	pflag.Uint32Var(&opts.watchdog, "watchdog", receiver.DefaultWatchdogMsec, "Time in msec without edges that ends a frame")
	pflag.BoolVar(&opts.activeHigh, "active-high", false, "Set if the IR receiver output is active high")
	pflag.IntVar(&opts.ledPin, "led-pin", -1, "GPIO pin of the status LED (-1 to disable)")
	pflag.StringVar(&opts.serverHost, "host", "0.0.0.0", "Host address the HTTP server will listen on")
	pflag.IntVar(&opts.serverPort, "port", defaultServerPort, "Port the HTTP server will listen on (0 to disable)")
	pflag.StringVar(&opts.mqttBroker, "mqtt-broker", "", "Address (host:port) of the MQTT broker to publish results to")
	pflag.StringVar(&opts.mqttTopic, "mqtt-topic", publish.DefaultTopicPrefix, "Prefix of the MQTT topics")
	pflag.BoolVar(&opts.mqttLog, "mqtt-log", false, "Publish logs to MQTT topic <prefix>/log")
	pflag.BoolVar(&opts.showUI, "ui", false, "Show a live view of received frames")
	pflag.BoolVar(&opts.codesOnly, "codes-only", false, "Print only the button code of every frame")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "Print Ready/Done markers around every capture")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [analyze | recv | decode <file> | replay <file>]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	mode := modeAnalyze
	args := pflag.Args()
	if len(args) > 0 {
		mode = args[0]
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logOutput io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var mqttWriter logging.MQTTWriter
	if opts.mqttLog {
		mqttWriter = logging.NewMQTTWriter(ctx)
		logOutput = logging.NewMultiWriter(logOutput, mqttWriter)
	}
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(opts.level); err != nil {
		Exitf("Invalid log level '%s': %v\n", opts.level, err)
	} else {
		logger = logger.Level(level)
	}

	var err error
	switch mode {
	case modeDecode:
		err = runDecode(args)
	case modeAnalyze, modeRecv, modeReplay:
		err = runWorker(ctx, cancel, logger, mqttWriter, mode, args, opts)
	default:
		pflag.Usage()
		Exitf("Unknown mode '%s'\n", mode)
	}
	if err != nil {
		Exitf("%s failed: %v\n", mode, err)
	}
}

// runDecode analyzes the frame in the given file and prints the result.
func runDecode(args []string) error {
	if len(args) < 2 {
		return errors.New("missing file argument")
	}
	frame, err := irdata.ParseFile(args[1])
	if err != nil {
		return maskAny(err)
	}
	encoded, err := analyzer.Serialize(analyzer.Analyze(frame))
	if err != nil {
		return maskAny(err)
	}
	fmt.Println(string(encoded))
	return nil
}

// runWorker receives frames from a bridge until canceled.
func runWorker(ctx context.Context, cancel context.CancelFunc, logger zerolog.Logger, mqttWriter logging.MQTTWriter, mode string, args []string, opts options) error {
	var replayFrame irdata.RawFrame
	if mode == modeReplay {
		if len(args) < 2 {
			return errors.New("missing file argument")
		}
		var err error
		if replayFrame, err = irdata.ParseFile(args[1]); err != nil {
			return maskAny(err)
		}
		opts.bridgeType = environment.BridgeTypeVirtual
	}
	if opts.bridgeType == "" {
		opts.bridgeType = environment.AutoDetectBridgeType(logger, opts.chip)
	}

	var br bridge.API
	var virtual *bridge.VirtualBridge
	switch opts.bridgeType {
	case environment.BridgeTypeRPI:
		var err error
		br, err = bridge.NewRaspberryPiBridge(bridge.Config{
			Chip:         opts.chip,
			StatusLEDPin: opts.ledPin,
		}, logger)
		if err != nil {
			return errors.Wrap(err, "Failed to initialize Raspberry Pi Bridge")
		}
	case environment.BridgeTypeVirtual:
		virtual = bridge.NewVirtualBridge()
		br = virtual
	default:
		return errors.Errorf("unknown bridge type '%s' (rpi|virtual)", opts.bridgeType)
	}
	defer br.Close()

	hub := results.NewHub(logger)
	svcMode := service.ModeAnalyze
	if mode == modeRecv {
		svcMode = service.ModeRecv
	}
	svc, err := service.NewService(service.Config{
		Mode: svcMode,
		Receiver: receiver.Config{
			Pin:          opts.pin,
			GlitchUsec:   opts.glitchUsec,
			WatchdogMsec: opts.watchdog,
			ActiveHigh:   opts.activeHigh,
		},
		CodesOnly: opts.codesOnly,
		Verbose:   opts.verbose,
	}, service.Dependencies{
		Logger: logger,
		Bridge: br,
		Hub:    hub,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to initialize Service")
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if !opts.showUI {
		fmt.Fprintf(os.Stderr, "Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	if opts.serverPort > 0 && mode != modeReplay {
		httpServer, err := server.New(server.Config{
			Host:     opts.serverHost,
			HTTPPort: opts.serverPort,
		}, logger, hub)
		if err != nil {
			return errors.Wrap(err, "Failed to initialize Server")
		}
		g.Go(func() error { return httpServer.Run(ctx) })
	}
	if opts.mqttBroker != "" {
		publisher, err := publish.New(publish.Config{
			BrokerAddress: opts.mqttBroker,
			TopicPrefix:   opts.mqttTopic,
		}, publish.Dependencies{
			Log: logger,
			Hub: hub,
		})
		if err != nil {
			return errors.Wrap(err, "Failed to initialize MQTT publisher")
		}
		if mqttWriter != nil {
			mqttWriter.SetDestination(publisher.TopicPrefix+"/log", publisher)
			mqttWriter.Enable(true)
		}
		g.Go(func() error {
			return util.UntilCanceled(ctx, logger, "publish results", func() error {
				return publisher.Run(ctx)
			})
		})
	}
	if opts.showUI {
		g.Go(func() error {
			defer cancel()
			return ui.Run(ctx, opts.pin, hub)
		})
	}
	if mode == modeReplay {
		g.Go(func() error {
			defer cancel()
			if err := service.Replay(ctx, virtual, opts.pin, replayFrame, !opts.activeHigh); err != nil {
				return maskAny(err)
			}
			for svc.FramesReceived() == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Millisecond * 10):
					// Wait for the frame to be processed
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return maskAny(err)
	}
	return nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
