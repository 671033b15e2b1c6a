package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("irdac v%s\n", version)
	fmt.Println("IR and MQTT volume controller for a networked DAC")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  irdac [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Turns IR remote presses into stepped, perceptually scaled volume")
	fmt.Println("  changes on the DAC, mirrors volume and input state to MQTT, and")
	fmt.Println("  drives the front panel display.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file; built-in defaults are used when omitted")
	fmt.Println()
	fmt.Println("  -ir-device string")
	fmt.Println("        Linux input event device for IR (replaces ir.devices)")
	fmt.Println()
	fmt.Println("  -mqtt-broker string")
	fmt.Println("        MQTT broker URL, e.g. tcp://mqtt.local:1883 (empty disables MQTT)")
	fmt.Println()
	fmt.Println("  -dac-backend string")
	fmt.Println("        DAC attenuator: none, camilladsp or pga2311")
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Println("        HTTP API port")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  irdac -config /etc/irdac/config.yaml")
	fmt.Println("  irdac -ir-device /dev/input/event4 -mqtt-broker tcp://192.168.1.10:1883")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - Flags override values from the config file")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "YAML config file")
		irDevice   = flag.String("ir-device", "", "Linux input event device for IR")
		mqttBroker = flag.String("mqtt-broker", "", "MQTT broker URL (empty disables MQTT)")
		dacBackend = flag.String("dac-backend", "", "DAC attenuator: none, camilladsp or pga2311")
		httpPort   = flag.Int("http-port", 0, "HTTP API port")
		logLevel   = flag.String("log-level", "", "Log level: error, warn, info, debug")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(ExpandPath(*configPath))
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ir-device":
			o.IRDevice = irDevice
		case "mqtt-broker":
			o.MQTTBroker = mqttBroker
		case "dac-backend":
			o.DACBackend = dacBackend
		case "http-port":
			o.HTTPPort = httpPort
		case "log-level":
			o.LogLevel = logLevel
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, logger); err != nil {
		logger.Error("irdac stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// run wires every component and blocks until ctx is canceled or one of them
// fails. Any failure cancels the rest.
func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("starting irdac", "version", version, "hostname", cfg.Network.Hostname)

	km := DefaultKeymap()
	if cfg.IR.KeymapFile != "" {
		var err error
		km, err = LoadKeymapFile(ExpandPath(cfg.IR.KeymapFile))
		if err != nil {
			return err
		}
	}
	dec := NewDecoder(km)

	state, err := NewDaemonState(cfg, time.Now())
	if err != nil {
		return err
	}

	events := make(chan Event, eventQueueSize)
	report := func(ev Event) { trySend(events, ev, logger) }

	dac, err := openAttenuator(ctx, cfg, componentLogger(logger, "dac"))
	if err != nil {
		return err
	}
	defer dac.Close()

	g, ctx := errgroup.WithContext(ctx)

	fx := &Effects{DAC: newDACWorker(dac, dacWriteTimeout, report, componentLogger(logger, "dac"))}
	g.Go(func() error { fx.DAC.Run(ctx); return nil })

	displays := multiDisplay{logDisplay{logger: componentLogger(logger, "display")}}
	if cfg.Display.OLED.Enabled {
		oled, err := NewOLED(cfg.Display.OLED)
		if err != nil {
			logger.Warn("oled unavailable; continuing without panel", "error", err)
		} else {
			defer oled.Close()
			displays = append(displays, oled)
		}
	}

	var publishers multiPublisher

	sel, err := newGPIOSelector(cfg.Source.SelectPins, componentLogger(logger, "source"))
	if err != nil {
		return err
	}
	if sel != nil {
		fx.Inputs = sel
	}

	np := &nowPlayingTracker{}

	if cfg.MQTT.Enabled {
		bridge := NewMQTTBridge(&cfg.MQTT, cfg.Network.Hostname, cfg.SourceLabels(), events, np, componentLogger(logger, "mqtt"))
		publishers = append(publishers, bridge)
		g.Go(func() error { return bridge.Run(ctx) })
	}

	if cfg.HTTP.Enabled {
		wsLogger := componentLogger(logger, "ws")
		hub := NewHub(wsLogger, 0, 0)
		feed := newWSFeed(eventQueueSize, wsLogger)
		publishers = append(publishers, feed)
		displays = append(displays, feed)

		g.Go(func() error { hub.Run(ctx); return nil })
		g.Go(func() error { RunBroadcaster(ctx, hub, feed.out, wsLogger); return nil })

		router := newAPIRouter(cfg, events, hub, componentLogger(logger, "http"))
		g.Go(func() error { return runHTTPServer(ctx, cfg.HTTP.Port, router, componentLogger(logger, "http")) })

		if cfg.HTTP.Zeroconf {
			g.Go(func() error {
				if err := advertiseHTTP(ctx, cfg.Network.Hostname, cfg.HTTP.Port, componentLogger(logger, "mdns")); err != nil {
					logger.Warn("mDNS advertisement failed", "error", err)
				}
				return nil
			})
		}
	}

	fx.Publisher = publishers
	fx.Display = newDisplayWorker(displays, componentLogger(logger, "display"))
	g.Go(func() error { fx.Display.Run(ctx); return nil })

	irLogger := componentLogger(logger, "ir")
	if len(cfg.IR.Devices) > 0 {
		g.Go(func() error { return runEvdevInput(ctx, cfg.IR.Devices, dec, events, irLogger) })
	}
	if cfg.IR.SerialPort != "" {
		g.Go(func() error { return runSerialIR(ctx, cfg.IR.SerialPort, cfg.IR.SerialBaud, dec, events, irLogger) })
	}
	if cfg.IR.GPIOPin != "" {
		g.Go(func() error { return runGPIOIR(ctx, cfg.IR.GPIOPin, dec, events, irLogger) })
	}
	if cfg.IR.KeymapFile != "" {
		g.Go(func() error { return watchKeymap(ctx, cfg.IR.KeymapFile, dec, irLogger) })
	}

	if cfg.MPD.Enabled {
		g.Go(func() error { return runMPDWatcher(ctx, &cfg.MPD, np, events, componentLogger(logger, "mpd")) })
	}

	g.Go(func() error { return runIPCServer(ctx, cfg.IPC.SocketPath, dec, cfg.SourceLabels(), events, componentLogger(logger, "ipc")) })

	tick := time.Duration(cfg.Display.TickMS) * time.Millisecond
	g.Go(func() error {
		runDaemon(ctx, events, state, fx, tick, componentLogger(logger, "daemon"))
		return nil
	})

	logger.Info("running",
		"dac", cfg.DAC.Backend,
		"mqtt", cfg.MQTT.Enabled,
		"http_port", cfg.HTTP.Port,
		"ipc", cfg.IPC.SocketPath,
		"keymap_entries", len(km.Entries()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openAttenuator connects the configured DAC backend.
func openAttenuator(ctx context.Context, cfg *Config, logger *slog.Logger) (Attenuator, error) {
	switch cfg.DAC.Backend {
	case "camilladsp":
		timeout := time.Duration(cfg.DAC.CamillaDSP.TimeoutMS) * time.Millisecond
		c, err := NewCamillaDSPClient(ctx, cfg.DAC.CamillaDSP.WsURL, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("camilladsp: %w", err)
		}
		if db, err := c.GetVolume(ctx); err == nil {
			logger.Info("camilladsp volume before takeover", "db", db)
		}
		return c, nil
	case "pga2311":
		p, err := NewPGA2311(cfg.DAC.SPI)
		if err != nil {
			return nil, fmt.Errorf("pga2311: %w", err)
		}
		logger.Info("pga2311 ready", "port", cfg.DAC.SPI.Port)
		return p, nil
	default:
		return nullAttenuator{logger: logger}, nil
	}
}
