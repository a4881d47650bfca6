package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("flightmouse v%s\n", version)
	fmt.Println("Flight stick to virtual mouse + keyboard translator")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  flightmouse [OPTIONS]")
	fmt.Println("  flightmouse ctl [OPTIONS] toggle|enable|disable|status")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a joystick through evdev and drives a uinput virtual device:")
	fmt.Println("  stick X/Y moves the pointer, the throttle holds or taps keys, the rudder")
	fmt.Println("  holds left/right keys. A toggle button enables/disables translation")
	fmt.Println("  (starts disabled).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Printf("        YAML or JSON config file (default %q)\n", defaultConfigPath)
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Joystick event device; overrides device.path and skips discovery")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (overrides logging.level)")
	fmt.Println()
	fmt.Println("  -control-socket string")
	fmt.Println("        Unix domain socket for flightmouse ctl (overrides control.socket_path)")
	fmt.Println()
	fmt.Println("  -status-listen string")
	fmt.Println("        Address for the status websocket, e.g. 127.0.0.1:8642 (overrides status.listen)")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the joystick and write access to /dev/uinput")
	fmt.Println("    (run as root or add user to the 'input' group + a uinput udev rule)")
	fmt.Println("  - The status websocket is served at /ws when -status-listen is set")
	fmt.Println()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "ctl" {
		os.Exit(runCtlSubcommand(os.Args[2:]))
	}

	var (
		configPath    = flag.String("config", defaultConfigPath, "YAML or JSON config file")
		devicePath    = flag.String("device", "", "Joystick event device (skips discovery)")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		controlSocket = flag.String("control-socket", "", "Unix domain socket for flightmouse ctl")
		statusListen  = flag.String("status-listen", "", "Address for the status websocket")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only flags given on the command line override the file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			overrides.DevicePath = devicePath
		case "log-level":
			overrides.LogLevel = logLevelStr
		case "control-socket":
			overrides.ControlSocket = controlSocket
		case "status-listen":
			overrides.StatusListen = statusListen
		}
	})

	cfg, err := LoadConfigFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}
	engineCfg, err := cfg.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, engineCfg, logger); err != nil {
		logger.Error("flightmouse stopped", "error", err)
		os.Exit(1)
	}
}

// run opens both devices, runs the engine and its servers until a signal
// or a fatal error, then closes the devices.
func run(cfg Config, engineCfg EngineConfig, logger *slog.Logger) error {
	path := cfg.Device.Path
	if path == "" {
		found, err := findJoystick(cfg.Device.ByIDDir, cfg.Device.Match)
		if err != nil {
			return err
		}
		logger.Info("found joystick", "path", found)
		path = found
	}

	dev, err := openInputDevice(path, cfg.Device.Grab)
	if err != nil {
		return fmt.Errorf("%w (tip: run as root or add user to 'input' group)", err)
	}
	// Closing the file unblocks the reader goroutine.
	defer dev.File.Close()

	out, err := createUinputDevice(cfg.Device.Uinput, cfg.Device.VirtualName, engineCfg.outputKeys())
	if err != nil {
		return fmt.Errorf("create virtual device: %w", err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("destroy virtual device", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := NewEngine(engineCfg, out, logger)

	logger.Debug("configuration",
		"device", path,
		"device_name", dev.Name,
		"virtual_name", cfg.Device.VirtualName,
		"poll_interval", engineCfg.PollInterval,
		"release_on_disable", engineCfg.ReleaseOnDisable,
		"control_socket", cfg.Control.SocketPath,
		"status_listen", cfg.Status.Listen)
	logger.Info("listening", "device", path, "virtual_device", cfg.Device.VirtualName, "enabled", false)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gctx, dev)
	})

	if cfg.Control.SocketPath != "" {
		g.Go(func() error {
			return runControlServer(gctx, cfg.Control.SocketPath, engine.Control(), withComponent(logger, "control"))
		})
	}

	if cfg.Status.Listen != "" {
		statusLogger := withComponent(logger, "status")
		status := NewStatusServer(statusLogger, engine.State(), HubConfig{})
		mux := http.NewServeMux()
		status.Register(mux, "/ws")

		g.Go(func() error {
			status.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, status.Hub(), engine.StatusEvents(), statusLogger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.Status.Listen, mux, statusLogger)
		})
	}

	err = g.Wait()
	if err == nil {
		logger.Info("shutting down")
	}
	return err
}

func printCtlUsage() {
	fmt.Printf("flightmouse ctl v%s\n", version)
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  flightmouse ctl [OPTIONS] toggle|enable|disable|status")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Config file to read control.socket_path from (optional)")
	fmt.Println()
	fmt.Println("  -control-socket string")
	fmt.Printf("        Unix domain socket of the running daemon (default %q)\n", defaultSocketPath)
	fmt.Println()
}

// runCtlSubcommand sends one control op to a running daemon and prints the
// JSON response. Returns the process exit code.
func runCtlSubcommand(args []string) int {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "Config file to read control.socket_path from")
	socket := fs.String("control-socket", "", "Unix domain socket of the running daemon")
	fs.Usage = printCtlUsage

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		printCtlUsage()
		return 2
	}

	socketPath := defaultSocketPath
	if *configPath != "" {
		cfg, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		socketPath = cfg.Control.SocketPath
	}
	if *socket != "" {
		socketPath = *socket
	}

	resp, err := SendControl(socketPath, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
	return 0
}
