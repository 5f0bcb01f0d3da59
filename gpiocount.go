package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/controller"
	"gregoryjjb/gpiocount/gpio"
)

func init() {
	InitializeLogger()
}

// Populated by ldflags
var (
	version            string
	buildUnixTimestamp string
	commitHash         string
)

func main() {
	ts, _ := strconv.ParseInt(buildUnixTimestamp, 10, 64)
	info := BuildInfo{
		Version:    version,
		BuildTime:  time.Unix(ts, 0),
		CommitHash: commitHash,
	}

	var flags Flags
	versionFlag := flag.Bool("version", false, "Print version")
	systemdFlag := flag.Bool("systemd", false, "Print systemd service file")
	flag.StringVar(&flags.ConfigPath, "config", "", "Config file (.toml or .yaml)")
	flag.BoolFunc("enable-gpio", "Drive real GPIO pins instead of simulating them", func(s string) error {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		flags.EnableGPIO = &b
		return nil
	})
	flag.Parse()

	if *versionFlag {
		fmt.Println("gpiocount version:", info.Version)
		fmt.Println("Built on:", info.BuildTime)
		fmt.Println("Commit hash:", info.CommitHash)
		return
	}

	if *systemdFlag {
		if err := WriteServiceFile(os.Stdout, flags.ConfigPath); err != nil {
			log.Fatal().Err(err).Msg("Rendering service file")
		}
		return
	}

	log.Info().
		Str("version", info.Version).
		Str("build_timestamp", info.BuildTime.Format(time.RFC3339)).
		Str("commit_hash", info.CommitHash).
		Msg("Initializing gpiocount")

	config, err := NewConfig(NewOSFS(), flags, os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Config initialization failed")
	}
	SetLogLevel(config.LogLevel())
	if config.Path() != "" {
		log.Info().Str("path", config.Path()).Msg("Loaded config")
	}

	opts := config.GPIOOptions()
	if opts.Enabled {
		log.Info().Str("backend", opts.Backend).Msg("GPIO enabled")
	} else {
		log.Info().Msg("GPIO disabled")
	}
	hw, err := gpio.Open(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("GPIO initialization failed")
	}

	ctrl := controller.New(hw, controller.Options{
		HistorySize: config.HistorySize(),
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Err(err).Msg("Releasing GPIO")
		}
		log.Info().Msg("Exited")
	}()

	if descriptor, ok := config.LEDs(); ok {
		if err := ctrl.AssignLEDs(descriptor); err != nil {
			log.Err(err).Msg("Initial LED assignment failed")
		}
	}
	if pin, ok := config.Button(); ok {
		if err := ctrl.AssignButton(pin); err != nil {
			log.Err(err).Msg("Initial button assignment failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ctrl.Run(ctx)

	bridge := NewMQTTBridge(config.MQTT(), ctrl)
	if bridge.IsEnabled() {
		go bridge.Run(ctx)
	}

	if err := StartServer(ctx, config, info, ctrl); err != nil {
		log.Err(err).Msg("Server closed with error")
	}
}
