package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/udooneo/neo/config"
	"github.com/udooneo/neo/hardware/gpio"
	"github.com/udooneo/neo/server"
	"github.com/udooneo/neo/store"
)

func main() {
	configPath := flag.String("config", "neo.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("unable to load config: %s", err)
	}

	logger, err := config.NewLogger(cfg.Logger, os.Stderr)
	if err != nil {
		logrus.Fatalf("unable to set up logger: %s", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	st, err := store.OpenBBolt(cfg.Store.Path, 0600, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	// a hardware section in the config file seeds the store on first start
	if cfg.Hardware.Neo != nil {
		if _, err := st.HardwareConfig(); errors.Is(err, store.ErrNotFound) {
			if err := st.PutHardwareConfig(cfg.Hardware); err != nil {
				return err
			}
		}
	}

	// the daemon frees the engine itself once the server has stopped
	engine := gpio.New(gpio.Sysfs{Root: cfg.GPIO.SysfsRoot}, cfg.GPIO.Lines, gpio.Options{
		Logger:        logger,
		DefaultPeriod: cfg.GPIO.DefaultPeriod,
		NoExitHook:    true,
	})
	if err := engine.Init(); err != nil {
		logger.Warnf("some pins are unusable: %s", err)
	}
	defer func() {
		if err := engine.Free(); err != nil {
			logger.Warnf("unable to free gpio: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.Server{
		Addr:          cfg.Server.Addr,
		Store:         st,
		GPIO:          engine,
		Logger:        logger,
		DefaultPeriod: cfg.GPIO.DefaultPeriod,
	}

	return s.Run(ctx)
}
