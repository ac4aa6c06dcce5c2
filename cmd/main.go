package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petfeeder/internal/clock"
	"petfeeder/internal/config"
	"petfeeder/internal/handlers"
	"petfeeder/internal/hardware"
	"petfeeder/internal/logger"
	"petfeeder/internal/repository"
	"petfeeder/internal/repository/db"
	"petfeeder/internal/server"
	"petfeeder/internal/service"
	"petfeeder/internal/transport"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:   "feeder",
	Short: "Pet feeder controller",
	Long:  "Runs the feeding schedule and dispense cycle, with MQTT and HTTP control surfaces.",
	RunE:  runFeeder,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the control loop, MQTT link and HTTP API",
	RunE:  runFeeder,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default configs/config.yml)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and initialises the shared logger at its level.
func loadConfig() (*config.Config, *viper.Viper, *logger.Logger, error) {
	v := config.New(configFile)
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.Get(cfg.Log.Level)
	log.SetLevel(cfg.Log.Level)
	return cfg, v, log, nil
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	conn, err := db.InitDB(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init sqlite %s: %w", cfg.Storage.Path, err)
	}
	log.Debugw("sqlite_opened", "path", cfg.Storage.Path)
	return conn, nil
}

func closeDB(conn *sql.DB, log *logger.Logger) {
	if err := conn.Close(); err != nil {
		log.Errorw("sqlite_close_failed", "err", err)
	}
}

func openClock(cfg config.ClockConfig, log *logger.Logger) (clock.Source, func(), error) {
	loc, err := clock.LoadLocation(cfg.Location)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Source == "system" {
		return clock.NewSystemClock(loc), func() {}, nil
	}
	c := clock.NewNTPClock(cfg.NTPServer, cfg.Resync, loc, log)
	if err := c.Start(); err != nil {
		return nil, nil, err
	}
	return c, c.Stop, nil
}

func runFeeder(cmd *cobra.Command, args []string) error {
	cfg, v, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	config.Watch(v, func(c *config.Config) {
		log.SetLevel(c.Log.Level)
		log.Infow("config_reloaded", "log_level", c.Log.Level)
	}, func(err error) {
		log.Warnw("config_reload_rejected", "err", err)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(conn, log)

	sw, motor, err := hardware.Open(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}
	src, stopClock, err := openClock(cfg.Clock, log)
	if err != nil {
		return err
	}
	defer stopClock()

	var remote *transport.MQTT
	svcLog := log
	if cfg.MQTT.Enabled {
		remote = transport.NewMQTT(cfg.MQTT, cfg.Device.ID, log)
		if cfg.MQTT.RemoteLogs {
			svcLog = log.Tee(remote.LogSink(), logger.WarnLevel)
		}
	}

	services := service.NewService(ctx, service.Deps{
		DeviceID:      cfg.Device.ID,
		Repos:         repository.NewRepository(conn, cfg.Storage.RegionSize),
		Switch:        sw,
		Motor:         motor,
		Clock:         src,
		Control:       cfg.Control,
		DocumentLimit: cfg.Storage.RegionSize,
		Log:           svcLog,
	})

	if remote != nil {
		remote.Bind(services.Controller)
		services.Controller.SetNotifier(remote)
		go remote.Run(ctx)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		services.Controller.Run(ctx, cfg.Control.Tick)
	}()

	srv := &server.Server{}
	if err := srv.Listen(cfg.HTTP.Port, handlers.NewHandler(services, log).InitRoutes()); err != nil {
		stop()
		<-loopDone
		return fmt.Errorf("listen http: %w", err)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Errorw("http_server_failed", "err", err)
			stop()
		}
	}()

	log.Infow("feeder_started",
		"device_id", cfg.Device.ID,
		"http", srv.Addr(),
		"gpio", cfg.GPIO.Driver,
		"clock", cfg.Clock.Source,
		"mqtt", cfg.MQTT.Enabled,
	)

	<-ctx.Done()
	waitForShutdown(srv, loopDone, log)
	return nil
}

// waitForShutdown drains HTTP requests and waits for the control loop to
// park the motor.
func waitForShutdown(srv *server.Server, loopDone <-chan struct{}, log *logger.Logger) {
	log.Infow("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("http_shutdown_failed", "err", err)
	}
	select {
	case <-loopDone:
	case <-ctx.Done():
		log.Errorw("control_loop_shutdown_timeout")
	}
	log.Infow("feeder_stopped")
}
