// Command roaster runs one roast: it reproduces a recorded setup file in
// automatic mode, or records a roast driven by the operator.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"coffee_roaster/internal/clock"
	"coffee_roaster/internal/config"
	"coffee_roaster/internal/control"
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/export"
	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
	"coffee_roaster/internal/profile"
	"coffee_roaster/internal/repository"
	"coffee_roaster/internal/repository/db"
	"coffee_roaster/internal/roast"
	"coffee_roaster/internal/service"
	"coffee_roaster/internal/telemetry"
)

func main() {
	fs := pflag.NewFlagSet("roaster", pflag.ExitOnError)
	config.RoastFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, config.ErrUsage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.ApplyRoastArgs(fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.PrintDefaults()
		os.Exit(2)
	}

	log := logger.Get(cfg.Log.Level)
	if err := run(cfg, log); err != nil {
		log.Errorw("roast failed", "err", err)
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof, err := profile.Load(cfg.Roast.Setup, cfg.Roast.Interval)
	if err != nil {
		return err
	}
	log.Infow("setup loaded", "path", cfg.Roast.Setup, "rows", prof.Len(), "final_bean_temp", prof.FinalBeanTemp())

	kind, err := control.ParseKind(cfg.Roast.Control)
	if err != nil {
		return err
	}

	dbConn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer closeDB(dbConn, log)
	repos := repository.NewRepository(dbConn)
	recording := service.NewRecordingService(repos.Roasts, repos.Ticks, repos.Events)

	dev, err := openDevice(ctx, cfg, log)
	if err != nil {
		return err
	}

	var strategy control.Strategy
	if cfg.Roast.Automatic {
		strategy, err = control.New(kind, control.Deps{
			Device:  dev,
			Profile: prof,
			Log:     log.Named("control"),
		})
		if err != nil {
			_ = dev.Close()
			return err
		}
	}

	started, err := recording.Begin(ctx, models.Roast{
		Name:          cfg.Roast.Name,
		Automatic:     cfg.Roast.Automatic,
		Strategy:      strategyName(cfg.Roast.Automatic, kind),
		ProfilePath:   cfg.Roast.Setup,
		FinalBeanTemp: cfg.Roast.FinalBeanTemp,
	})
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("record roast start: %w", err)
	}

	sink, closeSinks := buildSinks(cfg, repos, log)

	roastCfg := roast.DefaultConfig()
	roastCfg.Name = cfg.Roast.Name
	roastCfg.Automatic = cfg.Roast.Automatic
	roastCfg.TotalDuration = cfg.Roast.Duration()
	roastCfg.FinalBeanTemp = cfg.Roast.FinalBeanTemp
	roastCfg.StartMixerRemainingDegrees = cfg.Roast.StartMixerRemaining

	orch, err := roast.New(roastCfg, roast.Deps{
		Device:   dev,
		Profile:  prof,
		Strategy: strategy,
		Sink:     sink,
		Exporter: export.XLSX{Dir: cfg.Export.Dir},
		Clock:    clock.Real{},
		Log:      log.Named("roast"),
		RoastID:  started.ID,
	})
	if err != nil {
		_ = dev.Close()
		closeSinks()
		return err
	}

	log.Infow("roast starting", "roast_id", started.ID, "name", cfg.Roast.Name,
		"automatic", cfg.Roast.Automatic, "control", kind.String(), "duration", roastCfg.TotalDuration)
	res, runErr := orch.Run(ctx)

	// the transcript must be on disk before the roast is marked finished
	closeSinks()

	// ctx may already be canceled by the operator; finishing is still recorded
	if err := recording.Finish(context.Background(), started.ID, res.ExportPath); err != nil {
		log.Errorw("record roast finish failed", "roast_id", started.ID, "err", err)
	}
	if res.ExportPath != "" {
		log.Infow("Arquivo gravado", "path", res.ExportPath, "ticks", len(res.Ticks))
	}
	log.Infow("roast finished", "roast_id", started.ID, "phase", res.LastPhase.String(),
		"turning_point", res.TurningPointTemp, "discharged", res.Discharged)
	return runErr
}

// openDevice connects to the controller, or to the simulator with --fake.
func openDevice(ctx context.Context, cfg *config.Config, log *logger.Logger) (*device.Roaster, error) {
	if cfg.Simulator.Enabled {
		sim := device.NewSimulator(cfg.Simulator.BeanTemp, cfg.Simulator.FireTemp)
		go sim.Run(ctx, cfg.Simulator.Step)
		log.Infow("using roaster simulator", "bean_temp", cfg.Simulator.BeanTemp, "fire_temp", cfg.Simulator.FireTemp)
		return device.New(sim, log.Named("device")), nil
	}
	dev, err := device.Connect(cfg.Roaster.Address, cfg.Roaster.Timeout, log.Named("device"))
	if err != nil {
		return nil, fmt.Errorf("connect roaster %s: %w", cfg.Roaster.Address, err)
	}
	log.Infow("roaster connected", "address", cfg.Roaster.Address)
	return dev, nil
}

// buildSinks always logs to the console and records to SQLite. The MQTT relay
// is added when enabled and reachable.
func buildSinks(cfg *config.Config, repos *repository.Repository, log *logger.Logger) (telemetry.Sink, func()) {
	recorder := telemetry.NewRecorderSink(repos.Ticks, repos.Events, 0, log.Named("recorder"))
	sinks := telemetry.Multi{telemetry.NewConsoleSink(log.Named("torrador")), recorder}

	if cfg.MQTT.Enabled {
		pub, err := telemetry.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Timeout)
		if err != nil {
			log.Warnw("relay unavailable, continuing without it", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			sinks = append(sinks, telemetry.NewMQTTSink(pub, cfg.MQTT.Topic, cfg.MQTT.QueueSize, log.Named("relay")))
		}
	}

	return sinks, func() {
		if err := sinks.Close(); err != nil {
			log.Warnw("closing telemetry sinks", "err", err)
		}
		if n := recorder.Dropped(); n > 0 {
			log.Warnw("ticks dropped by recorder", "count", n)
		}
	}
}

func strategyName(automatic bool, kind control.Kind) string {
	if !automatic {
		return ""
	}
	return kind.String()
}

func closeDB(conn *sql.DB, log *logger.Logger) {
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		log.Warnw("failed to close sqlite", "err", err)
	}
}
