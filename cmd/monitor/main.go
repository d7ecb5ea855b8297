// Command monitor serves the roaster dashboard: it follows the telemetry
// relay and exposes recorded roasts over HTTP and WebSocket.
//
//	@title						Roaster dashboard API
//	@version					1.0
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "coffee_roaster/docs"
	"coffee_roaster/internal/config"
	"coffee_roaster/internal/handlers"
	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/repository"
	"coffee_roaster/internal/repository/db"
	"coffee_roaster/internal/server"
	"coffee_roaster/internal/service"
	"coffee_roaster/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("monitor", pflag.ExitOnError)
	config.MonitorFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Get(cfg.Log.Level)

	// open DB
	dbConn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := dbConn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	relay := startRelay(cfg, log)
	defer func() { _ = relay.Close() }()

	// wire dependencies
	repos := repository.NewRepository(dbConn)
	services := service.NewService(repos, relay, service.Options{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
	})
	if cfg.Auth.SigningKey == "" {
		log.Warnw("auth.signing_key is empty; sign-in is disabled")
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	srv := server.New(cfg.HTTP.Port, apiHandler.InitRoutes())
	go func() {
		log.Infow("dashboard listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	waitForShutdown(srv, log)
}

// startRelay subscribes to the telemetry relay. A broker that is down at
// start-up leaves the dashboard serving recorded data only.
func startRelay(cfg *config.Config, log *logger.Logger) *telemetry.Subscriber {
	sub := telemetry.NewSubscriber(cfg.MQTT.Buffer, log.Named("relay"))
	clientID := cfg.MQTT.ClientID + "-monitor"
	if err := sub.Connect(cfg.MQTT.Broker, clientID, cfg.MQTT.Topic, cfg.MQTT.Timeout); err != nil {
		log.Warnw("relay unavailable, live view disabled", "broker", cfg.MQTT.Broker, "err", err)
	}
	return sub
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
