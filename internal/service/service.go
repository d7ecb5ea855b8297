package service

import (
	"context"
	"time"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/repository"
	"coffee_roaster/internal/telemetry"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Recording tracks roasts in the database: one row per roast plus its
// START and STOP events. Ticks and other events arrive through the
// recorder sink.
type Recording interface {
	Begin(ctx context.Context, r models.Roast) (models.Roast, error)
	Finish(ctx context.Context, id, exportPath string) error
	Get(ctx context.Context, id string) (*models.Roast, error)
	List(ctx context.Context, limit int) ([]models.Roast, error)
	Ticks(ctx context.Context, id string) ([]models.Tick, error)
}

// Monitoring exposes the latest machine reading.
type Monitoring interface {
	GetState(ctx context.Context) (models.Tick, error)
}

// EventLog exposes the roast log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.RoastEvent, error)
}

// Relay exposes the live telemetry relay to the dashboard.
type Relay interface {
	Drain(max int) []telemetry.Message
	Listen(buffer int) (<-chan telemetry.Message, func())
}

type Service struct {
	Recording
	Monitoring
	EventLog
	Relay
	Authorization
}

// Options configure the services that need more than a repository.
type Options struct {
	SigningKey string
	TokenTTL   time.Duration
}

func NewService(repos *repository.Repository, relay Relay, opts Options) *Service {
	return &Service{
		Recording:     NewRecordingService(repos.Roasts, repos.Ticks, repos.Events),
		Monitoring:    NewMonitoringService(repos.Ticks),
		EventLog:      NewEventLogService(repos.Events),
		Relay:         NewRelayService(relay),
		Authorization: NewAuthService(repos.Operators, opts.SigningKey, opts.TokenTTL),
	}
}
