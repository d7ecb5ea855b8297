package repository

import (
	"context"
	"database/sql"
	"time"

	"coffee_roaster/internal/models"
)

type Operators interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
}

type RoastRepo interface {
	Create(ctx context.Context, r models.Roast) error
	Finish(ctx context.Context, id string, finishedAt time.Time, exportPath string) error
	Get(ctx context.Context, id string) (*models.Roast, error)
	List(ctx context.Context, limit int) ([]models.Roast, error)
}

type TickRepo interface {
	Append(ctx context.Context, t models.Tick) error
	Latest(ctx context.Context) (*models.Tick, error)
	ListByRoast(ctx context.Context, roastID string) ([]models.Tick, error)
}

// EventFilter narrows EventRepo.List; zero fields match everything.
type EventFilter struct {
	From, To time.Time
	Type     string
	RoastID  string
}

type EventRepo interface {
	Append(ctx context.Context, e models.RoastEvent) error
	List(ctx context.Context, f EventFilter) ([]models.RoastEvent, error)
}

type Repository struct {
	Roasts    RoastRepo
	Ticks     TickRepo
	Events    EventRepo
	Operators Operators
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Roasts:    NewRoastSQLite(db),
		Ticks:     NewTickSQLite(db),
		Events:    NewEventSQLite(db),
		Operators: NewOperatorRepository(db),
	}
}
