package service

import (
	"context"
	"time"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/repository"
)

const defaultAmbientTempC = 25

type MonitoringService struct {
	tickRepo repository.TickRepo
}

func NewMonitoringService(tickRepo repository.TickRepo) *MonitoringService {
	return &MonitoringService{tickRepo: tickRepo}
}

// GetState returns the latest recorded tick.
// If nothing was recorded yet, returns an idle baseline reading.
func (s *MonitoringService) GetState(ctx context.Context) (models.Tick, error) {
	t, err := s.tickRepo.Latest(ctx)
	if err != nil {
		return models.Tick{}, err
	}
	if t == nil {
		return s.baselineState(), nil
	}
	t.Timestamp = toUTC(t.Timestamp)
	return *t, nil
}

// baselineState is a cold, idle machine.
func (s *MonitoringService) baselineState() models.Tick {
	return models.Tick{
		Timestamp: time.Now().UTC(),
		Snapshot: models.Snapshot{
			BeanTemp:   defaultAmbientTempC,
			AirTemp:    defaultAmbientTempC,
			FireTemp:   defaultAmbientTempC,
			CoolerTemp: defaultAmbientTempC,
		},
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
