package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/repository"
)

type RecordingService struct {
	roastRepo repository.RoastRepo
	tickRepo  repository.TickRepo
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewRecordingService(roasts repository.RoastRepo, ticks repository.TickRepo, events repository.EventRepo) *RecordingService {
	return &RecordingService{roastRepo: roasts, tickRepo: ticks, eventRepo: events, now: time.Now}
}

var errMissingRoastName = errors.New("roast name is required")

// Begin stores a new roast and logs START. Missing id and start time are filled in.
func (s *RecordingService) Begin(ctx context.Context, r models.Roast) (models.Roast, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return models.Roast{}, errMissingRoastName
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = s.now()
	}
	r.StartedAt = r.StartedAt.UTC()

	if err := s.roastRepo.Create(ctx, r); err != nil {
		return models.Roast{}, err
	}

	mode := "manual"
	if r.Automatic {
		mode = "automatic"
	}
	meta := map[string]any{"name": r.Name, "mode": mode}
	if r.Strategy != "" {
		meta["strategy"] = r.Strategy
	}
	err := s.eventRepo.Append(ctx, models.RoastEvent{
		EventID:     uuid.NewString(),
		RoastID:     r.ID,
		OccurredAt:  r.StartedAt,
		Type:        models.EventStart,
		Description: "Torra " + r.Name + " iniciada",
		Metadata:    meta,
	})
	if err != nil {
		return models.Roast{}, err
	}
	return r, nil
}

// Finish stamps the roast as finished and logs STOP.
func (s *RecordingService) Finish(ctx context.Context, id, exportPath string) error {
	now := s.now().UTC()
	if err := s.roastRepo.Finish(ctx, id, now, exportPath); err != nil {
		return err
	}
	var meta map[string]any
	if exportPath != "" {
		meta = map[string]any{"export_path": exportPath}
	}
	ev := models.RoastEvent{
		EventID:     uuid.NewString(),
		RoastID:     id,
		OccurredAt:  now,
		Type:        models.EventStop,
		Description: "Torra finalizada",
	}
	if meta != nil {
		ev.Metadata = meta
	}
	return s.eventRepo.Append(ctx, ev)
}

func (s *RecordingService) Get(ctx context.Context, id string) (*models.Roast, error) {
	return s.roastRepo.Get(ctx, id)
}

func (s *RecordingService) List(ctx context.Context, limit int) ([]models.Roast, error) {
	return s.roastRepo.List(ctx, limit)
}

// Ticks returns the recorded ticks of a roast, oldest first.
func (s *RecordingService) Ticks(ctx context.Context, id string) ([]models.Tick, error) {
	return s.tickRepo.ListByRoast(ctx, id)
}
