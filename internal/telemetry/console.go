package telemetry

import (
	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
)

// ConsoleSink prints operator messages through the application logger.
// Ticks are only visible at debug level.
type ConsoleSink struct {
	log *logger.Logger
}

// NewConsoleSink returns a sink writing to log.
func NewConsoleSink(log *logger.Logger) *ConsoleSink {
	if log == nil {
		log = logger.Nop()
	}
	return &ConsoleSink{log: log}
}

func (c *ConsoleSink) Record(tick models.Tick) {
	s := tick.Snapshot
	c.log.Debugw("tick",
		"roast_time", s.ElapsedSecs,
		"temp_bean", s.BeanTemp,
		"temp_air", s.AirTemp,
		"temp_fire", s.FireTemp,
		"temp_goal", s.SetpointTemp,
		"servo_position", s.ServoPosition,
	)
}

func (c *ConsoleSink) Event(ev models.RoastEvent) {
	kv := []any{"type", ev.Type}
	if ev.Metadata != nil {
		kv = append(kv, "meta", ev.Metadata)
	}
	switch ev.Type {
	case models.EventError:
		c.log.Errorw(ev.Description, kv...)
	case models.EventWarning:
		c.log.Warnw(ev.Description, kv...)
	default:
		c.log.Infow(ev.Description, kv...)
	}
}
