package control

import (
	"context"

	"coffee_roaster/internal/device"
	"coffee_roaster/internal/profile"
)

// Servo reproduces the recorded airflow servo position in manual mode.
type Servo struct {
	deps      Deps
	Lookahead int
}

// NewServoPosition follows the servo column one second ahead.
func NewServoPosition(deps Deps) *Servo {
	return &Servo{deps: deps.withDefaults(), Lookahead: 1}
}

var _ Strategy = (*Servo)(nil)

func (s *Servo) Kind() Kind { return ServoPosition }

func (s *Servo) BeforeStart(ctx context.Context) error {
	if err := s.deps.validate(); err != nil {
		return err
	}
	initial, err := valueAt(s.deps.Profile, 0, profile.FieldServoPosition)
	if err != nil {
		return err
	}
	s.deps.Log.Infow("Reprodução será através do servo motor.", "initial", initial)
	return s.deps.Device.SetServoPosition(initial)
}

// AfterStart forces manual mode; the onboard recipe PID would fight the servo.
func (s *Servo) AfterStart(ctx context.Context) error {
	if err := s.deps.Device.SetMode(device.ModeManual); err != nil {
		return err
	}
	s.deps.Log.Infow("Alterando modo de torra para manual (não receita)... feito!")
	return nil
}

func (s *Servo) Step(ctx context.Context, elapsed int, passedTurningPoint bool) error {
	pos, err := valueAt(s.deps.Profile, elapsed+s.Lookahead, profile.FieldServoPosition)
	if err != nil {
		return err
	}
	if err := s.deps.Device.SetMode(device.ModeManual); err != nil {
		return err
	}
	return s.deps.Device.SetServoPosition(pos)
}
