// Package control holds the policies that turn "where are we in the roast"
// into setpoint and servo commands.
package control

import (
	"context"
	"errors"
	"fmt"

	"coffee_roaster/internal/clock"
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
	"coffee_roaster/internal/profile"
)

// ErrMissingConfiguration is returned before any hardware write when a
// strategy lacks its control variable, PID reference or profile.
var ErrMissingConfiguration = errors.New("control strategy misconfigured")

// Device is the part of the roaster a strategy drives.
type Device interface {
	ReadSnapshot() (models.Snapshot, error)
	SetServoPosition(p float64) error
	SetSetpoint(t int) error
	SetMode(m device.Mode) error
	SetPIDReference(ref device.PIDReference) error
}

var _ Device = (*device.Roaster)(nil)

// Strategy is one way of reproducing a profile.
type Strategy interface {
	Kind() Kind
	// BeforeStart prepares the machine while it is being pre-conditioned.
	BeforeStart(ctx context.Context) error
	// AfterStart runs right after the beans are admitted.
	AfterStart(ctx context.Context) error
	// Step pushes the next target for the given roast second.
	Step(ctx context.Context, elapsed int, passedTurningPoint bool) error
}

// Kind selects a strategy.
type Kind int

const (
	BeanTemperature Kind = iota + 1
	FireTemperature
	ServoPosition
)

var kindNames = map[Kind]string{
	BeanTemperature: "bean-temperature",
	FireTemperature: "fire-temperature",
	ServoPosition:   "servo-position",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a command-line name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown control type %q (want bean-temperature, fire-temperature or servo-position)", ErrMissingConfiguration, s)
}

// Deps are the collaborators every strategy needs.
type Deps struct {
	Device  Device
	Profile *profile.Profile
	Clock   clock.Clock
	Log     *logger.Logger
}

func (d Deps) validate() error {
	if d.Device == nil {
		return fmt.Errorf("%w: no device", ErrMissingConfiguration)
	}
	if d.Profile == nil {
		return fmt.Errorf("%w: no profile", ErrMissingConfiguration)
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}

// New builds the strategy for kind.
func New(kind Kind, deps Deps) (Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()

	switch kind {
	case BeanTemperature:
		return NewBeanTemperature(deps), nil
	case FireTemperature:
		return NewFireTemperature(deps), nil
	case ServoPosition:
		return NewServoPosition(deps), nil
	}
	return nil, fmt.Errorf("%w: unknown control type %s", ErrMissingConfiguration, kind)
}

// valueAt returns field from the nearest prior row that has it.
func valueAt(p *profile.Profile, key int, field profile.Field) (float64, error) {
	v, ok := p.Lookup(key, field).Value(field)
	if !ok {
		return 0, fmt.Errorf("%w: profile has no %s at or before %ds", ErrMissingConfiguration, field, key)
	}
	return v, nil
}
