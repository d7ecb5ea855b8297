package control

import (
	"context"
	"fmt"
	"math"
	"time"

	"coffee_roaster/internal/device"
	"coffee_roaster/internal/profile"
)

// Temperature follows a recorded temperature through the controller's
// onboard PID in recipe mode.
type Temperature struct {
	deps Deps

	// Field is the profile column pushed as setpoint.
	Field profile.Field
	// Reference is the sensor the onboard PID compares against.
	Reference device.PIDReference
	// Lookahead is how many seconds ahead of the roast clock the target is taken.
	Lookahead int
	// AfterTurningPoint holds setpoint changes until the turning point.
	AfterTurningPoint bool

	kind Kind
}

// NewBeanTemperature follows bean temperature one second ahead, but only
// after the turning point: before it the bean sensor reads the charge dip.
func NewBeanTemperature(deps Deps) *Temperature {
	return &Temperature{
		deps:              deps.withDefaults(),
		Field:             profile.FieldBeanTemp,
		Reference:         device.PIDBean,
		Lookahead:         1,
		AfterTurningPoint: true,
		kind:              BeanTemperature,
	}
}

// NewFireTemperature follows fire temperature thirty seconds ahead to
// cover the heater's slow response.
func NewFireTemperature(deps Deps) *Temperature {
	return &Temperature{
		deps:      deps.withDefaults(),
		Field:     profile.FieldFireTemp,
		Reference: device.PIDFire,
		Lookahead: 30,
		kind:      FireTemperature,
	}
}

var _ Strategy = (*Temperature)(nil)

func (t *Temperature) Kind() Kind { return t.kind }

func (t *Temperature) validate() error {
	if err := t.deps.validate(); err != nil {
		return err
	}
	want := map[device.PIDReference]profile.Field{
		device.PIDBean: profile.FieldBeanTemp,
		device.PIDFire: profile.FieldFireTemp,
	}
	field, ok := want[t.Reference]
	if !ok {
		return fmt.Errorf("%w: invalid pid reference %d", ErrMissingConfiguration, int(t.Reference))
	}
	if t.Field != field {
		return fmt.Errorf("%w: pid reference %s cannot follow %s", ErrMissingConfiguration, t.Reference, t.Field)
	}
	if t.Lookahead < 0 {
		return fmt.Errorf("%w: negative lookahead", ErrMissingConfiguration)
	}
	return nil
}

// BeforeStart selects the PID reference, pushes the initial setpoint and
// moves the servo to its initial position, waiting one second per percent
// of travel.
func (t *Temperature) BeforeStart(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	dev, log := t.deps.Device, t.deps.Log
	p := t.deps.Profile

	setpoint, err := valueAt(p, 0, t.Field)
	if err != nil {
		return err
	}
	servo, err := valueAt(p, 0, profile.FieldServoPosition)
	if err != nil {
		return err
	}

	if err := dev.SetPIDReference(t.Reference); err != nil {
		return err
	}
	log.Infow("Alterando PID para seguir: "+t.Field.String()+"... feito!", "reference", t.Reference.String())

	snap, err := dev.ReadSnapshot()
	if err != nil {
		return err
	}
	if err := dev.SetSetpoint(int(setpoint)); err != nil {
		return err
	}
	if err := dev.SetServoPosition(servo); err != nil {
		return err
	}
	wait := time.Duration(math.Abs(servo-float64(snap.ServoPosition)) * float64(time.Second))
	log.Infow("Alterando posição inicial do servo", "from", snap.ServoPosition, "to", servo, "wait", wait.String())
	if err := t.deps.Clock.Sleep(ctx, wait); err != nil {
		return err
	}
	log.Infow("Servo posicionado (espero)!")
	return nil
}

// AfterStart hands control to the onboard PID.
func (t *Temperature) AfterStart(ctx context.Context) error {
	if err := t.deps.Device.SetMode(device.ModeRecipe); err != nil {
		return err
	}
	t.deps.Log.Infow("Alterando modo de torra para receita... feito!")
	return nil
}

// Step re-asserts recipe mode and the PID reference, then pushes the
// profile value due Lookahead seconds from now.
func (t *Temperature) Step(ctx context.Context, elapsed int, passedTurningPoint bool) error {
	target, err := valueAt(t.deps.Profile, elapsed+t.Lookahead, t.Field)
	if err != nil {
		return err
	}
	dev := t.deps.Device
	if err := dev.SetMode(device.ModeRecipe); err != nil {
		return err
	}
	if err := dev.SetPIDReference(t.Reference); err != nil {
		return err
	}
	if t.AfterTurningPoint && !passedTurningPoint {
		return nil
	}
	t.deps.Log.Debugw("setpoint", "elapsed", elapsed, "field", t.Field.String(), "target", int(target))
	return dev.SetSetpoint(int(target))
}
