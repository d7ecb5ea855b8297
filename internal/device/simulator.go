package device

import (
	"context"
	"time"
)

// ----------- Simulation constants -----------
const (
	AmbientC          = 25.0  // ambient temperature °C
	MaxFireC          = 450.0 // burner ceiling °C
	BurnerHeatCPerSec = 4.0   // °C per second fire rise with burner lit
	FireCoolCPerSec   = 1.5   // °C per second fire drop with burner out
	BeanLagPerSec     = 0.03  // fraction of the fire/bean gap closed per second
	ChargeKeep        = 0.35  // share of bean heat above ambient kept when beans are charged
	CoolerCPerSec     = 2.0   // °C per second cooler drift toward ambient
	EmptyDrumCPerSec  = 6.0   // °C per second bean reading drop once the drum is emptied
	PIDBeanOffsetC    = 60.0  // fire lead over the bean setpoint when the PID follows bean
	SoakToleranceC    = 1.0   // °C band for "at target"
)

// Simulator is a FakeRegisters bank with a first-order thermal model on top.
// It lets the whole control stack run without a machine.
type Simulator struct {
	*FakeRegisters

	fire, bean, cooler float64
	elapsed            time.Duration
	lastEntrance       bool
	empty              bool
	last               time.Time
}

// NewSimulator returns a powered-down machine at the given temperatures.
func NewSimulator(bean, fire float64) *Simulator {
	s := &Simulator{
		FakeRegisters: NewFakeRegisters(),
		bean:          bean,
		fire:          fire,
		cooler:        AmbientC,
	}
	s.publish()
	return s
}

// Run advances the model every tick until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.AdvanceTo(now)
		}
	}
}

// AdvanceTo steps the model by the time since the previous call. The first
// call only records the reference time. It fits clock.Manual's OnSleep hook.
func (s *Simulator) AdvanceTo(now time.Time) {
	if s.last.IsZero() {
		s.last = now
		return
	}
	dt := now.Sub(s.last)
	s.last = now
	s.Step(dt)
}

// Step advances the model by dt.
func (s *Simulator) Step(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}

	f := s.FakeRegisters
	f.mu.Lock()
	defer f.mu.Unlock()

	burner := f.coils[Addr(SigBurner)]
	cylinder := f.coils[Addr(SigCylinder)]
	manual := f.coils[Addr(SigMode)]
	fireRef := f.coils[Addr(SigPIDReference)]
	entrance := f.coils[Addr(SigBeanEntranceState)]
	exit := f.coils[Addr(SigBeanExitState)]
	coolerOn := f.coils[Addr(SigCooler)]
	roasting := f.coils[Addr(SigStatusBlock)+stRoasting]
	setpoint := float64(f.words[Addr(SigSetpoint)])
	servo := float64(f.words[Addr(SigTelemetryBlock)+telServoRaw]) / servoScale

	// a flame over a stationary drum is never simulated
	if !cylinder {
		burner = false
	}

	switch {
	case !burner:
		s.fire = s.moveToward(s.fire, AmbientC, FireCoolCPerSec*sec)
	case !manual && setpoint > 0:
		target := setpoint
		if !fireRef {
			target = setpoint + PIDBeanOffsetC
		}
		rate := FireCoolCPerSec
		if s.fire < target {
			rate = BurnerHeatCPerSec
		}
		s.fire = s.moveToward(s.fire, target, rate*sec)
	default:
		// more air carries more heat into the drum
		gain := 0.5 + servo/100
		s.fire = s.moveToward(s.fire, MaxFireC, BurnerHeatCPerSec*gain*sec)
	}

	if entrance && !s.lastEntrance {
		s.bean = AmbientC + (s.bean-AmbientC)*ChargeKeep
	}
	s.lastEntrance = entrance

	// the bean thermocouple sits in the bean mass and reads cold in an empty drum
	switch {
	case entrance:
		s.empty = false
	case exit:
		s.empty = true
	}
	if s.empty {
		s.bean = s.moveToward(s.bean, AmbientC, EmptyDrumCPerSec*sec)
	} else {
		s.bean += (s.fire - s.bean) * minFloat(BeanLagPerSec*sec, 1)
	}

	if coolerOn {
		s.cooler = s.moveToward(s.cooler, AmbientC, CoolerCPerSec*sec)
	}

	if roasting {
		// a start pulse resets the register behind our back
		if reg := time.Duration(f.words[Addr(SigTelemetryBlock)+telRoastTime]) * time.Second; reg < s.elapsed-time.Second {
			s.elapsed = reg
		}
		s.elapsed += dt
	}
	s.publishLocked(roasting)
}

// Temperatures returns the model's bean and fire temperatures.
func (s *Simulator) Temperatures() (bean, fire float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bean, s.fire
}

func (s *Simulator) publish() {
	s.mu.Lock()
	s.publishLocked(false)
	s.mu.Unlock()
}

func (s *Simulator) publishLocked(roasting bool) {
	base := Addr(SigTelemetryBlock)
	w := s.words
	w[base+telBeanTemp] = clampWord(s.bean)
	w[base+telFireTemp] = clampWord(s.fire)
	w[base+telAirTemp] = clampWord((s.bean + s.fire) / 2)
	w[base+telCoolerTemp] = clampWord(s.cooler)
	if roasting {
		w[base+telRoastTime] = uint16(s.elapsed / time.Second)
	}
}

// moveToward moves v toward target by at most step and stops inside the
// soak band.
func (s *Simulator) moveToward(v, target, step float64) float64 {
	switch {
	case v < target-SoakToleranceC:
		return minFloat(v+step, target)
	case v > target+SoakToleranceC:
		return maxFloat(v-step, target)
	default:
		return v
	}
}

func clampWord(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// helpers
func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
