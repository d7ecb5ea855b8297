package roast

import (
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/models"
)

// finishDevice is what the sequencer actuates.
type finishDevice interface {
	SetAlarm(t int) error
	SetMixer(on bool) error
	SetCooler(on bool) error
	SetBurner(on bool) error
	OpenGate(g device.Gate) error
	CloseGate(g device.Gate) error
}

// WarnFunc receives recoverable problems the operator has to look at.
type WarnFunc func(msg string, err error)

// AutoFinishSequencer starts the cooling equipment and discharges the beans
// near the end of an automatic roast. Its three checks are independent and
// all evaluated on every Step.
type AutoFinishSequencer struct {
	FinalBeanTemp              int
	StartMixerRemainingDegrees int
	BeanExitCloseAfter         int

	dev  finishDevice
	warn WarnFunc

	coolingStarted bool
	discharged     bool
	exitOpenedAt   int
}

// NewAutoFinishSequencer wires a sequencer to dev. warn may be nil.
func NewAutoFinishSequencer(dev finishDevice, finalBeanTemp, startMixerRemaining, closeAfter int, warn WarnFunc) *AutoFinishSequencer {
	if warn == nil {
		warn = func(string, error) {}
	}
	return &AutoFinishSequencer{
		FinalBeanTemp:              finalBeanTemp,
		StartMixerRemainingDegrees: startMixerRemaining,
		BeanExitCloseAfter:         closeAfter,
		dev:                        dev,
		warn:                       warn,
	}
}

// CoolingStarted reports whether the mixer and cooler were commanded on.
func (s *AutoFinishSequencer) CoolingStarted() bool { return s.coolingStarted }

// ExitOpenedAt returns the roast second the bean exit was last opened at,
// and whether the sequencer opened it at all.
func (s *AutoFinishSequencer) ExitOpenedAt() (int, bool) { return s.exitOpenedAt, s.discharged }

// Step evaluates the end-of-roast rules against one snapshot. Interlock
// violations are reported through warn and retried on the next tick; any
// other error is returned.
func (s *AutoFinishSequencer) Step(snap models.Snapshot) error {
	current := snap.BeanTemp
	elapsed := snap.ElapsedSecs

	if s.FinalBeanTemp-current <= s.StartMixerRemainingDegrees {
		if err := s.startCooling(snap); err != nil {
			return err
		}
	}

	if current >= s.FinalBeanTemp {
		if err := s.discharge(snap); err != nil {
			return err
		}
	}

	if s.discharged && snap.BeanExitOpen && elapsed-s.exitOpenedAt >= s.BeanExitCloseAfter {
		if err := s.dev.CloseGate(device.BeanExit); err != nil {
			if !device.IsInterlock(err) {
				return err
			}
			s.warn("FECHE O TAMBOR!", err)
		}
	}
	return nil
}

func (s *AutoFinishSequencer) startCooling(snap models.Snapshot) error {
	if err := s.setAlarm(snap.BeanTemp); err != nil {
		return err
	}
	if !snap.MixerOn {
		if err := s.dev.SetMixer(true); err != nil {
			return err
		}
	}
	if !snap.CoolerOn {
		if err := s.dev.SetCooler(true); err != nil {
			return err
		}
	}
	s.coolingStarted = true

	if snap.CoolerExitOpen {
		if err := s.dev.CloseGate(device.CoolerExit); err != nil {
			if !device.IsInterlock(err) {
				return err
			}
			s.warn("FECHE A SAÍDA DO MEXEDOR!", err)
		}
	}
	return nil
}

// discharge puts the flame out and opens the bean exit whenever it is found
// closed at or above the final temperature. Every opening restarts the
// auto-close timer.
func (s *AutoFinishSequencer) discharge(snap models.Snapshot) error {
	if err := s.setAlarm(snap.BeanTemp); err != nil {
		return err
	}
	if snap.BeanExitOpen {
		return nil
	}
	if err := s.dev.SetBurner(false); err != nil {
		return err
	}
	if err := s.dev.OpenGate(device.BeanExit); err != nil {
		if !device.IsInterlock(err) {
			return err
		}
		s.warn("ABRA O TAMBOR!", err)
		return nil
	}
	s.discharged = true
	s.exitOpenedAt = snap.ElapsedSecs
	return nil
}

func (s *AutoFinishSequencer) setAlarm(t int) error {
	if t <= 0 {
		return nil
	}
	return s.dev.SetAlarm(t)
}
