// Package device drives the roaster controller through its Modbus register map
// and enforces the machine's physical interlocks.
package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
)

// Mode is the controller's operating mode.
type Mode int

const (
	ModeManual Mode = iota
	ModeRecipe
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeRecipe:
		return "recipe"
	default:
		return "invalid"
	}
}

// ParseMode accepts "manual" or "recipe".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "manual":
		return ModeManual, nil
	case "recipe":
		return ModeRecipe, nil
	}
	return 0, invalidParam("mode must be 'manual' or 'recipe', got %q", s)
}

// PIDReference selects the sensor the onboard PID follows in recipe mode.
type PIDReference int

const (
	PIDBean PIDReference = iota
	PIDFire
)

func (r PIDReference) String() string {
	switch r {
	case PIDBean:
		return "bean"
	case PIDFire:
		return "fire"
	default:
		return "invalid"
	}
}

// ParsePIDReference accepts "bean" or "fire".
func ParsePIDReference(s string) (PIDReference, error) {
	switch s {
	case "bean":
		return PIDBean, nil
	case "fire":
		return PIDFire, nil
	}
	return 0, invalidParam("pid reference must be 'bean' or 'fire', got %q", s)
}

// Roaster is the hardware-facing abstraction of one roasting machine.
// It is not safe for concurrent use; a single control loop owns it.
type Roaster struct {
	regs Registers
	log  *logger.Logger

	closeOnce sync.Once
	closed    bool
}

// New wraps an already connected register transport.
func New(regs Registers, log *logger.Logger) *Roaster {
	if log == nil {
		log = logger.Nop()
	}
	return &Roaster{regs: regs, log: log}
}

// Connect dials the controller at addr and returns a ready Roaster.
func Connect(addr string, timeout time.Duration, log *logger.Logger) (*Roaster, error) {
	regs, err := Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	return New(regs, log), nil
}

// Close releases the link. Safe to call multiple times.
func (r *Roaster) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed = true
		err = r.regs.Close()
	})
	return err
}

// ---- register helpers ----

func (r *Roaster) readCoils(s Signal) ([]bool, error) {
	if r.closed {
		return nil, ErrNotConnected
	}
	reg := registerTable[s]
	v, err := r.regs.ReadCoils(reg.Address, reg.Count)
	if err != nil {
		return nil, commError("read "+reg.Name, reg.Address, err)
	}
	if len(v) < int(reg.Count) {
		return nil, commError("read "+reg.Name, reg.Address, fmt.Errorf("short response: %d coils", len(v)))
	}
	return v, nil
}

func (r *Roaster) readWords(s Signal) ([]uint16, error) {
	if r.closed {
		return nil, ErrNotConnected
	}
	reg := registerTable[s]
	v, err := r.regs.ReadHoldingRegisters(reg.Address, reg.Count)
	if err != nil {
		return nil, commError("read "+reg.Name, reg.Address, err)
	}
	if len(v) < int(reg.Count) {
		return nil, commError("read "+reg.Name, reg.Address, fmt.Errorf("short response: %d registers", len(v)))
	}
	return v, nil
}

func (r *Roaster) readBool(s Signal) (bool, error) {
	v, err := r.readCoils(s)
	if err != nil {
		return false, err
	}
	return v[0], nil
}

func (r *Roaster) writeBool(s Signal, value bool) error {
	if r.closed {
		return ErrNotConnected
	}
	reg := registerTable[s]
	if err := r.regs.WriteCoil(reg.Address, value); err != nil {
		return commError("write "+reg.Name, reg.Address, err)
	}
	r.log.Debugw("coil_written", "signal", reg.Name, "address", reg.Address, "value", value)
	return nil
}

func (r *Roaster) writeWord(s Signal, value uint16) error {
	if r.closed {
		return ErrNotConnected
	}
	reg := registerTable[s]
	if err := r.regs.WriteRegister(reg.Address, value); err != nil {
		return commError("write "+reg.Name, reg.Address, err)
	}
	r.log.Debugw("register_written", "signal", reg.Name, "address", reg.Address, "value", value)
	return nil
}

func (r *Roaster) writeWords(s Signal, values []uint16) error {
	if r.closed {
		return ErrNotConnected
	}
	reg := registerTable[s]
	if err := r.regs.WriteRegisters(reg.Address, values); err != nil {
		return commError("write "+reg.Name, reg.Address, err)
	}
	return nil
}

// ---- telemetry ----

// ReadSnapshot reads the telemetry, status and gate blocks in one pass.
func (r *Roaster) ReadSnapshot() (models.Snapshot, error) {
	tel, err := r.readWords(SigTelemetryBlock)
	if err != nil {
		return models.Snapshot{}, err
	}
	st, err := r.readCoils(SigStatusBlock)
	if err != nil {
		return models.Snapshot{}, err
	}
	gs, err := r.readCoils(SigGateBlock)
	if err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{
		BeanEntranceOpen: gs[gateEntrance],
		BeanExitOpen:     gs[gateExit],
		CoolerExitOpen:   gs[gateCoolerExit],
		MixerOn:          st[stMixer],
		CoolerOn:         st[stCooler],
		BurnerOn:         st[stBurner],
		CylinderOn:       st[stPowered],
		Powered:          st[stPowered],
		Roasting:         st[stRoasting],

		BeanTemp:      int(tel[telBeanTemp]),
		AirTemp:       int(tel[telAirTemp]),
		FireTemp:      int(tel[telFireTemp]),
		SetpointTemp:  int(tel[telSetpoint]),
		CoolerTemp:    int(tel[telCoolerTemp]),
		ServoPosition: int(tel[telServoRaw]) / servoScale,
		ElapsedSecs:   int(tel[telRoastTime]),
	}, nil
}

// ---- gates ----

// GateOpen reads a single gate state.
func (r *Roaster) GateOpen(g Gate) (bool, error) {
	return r.readBool(g.state())
}

func (r *Roaster) gateStates() (map[Gate]bool, error) {
	gs, err := r.readCoils(SigGateBlock)
	if err != nil {
		return nil, err
	}
	return map[Gate]bool{
		BeanEntrance: gs[gateEntrance],
		BeanExit:     gs[gateExit],
		CoolerExit:   gs[gateCoolerExit],
	}, nil
}

// moveGate opens or closes g after checking that the other two gates are
// closed and that g is not already in the requested state.
func (r *Roaster) moveGate(g Gate, open bool) error {
	action := "close"
	if open {
		action = "open"
	}

	states, err := r.gateStates()
	if err != nil {
		return err
	}
	var blocked []Gate
	for _, other := range gates {
		if other != g && states[other] {
			blocked = append(blocked, other)
		}
	}
	if len(blocked) > 0 {
		return &InterlockError{Gate: g, Action: action, Blocked: blocked}
	}
	if states[g] == open {
		return &InterlockError{Gate: g, Action: action, Already: true}
	}
	if err := r.writeBool(g.command(), open); err != nil {
		return err
	}
	r.log.Infow("gate_moved", "gate", g.String(), "action", action)
	return nil
}

func (r *Roaster) OpenBeanEntrance() error  { return r.moveGate(BeanEntrance, true) }
func (r *Roaster) CloseBeanEntrance() error { return r.moveGate(BeanEntrance, false) }
func (r *Roaster) OpenBeanExit() error      { return r.moveGate(BeanExit, true) }
func (r *Roaster) CloseBeanExit() error     { return r.moveGate(BeanExit, false) }
func (r *Roaster) OpenCoolerExit() error    { return r.moveGate(CoolerExit, true) }
func (r *Roaster) CloseCoolerExit() error   { return r.moveGate(CoolerExit, false) }

// OpenGate and CloseGate dispatch on g.
func (r *Roaster) OpenGate(g Gate) error  { return r.moveGate(g, true) }
func (r *Roaster) CloseGate(g Gate) error { return r.moveGate(g, false) }

// ---- numeric setters ----

// SetServoPosition writes the airflow servo position in percent (0..100).
// The controller stores ten times the truncated percentage.
func (r *Roaster) SetServoPosition(p float64) error {
	if math.IsNaN(p) || p < 0 || p > maxServoPercent {
		return invalidParam("servo position must be in [0,100], got %v", p)
	}
	return r.writeWord(SigServoPosition, uint16(int(p))*servoScale)
}

// SetSetpoint writes the PID setpoint temperature.
func (r *Roaster) SetSetpoint(t int) error {
	if err := checkTemperature("setpoint", t); err != nil {
		return err
	}
	return r.writeWord(SigSetpoint, uint16(t))
}

// SetAlarm writes the machine's own end-of-roast temperature.
func (r *Roaster) SetAlarm(t int) error {
	if err := checkTemperature("alarm", t); err != nil {
		return err
	}
	return r.writeWord(SigAlarm, uint16(t))
}

func checkTemperature(name string, t int) error {
	if t <= 0 || t > 0xFFFF {
		return invalidParam("%s must be a positive integer, got %d", name, t)
	}
	return nil
}

// SetPIDParameters writes the onboard PID terms verbatim.
func (r *Roaster) SetPIDParameters(p, i, d int) error {
	for _, v := range []int{p, i, d} {
		if v < 0 || v > 0xFFFF {
			return invalidParam("pid term out of range: %d", v)
		}
	}
	if err := r.writeWord(SigPIDP, uint16(p)); err != nil {
		return err
	}
	if err := r.writeWord(SigPIDI, uint16(i)); err != nil {
		return err
	}
	return r.writeWord(SigPIDD, uint16(d))
}

// PIDParameters reads the onboard PID terms.
func (r *Roaster) PIDParameters() (p, i, d int, err error) {
	if r.closed {
		return 0, 0, 0, ErrNotConnected
	}
	reg := registerTable[SigPIDP]
	v, err := r.regs.ReadHoldingRegisters(reg.Address, 3)
	if err != nil {
		return 0, 0, 0, commError("read pid terms", reg.Address, err)
	}
	if len(v) < 3 {
		return 0, 0, 0, commError("read pid terms", reg.Address, fmt.Errorf("short response"))
	}
	return int(v[0]), int(v[1]), int(v[2]), nil
}

// ClearRecipe zeroes the controller's onboard recipe tables.
func (r *Roaster) ClearRecipe() error {
	zeros := make([]uint16, recipeSlots)
	for _, s := range []Signal{SigRecipeMinutes, SigRecipeSeconds, SigRecipeTemps} {
		if err := r.writeWords(s, zeros); err != nil {
			return err
		}
	}
	return nil
}

// ---- enum setters ----

// SetMode switches between manual and recipe operation.
func (r *Roaster) SetMode(m Mode) error {
	switch m {
	case ModeRecipe:
		return r.writeBool(SigMode, false)
	case ModeManual:
		return r.writeBool(SigMode, true)
	}
	return invalidParam("unknown mode %d", int(m))
}

// Mode reads the current operating mode.
func (r *Roaster) Mode() (Mode, error) {
	manual, err := r.readBool(SigMode)
	if err != nil {
		return 0, err
	}
	if manual {
		return ModeManual, nil
	}
	return ModeRecipe, nil
}

// SetPIDReference selects which sensor the onboard PID follows.
func (r *Roaster) SetPIDReference(ref PIDReference) error {
	switch ref {
	case PIDBean:
		return r.writeBool(SigPIDReference, false)
	case PIDFire:
		return r.writeBool(SigPIDReference, true)
	}
	return invalidParam("unknown pid reference %d", int(ref))
}

// PIDReference reads the selected PID sensor.
func (r *Roaster) PIDReference() (PIDReference, error) {
	fire, err := r.readBool(SigPIDReference)
	if err != nil {
		return 0, err
	}
	if fire {
		return PIDFire, nil
	}
	return PIDBean, nil
}

// ---- actuators ----

func (r *Roaster) SetMixer(on bool) error  { return r.writeBool(SigMixer, on) }
func (r *Roaster) SetCooler(on bool) error { return r.writeBool(SigCooler, on) }
func (r *Roaster) SetBurner(on bool) error { return r.writeBool(SigBurner, on) }

// SetCylinder powers the drum. Turning it off always puts the burner out
// first so the flame never sits under a stationary drum.
func (r *Roaster) SetCylinder(on bool) error {
	if !on {
		if err := r.SetBurner(false); err != nil {
			return err
		}
	}
	return r.writeBool(SigCylinder, on)
}

func (r *Roaster) Mixer() (bool, error)    { return r.readBool(SigMixer) }
func (r *Roaster) Cooler() (bool, error)   { return r.readBool(SigCooler) }
func (r *Roaster) Burner() (bool, error)   { return r.readBool(SigBurner) }
func (r *Roaster) Cylinder() (bool, error) { return r.readBool(SigCylinder) }

// ---- roast timer ----

func (r *Roaster) roasting() (bool, error) {
	st, err := r.readCoils(SigStatusBlock)
	if err != nil {
		return false, err
	}
	return st[stRoasting], nil
}

// pulseStart toggles the controller's start/stop input.
func (r *Roaster) pulseStart() error {
	if err := r.writeBool(SigStartRoast, false); err != nil {
		return err
	}
	return r.writeBool(SigStartRoast, true)
}

// StartRoast starts the roast timer unless it is already running.
func (r *Roaster) StartRoast() error {
	on, err := r.roasting()
	if err != nil || on {
		return err
	}
	return r.pulseStart()
}

// StopRoast stops the roast timer unless it is already stopped.
func (r *Roaster) StopRoast() error {
	on, err := r.roasting()
	if err != nil || !on {
		return err
	}
	return r.pulseStart()
}

// RestartRoast stops a running roast timer and starts it again from zero.
func (r *Roaster) RestartRoast() error {
	if err := r.StopRoast(); err != nil {
		return err
	}
	return r.StartRoast()
}
