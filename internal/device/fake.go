package device

import (
	"errors"
	"sync"
)

// Write is one register write seen by FakeRegisters.
type Write struct {
	Address uint16
	Value   uint16
	Coil    bool
}

// FakeRegisters is an in-memory register bank behaving like the roaster
// controller closely enough for tests and --fake runs: gate commands are
// mirrored to their state coils, the servo write shows up in telemetry and
// a rising edge on the start input toggles the roasting flag.
type FakeRegisters struct {
	mu     sync.Mutex
	coils  map[uint16]bool
	words  map[uint16]uint16
	writes []Write

	// Err, when set, is returned by every operation.
	Err error
	// FailWrites makes writes to the listed addresses fail.
	FailWrites map[uint16]error
	// Closed reports whether Close was called.
	Closed bool
}

var _ Registers = (*FakeRegisters)(nil)

var errFakeClosed = errors.New("fake registers closed")

// NewFakeRegisters returns an empty bank: all gates closed, everything off.
func NewFakeRegisters() *FakeRegisters {
	return &FakeRegisters{
		coils:      make(map[uint16]bool),
		words:      make(map[uint16]uint16),
		FailWrites: make(map[uint16]error),
	}
}

// readback maps a write-only command address to the address it shows up at.
var readback = map[uint16]uint16{
	Addr(SigBeanEntranceCmd): Addr(SigBeanEntranceState),
	Addr(SigBeanExitCmd):     Addr(SigBeanExitState),
	Addr(SigCoolerExitCmd):   Addr(SigCoolerExitState),
	Addr(SigServoPosition):   Addr(SigTelemetryBlock) + telServoRaw,
}

func (f *FakeRegisters) ReadCoils(address, quantity uint16) ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]bool, quantity)
	for i := range out {
		out[i] = f.coils[address+uint16(i)]
	}
	return out, nil
}

func (f *FakeRegisters) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]uint16, quantity)
	for i := range out {
		out[i] = f.words[address+uint16(i)]
	}
	return out, nil
}

func (f *FakeRegisters) WriteCoil(address uint16, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(address); err != nil {
		return err
	}
	var v uint16
	if value {
		v = 1
	}
	f.writes = append(f.writes, Write{Address: address, Value: v, Coil: true})

	if address == Addr(SigStartRoast) && value && !f.coils[address] {
		f.toggleRoasting()
	}
	f.coils[address] = value
	if to, ok := readback[address]; ok {
		f.coils[to] = value
	}
	return nil
}

func (f *FakeRegisters) WriteRegister(address, value uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(address); err != nil {
		return err
	}
	f.writes = append(f.writes, Write{Address: address, Value: value})
	f.words[address] = value
	if to, ok := readback[address]; ok {
		f.words[to] = value
	}
	return nil
}

func (f *FakeRegisters) WriteRegisters(address uint16, values []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(address); err != nil {
		return err
	}
	for i, v := range values {
		a := address + uint16(i)
		f.writes = append(f.writes, Write{Address: a, Value: v})
		f.words[a] = v
	}
	return nil
}

func (f *FakeRegisters) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakeRegisters) check() error {
	if f.Err != nil {
		return f.Err
	}
	if f.Closed {
		return errFakeClosed
	}
	return nil
}

func (f *FakeRegisters) checkWrite(address uint16) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.FailWrites[address]
}

// toggleRoasting flips the roasting flag; starting resets the roast clock.
func (f *FakeRegisters) toggleRoasting() {
	roasting := Addr(SigStatusBlock) + stRoasting
	f.coils[roasting] = !f.coils[roasting]
	if f.coils[roasting] {
		f.words[Addr(SigTelemetryBlock)+telRoastTime] = 0
	}
}

// SetCoil forces a coil without recording a write. Tests use it to stage
// machine state, e.g. an operator opening a gate on the touch screen.
func (f *FakeRegisters) SetCoil(address uint16, value bool) {
	f.mu.Lock()
	f.coils[address] = value
	f.mu.Unlock()
}

// SetWord forces a holding register without recording a write.
func (f *FakeRegisters) SetWord(address, value uint16) {
	f.mu.Lock()
	f.words[address] = value
	f.mu.Unlock()
}

// Coil returns the current value of a coil.
func (f *FakeRegisters) Coil(address uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coils[address]
}

// Word returns the current value of a holding register.
func (f *FakeRegisters) Word(address uint16) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.words[address]
}

// SetGate stages a gate state directly.
func (f *FakeRegisters) SetGate(g Gate, open bool) { f.SetCoil(Addr(g.state()), open) }

// The telemetry setters below stage single values inside the telemetry block.
func (f *FakeRegisters) SetBeanTemp(t int)    { f.SetWord(Addr(SigTelemetryBlock)+telBeanTemp, uint16(t)) }
func (f *FakeRegisters) SetFireTemp(t int)    { f.SetWord(Addr(SigTelemetryBlock)+telFireTemp, uint16(t)) }
func (f *FakeRegisters) SetElapsed(secs int)  { f.SetWord(Addr(SigTelemetryBlock)+telRoastTime, uint16(secs)) }
func (f *FakeRegisters) SetRoasting(on bool)  { f.SetCoil(Addr(SigStatusBlock)+stRoasting, on) }
func (f *FakeRegisters) SetServoRaw(v uint16) { f.SetWord(Addr(SigTelemetryBlock)+telServoRaw, v) }

// Writes returns a copy of every write recorded so far.
func (f *FakeRegisters) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// WritesTo returns the values written to address, in order.
func (f *FakeRegisters) WritesTo(address uint16) []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint16
	for _, w := range f.writes {
		if w.Address == address {
			out = append(out, w.Value)
		}
	}
	return out
}

// ResetWrites clears the write log.
func (f *FakeRegisters) ResetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}
