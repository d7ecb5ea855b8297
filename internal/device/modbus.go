package device

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Registers is the register-level transport the Roaster talks through.
type Registers interface {
	ReadCoils(address, quantity uint16) ([]bool, error)
	ReadHoldingRegisters(address, quantity uint16) ([]uint16, error)
	WriteCoil(address uint16, value bool) error
	WriteRegister(address, value uint16) error
	WriteRegisters(address uint16, values []uint16) error
	Close() error
}

const (
	unitID     = 1
	coilOn     = 0xFF00
	coilOff    = 0x0000
	maxRegRead = 125
)

// TCPRegisters speaks Modbus/TCP to the roaster controller.
type TCPRegisters struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client

	closeOnce sync.Once
}

var _ Registers = (*TCPRegisters)(nil)

// Dial opens a persistent Modbus/TCP connection to addr ("host:port").
func Dial(addr string, timeout time.Duration) (*TCPRegisters, error) {
	h := modbus.NewTCPClientHandler(addr)
	h.Timeout = timeout
	h.IdleTimeout = 0
	h.SlaveId = unitID
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w: %w", addr, ErrCommunication, err)
	}
	return &TCPRegisters{handler: h, client: modbus.NewClient(h)}, nil
}

func (t *TCPRegisters) ReadCoils(address, quantity uint16) ([]bool, error) {
	raw, err := t.client.ReadCoils(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackBits(raw, int(quantity)), nil
}

// ReadHoldingRegisters splits reads longer than one Modbus frame allows
// into consecutive requests.
func (t *TCPRegisters) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	out := make([]uint16, 0, quantity)
	for done := uint16(0); done < quantity; {
		n := min(quantity-done, maxRegRead)
		raw, err := t.client.ReadHoldingRegisters(address+done, n)
		if err != nil {
			return nil, fmt.Errorf("read %d registers at %d: %w", n, address+done, err)
		}
		words, err := unpackWords(raw, int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
		done += n
	}
	return out, nil
}

func (t *TCPRegisters) WriteCoil(address uint16, value bool) error {
	v := uint16(coilOff)
	if value {
		v = coilOn
	}
	_, err := t.client.WriteSingleCoil(address, v)
	return err
}

func (t *TCPRegisters) WriteRegister(address, value uint16) error {
	_, err := t.client.WriteSingleRegister(address, value)
	return err
}

func (t *TCPRegisters) WriteRegisters(address uint16, values []uint16) error {
	_, err := t.client.WriteMultipleRegisters(address, uint16(len(values)), packWords(values))
	return err
}

// Close releases the TCP connection. Safe to call more than once.
func (t *TCPRegisters) Close() error {
	var err error
	t.closeOnce.Do(func() { err = t.handler.Close() })
	return err
}

// unpackBits decodes LSB-first packed coil states.
func unpackBits(raw []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n && i/8 < len(raw); i++ {
		out[i] = raw[i/8]&(1<<(uint(i)%8)) != 0
	}
	return out
}

func unpackWords(raw []byte, n int) ([]uint16, error) {
	if len(raw) < 2*n {
		return nil, fmt.Errorf("short register response: %d bytes for %d registers", len(raw), n)
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return out, nil
}

func packWords(values []uint16) []byte {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(raw[2*i:], v)
	}
	return raw
}
