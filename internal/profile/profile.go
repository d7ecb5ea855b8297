// Package profile holds the recorded roast curve ("setup") that automatic
// roasts reproduce.
package profile

import (
	"errors"
	"fmt"
)

// Field selects one measured column of a Row.
type Field int

const (
	FieldBeanTemp Field = iota
	FieldFireTemp
	FieldAirTemp
	FieldServoPosition
)

func (f Field) String() string {
	switch f {
	case FieldBeanTemp:
		return "temp_bean"
	case FieldFireTemp:
		return "temp_fire"
	case FieldAirTemp:
		return "temp_air"
	case FieldServoPosition:
		return "servo_position"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Valid reports whether f names a known column.
func (f Field) Valid() bool {
	return f >= FieldBeanTemp && f <= FieldServoPosition
}

// Row is one line of the recorded profile. Missing cells are nil.
type Row struct {
	Elapsed       int
	BeanTemp      *float64
	FireTemp      *float64
	AirTemp       *float64
	ServoPosition *float64
}

// Value returns the requested field and whether it is present.
func (r Row) Value(f Field) (float64, bool) {
	var p *float64
	switch f {
	case FieldBeanTemp:
		p = r.BeanTemp
	case FieldFireTemp:
		p = r.FireTemp
	case FieldAirTemp:
		p = r.AirTemp
	case FieldServoPosition:
		p = r.ServoPosition
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// blank reports whether no measured field is present.
func (r Row) blank() bool {
	return r.BeanTemp == nil && r.FireTemp == nil && r.AirTemp == nil && r.ServoPosition == nil
}

var (
	ErrNoInitialRow = errors.New("profile has no row for elapsed time 0")
	ErrUnordered    = errors.New("profile elapsed times must be strictly increasing")
	ErrInterval     = errors.New("profile interval must be positive")
)

// Profile is an immutable, time-indexed roast curve.
type Profile struct {
	interval int
	rows     map[int]Row
	keys     []int
}

// New builds a Profile from rows in file order.
//
// Blank rows and everything before the first elapsed == 0 row are dropped;
// only rows on a multiple of interval are kept.
func New(rows []Row, interval int) (*Profile, error) {
	if interval <= 0 {
		return nil, ErrInterval
	}

	p := &Profile{interval: interval, rows: make(map[int]Row)}
	started := false
	for _, r := range rows {
		if r.blank() {
			continue
		}
		if r.Elapsed == 0 {
			started = true
		}
		if !started || r.Elapsed%interval != 0 {
			continue
		}
		if n := len(p.keys); n > 0 && r.Elapsed <= p.keys[n-1] {
			return nil, fmt.Errorf("%w: %d after %d", ErrUnordered, r.Elapsed, p.keys[n-1])
		}
		p.rows[r.Elapsed] = r
		p.keys = append(p.keys, r.Elapsed)
	}
	if !started {
		return nil, ErrNoInitialRow
	}
	return p, nil
}

// Interval is the sampling interval in seconds.
func (p *Profile) Interval() int { return p.interval }

// Len is the number of kept rows.
func (p *Profile) Len() int { return len(p.keys) }

// Initial is the t=0 row.
func (p *Profile) Initial() Row { return p.rows[0] }

// Duration is the elapsed time of the last row, in seconds.
func (p *Profile) Duration() int { return p.keys[len(p.keys)-1] }

// At returns the row recorded exactly at elapsed.
func (p *Profile) At(elapsed int) (Row, bool) {
	r, ok := p.rows[elapsed]
	return r, ok
}

// Near returns the row at elapsed, or the one a second before or after it.
func (p *Profile) Near(elapsed int) (Row, bool) {
	for _, k := range []int{elapsed, elapsed - 1, elapsed + 1} {
		if r, ok := p.rows[k]; ok {
			return r, true
		}
	}
	return Row{}, false
}

// Lookup returns the nearest row at or before key whose field is present.
//
// The key is clamped to [0, Duration()] and scanned down one second at a time.
// When no row down to 0 carries the field, the initial row is returned.
func (p *Profile) Lookup(key int, field Field) Row {
	if key > p.Duration() {
		key = p.Duration()
	}
	for k := key; k >= 0; k-- {
		r, ok := p.rows[k]
		if !ok {
			continue
		}
		if _, ok := r.Value(field); ok {
			return r
		}
	}
	return p.Initial()
}

// Rows returns the kept rows in elapsed order.
func (p *Profile) Rows() []Row {
	out := make([]Row, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, p.rows[k])
	}
	return out
}

// dischargeAfter excludes the charge dip at the start of the recording.
const dischargeAfter = 30

// FinalBeanTemp is the bean temperature at which the recorded roast was
// discharged: the peak bean temperature after the first 30 seconds.
// It falls back to the last known bean temperature.
func (p *Profile) FinalBeanTemp() int {
	peak, found := 0.0, false
	for _, k := range p.keys {
		if k <= dischargeAfter {
			continue
		}
		if v, ok := p.rows[k].Value(FieldBeanTemp); ok && (!found || v > peak) {
			peak, found = v, true
		}
	}
	if found {
		return int(peak)
	}
	v, _ := p.Lookup(p.Duration(), FieldBeanTemp).Value(FieldBeanTemp)
	return int(v)
}

// Keys returns the elapsed times of the kept rows, ascending.
func (p *Profile) Keys() []int {
	return append([]int(nil), p.keys...)
}
