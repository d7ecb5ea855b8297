package roast

// TurningPointDetector latches once the bean temperature starts rising again
// after the charge dip. The latch is one-shot and never resets.
type TurningPointDetector struct {
	// Deadband is the number of roast seconds ignored after the start.
	Deadband int

	passed bool
	temp   int
	last   int
	seen   bool
}

// NewTurningPointDetector returns a detector ignoring the first deadband seconds.
func NewTurningPointDetector(deadband int) *TurningPointDetector {
	return &TurningPointDetector{Deadband: deadband}
}

// Observe feeds one tick and reports whether the latch closed on this call.
func (d *TurningPointDetector) Observe(elapsed, beanTemp int) bool {
	latched := false
	if !d.passed && d.seen && elapsed > d.Deadband && beanTemp > d.last {
		d.passed = true
		d.temp = beanTemp
		latched = true
	}
	d.last = beanTemp
	d.seen = true
	return latched
}

// Passed reports whether the turning point has been seen.
func (d *TurningPointDetector) Passed() bool { return d.passed }

// Temperature is the bean temperature recorded at the turning point, 0 before it.
func (d *TurningPointDetector) Temperature() int { return d.temp }
