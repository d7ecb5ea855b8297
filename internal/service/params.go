package service

import "time"

// LogFilter supports history filtering by time range, type and roast.
type LogFilter struct {
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Type    string    // "", "START", "STOP", "PHASE", "STATUS", "WARNING", "ERROR"
	RoastID string
}
