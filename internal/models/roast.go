package models

import "time"

// Roast describes one recorded roasting session.
type Roast struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Automatic     bool       `json:"automatic"`
	Strategy      string     `json:"strategy,omitempty"`
	ProfilePath   string     `json:"profile_path,omitempty"`
	FinalBeanTemp int        `json:"final_bean_temp,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	ExportPath    string     `json:"export_path,omitempty"`
}
