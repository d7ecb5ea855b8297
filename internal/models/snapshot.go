package models

import "time"

// Snapshot is a single point-in-time read of the roaster registers.
type Snapshot struct {
	BeanEntranceOpen bool `json:"bean_entrance_open"`
	BeanExitOpen     bool `json:"bean_exit_open"`
	CoolerExitOpen   bool `json:"cooler_exit_open"`
	MixerOn          bool `json:"mixer_on"`
	CoolerOn         bool `json:"cooler_on"`
	BurnerOn         bool `json:"burner_on"`
	CylinderOn       bool `json:"cylinder_on"`
	Powered          bool `json:"powered"`
	Roasting         bool `json:"roasting"`

	BeanTemp      int `json:"temp_bean"`
	AirTemp       int `json:"temp_air"`
	FireTemp      int `json:"temp_fire"`
	SetpointTemp  int `json:"temp_goal"`
	CoolerTemp    int `json:"temp_cooler"`
	ServoPosition int `json:"servo_position"` // percent, raw register / 10
	ElapsedSecs   int `json:"roast_time"`
}

// Tick is one telemetry record emitted by the control loop.
type Tick struct {
	RoastID   string    `json:"roast_id,omitempty"`
	Timestamp time.Time `json:"datetime"`
	Snapshot
}
