package device

import "time"

// Kind distinguishes Modbus coils from holding registers.
type Kind int

const (
	KindCoil Kind = iota
	KindHolding
)

func (k Kind) String() string {
	if k == KindCoil {
		return "coil"
	}
	return "holding"
}

// Signal names one addressable value on the controller.
type Signal int

const (
	SigBeanEntranceState Signal = iota
	SigBeanExitState
	SigCoolerExitState
	SigBeanEntranceCmd
	SigBeanExitCmd
	SigCoolerExitCmd
	SigAlarm
	SigBurner
	SigCylinder
	SigCooler
	SigMixer
	SigMode
	SigPIDP
	SigPIDI
	SigPIDD
	SigRecipeMinutes
	SigRecipeSeconds
	SigRecipeTemps
	SigServoPosition
	SigSetpoint
	SigStartRoast
	SigPIDReference
	SigTelemetryBlock
	SigStatusBlock
	SigGateBlock
)

// Register is one row of the controller's register table.
type Register struct {
	Name    string
	Address uint16
	Kind    Kind
	Count   uint16 // registers read as a block; 1 for single values
}

// Registers of the Carmomaq-10 controller. These addresses are fixed by the
// machine firmware and must not change.
var registerTable = map[Signal]Register{
	SigBeanEntranceState: {"bean_entrance_state", 16005, KindCoil, 1},
	SigBeanExitState:     {"bean_exit_state", 16007, KindCoil, 1},
	SigCoolerExitState:   {"cooler_exit_state", 16008, KindCoil, 1},
	SigBeanEntranceCmd:   {"bean_entrance_cmd", 49983, KindCoil, 1},
	SigBeanExitCmd:       {"bean_exit_cmd", 49982, KindCoil, 1},
	SigCoolerExitCmd:     {"cooler_exit_cmd", 49981, KindCoil, 1},
	SigAlarm:             {"alarm", 28110, KindHolding, 1},
	SigBurner:            {"burner", 49995, KindCoil, 1},
	SigCylinder:          {"cylinder", 49991, KindCoil, 1},
	SigCooler:            {"cooler", 49993, KindCoil, 1},
	SigMixer:             {"mixer", 49994, KindCoil, 1},
	SigMode:              {"operational_mode", 49996, KindCoil, 1},
	SigPIDP:              {"pid_p", 30000, KindHolding, 1},
	SigPIDI:              {"pid_i", 30001, KindHolding, 1},
	SigPIDD:              {"pid_d", 30002, KindHolding, 1},
	SigRecipeMinutes:     {"recipe_minutes", 28010, KindHolding, recipeSlots},
	SigRecipeSeconds:     {"recipe_seconds", 28201, KindHolding, recipeSlots},
	SigRecipeTemps:       {"recipe_temps", 28040, KindHolding, recipeSlots},
	SigServoPosition:     {"servo_position", 28240, KindHolding, 1},
	SigSetpoint:          {"setpoint", 8003, KindHolding, 1},
	SigStartRoast:        {"start_roast", 49998, KindCoil, 1},
	SigPIDReference:      {"pid_reference", 55556, KindCoil, 1},
	SigTelemetryBlock:    {"telemetry", 8000, KindHolding, 12},
	SigStatusBlock:       {"status", 49990, KindCoil, 10},
	SigGateBlock:         {"gates", 16005, KindCoil, 4},
}

// recipeSlots is the number of steps in the controller's onboard recipe.
const recipeSlots = 30

// Offsets inside SigTelemetryBlock.
const (
	telBeanTemp     = 0
	telAirTemp      = 1
	telFireTemp     = 2
	telSetpoint     = 3
	telRoastTime    = 6
	telCoolerTemp   = 10
	telServoRaw     = 11
	servoScale      = 10
	maxServoPercent = 100
)

// Offsets inside SigStatusBlock.
const (
	stPowered  = 1
	stCooler   = 3
	stMixer    = 4
	stBurner   = 5
	stMode     = 6
	stRoasting = 9
)

// Offsets inside SigGateBlock.
const (
	gateEntrance   = 0
	gateExit       = 2
	gateCoolerExit = 3
)

// Addr returns the address of a signal.
func Addr(s Signal) uint16 { return registerTable[s].Address }

// Gate is one of the three mutually exclusive bean doors.
type Gate int

const (
	BeanEntrance Gate = iota
	BeanExit
	CoolerExit
)

var gates = [...]Gate{BeanEntrance, BeanExit, CoolerExit}

func (g Gate) String() string {
	switch g {
	case BeanEntrance:
		return "bean_entrance"
	case BeanExit:
		return "bean_exit"
	case CoolerExit:
		return "cooler_exit"
	default:
		return "unknown_gate"
	}
}

// SettleTime is how long the gate piston takes to finish moving.
func (g Gate) SettleTime() time.Duration {
	switch g {
	case BeanEntrance:
		return 6 * time.Second
	case BeanExit:
		return 9 * time.Second
	default:
		return 9500 * time.Millisecond
	}
}

func (g Gate) command() Signal {
	switch g {
	case BeanEntrance:
		return SigBeanEntranceCmd
	case BeanExit:
		return SigBeanExitCmd
	default:
		return SigCoolerExitCmd
	}
}

func (g Gate) state() Signal {
	switch g {
	case BeanEntrance:
		return SigBeanEntranceState
	case BeanExit:
		return SigBeanExitState
	default:
		return SigCoolerExitState
	}
}
