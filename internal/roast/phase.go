package roast

// Phase is a stage of the roast state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreflight
	PhaseManualStart
	PhasePreconditioning
	PhaseMainLoop
	PhaseShutdown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreflight:
		return "preflight"
	case PhaseManualStart:
		return "manual_start"
	case PhasePreconditioning:
		return "preconditioning"
	case PhaseMainLoop:
		return "main_loop"
	case PhaseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// phaseBanner is what the operator reads when a phase begins.
var phaseBanner = map[Phase]string{
	PhasePreflight:       "Conectado ao controlador! Preparando torrador...",
	PhaseManualStart:     "TORRANDO NO MODO MANUAL",
	PhasePreconditioning: "TORRANDO NO MODO AUTOMÁTICO! Pode ir tomar um café :)",
	PhaseMainLoop:        "Gravando torra...",
	PhaseShutdown:        "Finalizada a gravação. Fechando conexão e convertendo arquivo...",
}
