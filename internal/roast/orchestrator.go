// Package roast sequences a roast from preflight to shutdown: pre-heating,
// bean admission, the per-second control loop with turning-point detection
// and automatic discharge.
package roast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coffee_roaster/internal/clock"
	"coffee_roaster/internal/control"
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
	"coffee_roaster/internal/profile"
	"coffee_roaster/internal/telemetry"
)

// Device is the machine the orchestrator drives.
type Device interface {
	control.Device
	SetAlarm(t int) error
	SetMixer(on bool) error
	SetCooler(on bool) error
	SetBurner(on bool) error
	SetCylinder(on bool) error
	OpenGate(g device.Gate) error
	CloseGate(g device.Gate) error
	StartRoast() error
	StopRoast() error
	RestartRoast() error
	Close() error
}

var _ Device = (*device.Roaster)(nil)

// Exporter turns the recorded ticks into a file and returns its path.
type Exporter interface {
	Export(name string, ticks []models.Tick) (string, error)
}

// Bang-bang pre-conditioning moves the servo in steps of preheatServoStep
// inside [preheatServoMin, preheatServoMax] while heating.
const (
	preheatServoStep = 3
	preheatServoMin  = 10
	preheatServoMax  = 25
)

// Config tunes one roast.
type Config struct {
	// Name identifies the roast (the batch number) and names the export file.
	Name      string
	Automatic bool

	TotalDuration        time.Duration
	TickInterval         time.Duration
	PollInterval         time.Duration
	PreconditionInterval time.Duration

	// StatusEvery is the status line period in roast seconds.
	StatusEvery int
	// StartMixerRemainingDegrees starts mixer and cooler this many degrees
	// before FinalBeanTemp.
	StartMixerRemainingDegrees int
	// FinalBeanTemp is the discharge temperature; 0 takes it from the profile.
	FinalBeanTemp int
	// EntranceCloseAfter closes the hopper gate after this many roast seconds.
	EntranceCloseAfter int
	// BeanExitCloseAfter closes the discharge gate this many seconds after opening it.
	BeanExitCloseAfter int
	// TurningPointDeadband ignores the first roast seconds when looking for the turning point.
	TurningPointDeadband int
}

// DefaultConfig returns the machine's usual settings.
func DefaultConfig() Config {
	return Config{
		TotalDuration:              35 * time.Minute,
		TickInterval:               time.Second,
		PollInterval:               50 * time.Millisecond,
		PreconditionInterval:       100 * time.Millisecond,
		StatusEvery:                15,
		StartMixerRemainingDegrees: 5,
		EntranceCloseAfter:         30,
		BeanExitCloseAfter:         30,
		TurningPointDeadband:       10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PreconditionInterval <= 0 {
		c.PreconditionInterval = d.PreconditionInterval
	}
	if c.StatusEvery <= 0 {
		c.StatusEvery = d.StatusEvery
	}
	return c
}

// Deps are the collaborators of one roast.
type Deps struct {
	Device   Device
	Profile  *profile.Profile
	Strategy control.Strategy
	Sink     telemetry.Sink
	Exporter Exporter
	Clock    clock.Clock
	Log      *logger.Logger
	// RoastID tags every tick and event; generated when empty.
	RoastID string
}

// Session is the mutable state of the roast in progress.
type Session struct {
	Phase        Phase
	StartedAt    time.Time
	TurningPoint *TurningPointDetector
	Finish       *AutoFinishSequencer
	Ticks        []models.Tick

	lastStatus int
}

// Result summarises a finished roast.
type Result struct {
	RoastID string
	// LastPhase is the phase the roast was in when it ended.
	LastPhase          Phase
	Ticks              []models.Tick
	ExportPath         string
	TurningPointPassed bool
	TurningPointTemp   int
	FinalBeanTemp      int
	CoolingStarted     bool
	Discharged         bool
}

// Orchestrator runs one roast against one device. It is single use.
type Orchestrator struct {
	cfg      Config
	dev      Device
	prof     *profile.Profile
	strategy control.Strategy
	sink     telemetry.Sink
	exporter Exporter
	clock    clock.Clock
	log      *logger.Logger
	roastID  string

	session Session
}

// New validates the configuration and prepares a session.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if deps.Device == nil {
		return nil, fmt.Errorf("%w: no device", control.ErrMissingConfiguration)
	}
	if cfg.TotalDuration <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive", control.ErrMissingConfiguration)
	}
	if cfg.FinalBeanTemp == 0 && deps.Profile != nil {
		cfg.FinalBeanTemp = deps.Profile.FinalBeanTemp()
	}
	if cfg.Automatic {
		if deps.Profile == nil || deps.Strategy == nil {
			return nil, fmt.Errorf("%w: automatic roast needs a profile and a strategy", control.ErrMissingConfiguration)
		}
		if cfg.FinalBeanTemp <= 0 {
			return nil, fmt.Errorf("%w: no final bean temperature", control.ErrMissingConfiguration)
		}
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.NewConsoleSink(deps.Log)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.RoastID == "" {
		deps.RoastID = uuid.NewString()
	}

	o := &Orchestrator{
		cfg:      cfg,
		dev:      deps.Device,
		prof:     deps.Profile,
		strategy: deps.Strategy,
		sink:     deps.Sink,
		exporter: deps.Exporter,
		clock:    deps.Clock,
		log:      deps.Log,
		roastID:  deps.RoastID,
	}
	o.session = Session{
		TurningPoint: NewTurningPointDetector(cfg.TurningPointDeadband),
		lastStatus:   -1,
	}
	o.session.Finish = NewAutoFinishSequencer(deps.Device, cfg.FinalBeanTemp,
		cfg.StartMixerRemainingDegrees, cfg.BeanExitCloseAfter, o.warn)
	return o, nil
}

// RoastID identifies this roast in ticks and events.
func (o *Orchestrator) RoastID() string { return o.roastID }

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Run drives the roast to completion. It always goes through shutdown:
// the device link is released and the recorded ticks are exported, even
// after a failure. Cancellation of ctx ends the roast early and is not an
// error.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	err := o.run(ctx)
	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !canceled {
		o.event(models.EventError, "Erro: "+err.Error(), map[string]any{"phase": o.session.Phase.String()})
	}
	if canceled {
		o.event(models.EventStatus, "Torra interrompida pelo operador.", nil)
		err = nil
	}

	res, serr := o.shutdown()
	if err == nil {
		err = serr
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context) error {
	o.enter(PhasePreflight)
	if err := o.preflight(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	if o.cfg.Automatic {
		o.enter(PhasePreconditioning)
		if err := o.precondition(ctx); err != nil {
			return fmt.Errorf("preconditioning: %w", err)
		}
	} else {
		o.enter(PhaseManualStart)
		if err := o.manualStart(ctx); err != nil {
			return fmt.Errorf("manual start: %w", err)
		}
	}

	o.enter(PhaseMainLoop)
	if err := o.mainLoop(ctx); err != nil {
		return fmt.Errorf("main loop: %w", err)
	}
	return nil
}

// ---- phases ----

func (o *Orchestrator) preflight(ctx context.Context) error {
	snap, err := o.dev.ReadSnapshot()
	if err != nil {
		return err
	}

	if !snap.CylinderOn {
		o.say("Ligando cilindro...")
		if err := o.dev.SetCylinder(true); err != nil {
			return err
		}
		o.say("Cilindro ligado!")
	} else {
		o.say("Cilindro já ligado.")
	}

	if !snap.BurnerOn {
		o.say("Acendendo chama...")
		if err := o.dev.SetBurner(true); err != nil {
			return err
		}
		o.say("Chama acesa!")
	} else {
		o.say("Chama já acesa.")
	}

	gates := []struct {
		gate          device.Gate
		open          bool
		doing, closed string
	}{
		{device.BeanEntrance, snap.BeanEntranceOpen, "Fechando moega...", "Moega fechada!"},
		{device.BeanExit, snap.BeanExitOpen, "Fechando cilindro...", "Cilindro fechado!"},
		{device.CoolerExit, snap.CoolerExitOpen, "Fechando saída do mexedor...", "Saída do mexedor fechada!"},
	}
	for _, g := range gates {
		if !g.open {
			continue
		}
		o.say(g.doing)
		if err := o.dev.CloseGate(g.gate); err != nil {
			return err
		}
		if err := o.wait(ctx, g.gate.SettleTime()); err != nil {
			return err
		}
		o.say(g.closed)
	}
	return nil
}

func (o *Orchestrator) manualStart(ctx context.Context) error {
	o.say("Alterando torrador para manual...")
	if err := o.dev.SetMode(device.ModeManual); err != nil {
		return err
	}
	o.say("Torrador no manual!")

	o.say("Abra a moega pela interface touch screen.")
	for {
		snap, err := o.dev.ReadSnapshot()
		if err != nil {
			return err
		}
		if snap.BeanEntranceOpen {
			break
		}
		if err := o.clock.Sleep(ctx, o.cfg.PollInterval); err != nil {
			return err
		}
	}

	o.say("Iniciando torra...")
	if err := o.dev.StopRoast(); err != nil {
		return err
	}
	if err := o.dev.StartRoast(); err != nil {
		return err
	}
	o.say("Torra iniciada!")
	return nil
}

func (o *Orchestrator) precondition(ctx context.Context) error {
	if err := o.strategy.BeforeStart(ctx); err != nil {
		return err
	}

	initial := o.prof.Initial()
	o.say(fmt.Sprintf("Temperaturas iniciais do setup - GRÃO: %s, AR: %s, FOGO: %s",
		fieldText(initial, profile.FieldBeanTemp),
		fieldText(initial, profile.FieldAirTemp),
		fieldText(initial, profile.FieldFireTemp)))

	target, ok := o.prof.Lookup(0, profile.FieldFireTemp).Value(profile.FieldFireTemp)
	if !ok {
		return fmt.Errorf("%w: profile has no initial fire temperature", control.ErrMissingConfiguration)
	}

	o.say("Ajustando temperaturas para iniciar...")
	if err := o.dev.SetMode(device.ModeManual); err != nil {
		return err
	}
	if err := o.preheat(ctx, int(target)); err != nil {
		return err
	}

	snap, err := o.dev.ReadSnapshot()
	if err != nil {
		return err
	}
	if snap.BeanExitOpen {
		if err := o.dev.CloseGate(device.BeanExit); err != nil {
			return err
		}
		if err := o.wait(ctx, device.BeanExit.SettleTime()); err != nil {
			return err
		}
	}
	if err := o.dev.SetBurner(true); err != nil {
		return err
	}
	if err := o.dev.OpenGate(device.BeanEntrance); err != nil {
		return err
	}
	o.say("Moega aberta, grãos no cilindro!")

	if err := o.strategy.AfterStart(ctx); err != nil {
		return err
	}

	o.say("Iniciando torra...")
	if err := o.dev.RestartRoast(); err != nil {
		return err
	}
	if err := o.dev.SetAlarm(o.cfg.FinalBeanTemp); err != nil {
		return err
	}
	o.say("Torra iniciada!")
	o.say(fmt.Sprintf("Temperatura final: %d", o.cfg.FinalBeanTemp))
	return nil
}

// preheat is the bang-bang controller bringing the fire temperature to
// target before the beans go in. It stops as soon as the reading reaches
// target or crosses it in the intended direction.
func (o *Orchestrator) preheat(ctx context.Context, target int) error {
	first, err := o.dev.ReadSnapshot()
	if err != nil {
		return err
	}
	up := first.FireTemp <= target

	for {
		snap, err := o.dev.ReadSnapshot()
		if err != nil {
			return err
		}
		current := snap.FireTemp

		switch {
		case current == target:
			return nil
		case current < target:
			if !up {
				return nil
			}
			if snap.BeanExitOpen {
				if err := o.dev.CloseGate(device.BeanExit); err != nil {
					if !device.IsInterlock(err) {
						return err
					}
					o.warn("ERRO: feche o cilindro", err)
				}
			}
			servo := min(max(snap.ServoPosition+preheatServoStep, preheatServoMin), preheatServoMax)
			if err := o.dev.SetBurner(true); err != nil {
				return err
			}
			if err := o.dev.SetServoPosition(float64(servo)); err != nil {
				return err
			}
		default:
			if up {
				return nil
			}
			if err := o.dev.SetBurner(false); err != nil {
				return err
			}
		}

		if err := o.clock.Sleep(ctx, o.cfg.PreconditionInterval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) mainLoop(ctx context.Context) error {
	o.session.StartedAt = o.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tickStart := o.clock.Now()

		if err := o.tick(ctx); err != nil {
			return err
		}

		if o.clock.Now().Sub(o.session.StartedAt) > o.cfg.TotalDuration {
			return nil
		}
		for o.clock.Now().Sub(tickStart) < o.cfg.TickInterval {
			if err := o.clock.Sleep(ctx, o.cfg.PollInterval); err != nil {
				return err
			}
		}
	}
}

// tick is one iteration of the control loop.
func (o *Orchestrator) tick(ctx context.Context) error {
	snap, err := o.dev.ReadSnapshot()
	if err != nil {
		return err
	}
	t := models.Tick{RoastID: o.roastID, Timestamp: o.clock.Now(), Snapshot: snap}
	o.session.Ticks = append(o.session.Ticks, t)
	o.sink.Record(t)

	secs := snap.ElapsedSecs
	if o.cfg.Automatic && secs > o.cfg.EntranceCloseAfter && snap.BeanEntranceOpen {
		if err := o.dev.CloseGate(device.BeanEntrance); err != nil {
			if !device.IsInterlock(err) {
				return err
			}
			o.warn("Erro ao fechar a moega.", err)
		}
	}

	tp := o.session.TurningPoint
	if tp.Observe(secs, snap.BeanTemp) {
		o.event(models.EventStatus, fmt.Sprintf("Ponto de virada: %d", tp.Temperature()),
			map[string]any{"roast_time": secs, "temp_bean": tp.Temperature()})
	}

	if o.cfg.Automatic {
		if err := o.strategy.Step(ctx, secs, tp.Passed()); err != nil {
			return err
		}
		if tp.Passed() {
			if err := o.session.Finish.Step(snap); err != nil {
				return err
			}
		}
	}

	if secs%o.cfg.StatusEvery == 0 && secs != o.session.lastStatus {
		o.session.lastStatus = secs
		o.event(models.EventStatus, statusLine(snap, o.prof, tp.Temperature()), nil)
	}
	return nil
}

func (o *Orchestrator) shutdown() (Result, error) {
	last := o.session.Phase
	o.enter(PhaseShutdown)

	var errs []error
	if err := o.dev.Close(); err != nil {
		o.log.Errorw("failed to close roaster link", "err", err)
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}

	res := Result{
		RoastID:            o.roastID,
		LastPhase:          last,
		Ticks:              o.session.Ticks,
		TurningPointPassed: o.session.TurningPoint.Passed(),
		TurningPointTemp:   o.session.TurningPoint.Temperature(),
		FinalBeanTemp:      o.cfg.FinalBeanTemp,
		CoolingStarted:     o.session.Finish.CoolingStarted(),
	}
	_, res.Discharged = o.session.Finish.ExitOpenedAt()

	if o.exporter != nil {
		path, err := o.exporter.Export(o.cfg.Name, o.session.Ticks)
		if err != nil {
			o.log.Errorw("failed to export roast", "name", o.cfg.Name, "err", err)
			errs = append(errs, fmt.Errorf("export: %w", err))
		} else {
			res.ExportPath = path
			o.say("Arquivo gravado: " + path)
		}
	}
	return res, errors.Join(errs...)
}

// ---- helpers ----

func (o *Orchestrator) enter(p Phase) {
	o.session.Phase = p
	if msg, ok := phaseBanner[p]; ok {
		o.event(models.EventPhase, msg, map[string]any{"phase": p.String()})
	}
}

// wait sleeps d in PollInterval slices so cancellation is seen promptly.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	deadline := o.clock.Now().Add(d)
	for {
		left := deadline.Sub(o.clock.Now())
		if left <= 0 {
			return nil
		}
		if err := o.clock.Sleep(ctx, min(left, o.cfg.PollInterval)); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) say(msg string) {
	o.event(models.EventStatus, msg, nil)
}

func (o *Orchestrator) warn(msg string, err error) {
	meta := map[string]any{}
	if err != nil {
		meta["err"] = err.Error()
	}
	o.event(models.EventWarning, msg, meta)
}

func (o *Orchestrator) event(typ, msg string, meta map[string]any) {
	ev := models.RoastEvent{
		EventID:     uuid.NewString(),
		RoastID:     o.roastID,
		OccurredAt:  o.clock.Now(),
		Type:        typ,
		Description: msg,
	}
	if len(meta) > 0 {
		ev.Metadata = meta
	}
	o.sink.Event(ev)
}

func fieldText(r profile.Row, f profile.Field) string {
	if v, ok := r.Value(f); ok {
		return fmt.Sprintf("%g", v)
	}
	return "-"
}
