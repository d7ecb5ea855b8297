package roast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coffee_roaster/internal/clock"
	"coffee_roaster/internal/control"
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/models"
	"coffee_roaster/internal/profile"
	"coffee_roaster/internal/telemetry"
)

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

type fakeExporter struct {
	name  string
	ticks []models.Tick
	calls int
	err   error
}

func (f *fakeExporter) Export(name string, ticks []models.Tick) (string, error) {
	f.calls++
	f.name = name
	f.ticks = ticks
	if f.err != nil {
		return "", f.err
	}
	return "data/torra-" + name + ".xlsx", nil
}

func fp(v float64) *float64 { return &v }

func phases(sink *telemetry.FakeSink) []string {
	var out []string
	for _, ev := range sink.EventsOfType(models.EventPhase) {
		meta, _ := ev.Metadata.(map[string]any)
		out = append(out, meta["phase"].(string))
	}
	return out
}

func manualConfig(d time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Name = "42"
	cfg.TotalDuration = d
	return cfg
}

func TestNew_Validation(t *testing.T) {
	regs := device.NewFakeRegisters()
	dev := device.New(regs, nil)

	cfg := manualConfig(time.Minute)
	cfg.Automatic = true
	if _, err := New(cfg, Deps{Device: dev}); !errors.Is(err, control.ErrMissingConfiguration) {
		t.Fatalf("automatic without profile: got %v", err)
	}
	if _, err := New(manualConfig(0), Deps{Device: dev}); !errors.Is(err, control.ErrMissingConfiguration) {
		t.Fatalf("zero duration: got %v", err)
	}
	if _, err := New(manualConfig(time.Minute), Deps{}); !errors.Is(err, control.ErrMissingConfiguration) {
		t.Fatalf("no device: got %v", err)
	}
	o, err := New(manualConfig(time.Minute), Deps{Device: dev})
	if err != nil {
		t.Fatalf("manual roast: %v", err)
	}
	if o.RoastID() == "" {
		t.Fatalf("roast id should be generated")
	}
}

func TestRun_ManualRoast(t *testing.T) {
	regs := device.NewFakeRegisters()
	regs.SetGate(device.BeanEntrance, true) // left open by the previous batch
	clk := clock.NewManual(t0)
	sink := &telemetry.FakeSink{}
	exp := &fakeExporter{}

	// the operator opens the hopper once preflight is over
	clk.OnSleep = func(now time.Time) {
		if now.Sub(t0) >= 8*time.Second && !regs.Coil(device.Addr(device.SigBeanEntranceState)) {
			regs.SetGate(device.BeanEntrance, true)
		}
	}

	o, err := New(manualConfig(5*time.Second), Deps{
		Device: device.New(regs, nil), Sink: sink, Exporter: exp, Clock: clk, RoastID: "r-manual",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !regs.Coil(device.Addr(device.SigCylinder)) || !regs.Coil(device.Addr(device.SigBurner)) {
		t.Fatalf("preflight must power the cylinder and light the burner")
	}
	if got := regs.WritesTo(device.Addr(device.SigBeanEntranceCmd)); len(got) == 0 || got[0] != 0 {
		t.Fatalf("preflight must close the open hopper, writes %v", got)
	}
	if !regs.Coil(device.Addr(device.SigMode)) {
		t.Fatalf("manual roast must switch the machine to manual")
	}
	if got := regs.WritesTo(device.Addr(device.SigStartRoast)); len(got) != 2 {
		t.Fatalf("start pulse writes = %v", got)
	}
	if regs.Coil(device.Addr(device.SigBeanExitCmd)) || len(regs.WritesTo(device.Addr(device.SigSetpoint))) != 0 {
		t.Fatalf("manual roast must not actuate strategy or discharge")
	}

	want := []string{"preflight", "manual_start", "main_loop", "shutdown"}
	if got := phases(sink); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	if n := len(res.Ticks); n < 5 || n > 7 {
		t.Fatalf("ticks = %d, want about one per second for 5s", n)
	}
	if len(sink.Ticks()) != len(res.Ticks) {
		t.Fatalf("every tick must reach the sink")
	}
	for _, tick := range res.Ticks {
		if tick.RoastID != "r-manual" {
			t.Fatalf("tick without roast id: %+v", tick)
		}
	}
	if exp.calls != 1 || exp.name != "42" || len(exp.ticks) != len(res.Ticks) {
		t.Fatalf("exporter got calls=%d name=%q ticks=%d", exp.calls, exp.name, len(exp.ticks))
	}
	if res.ExportPath != "data/torra-42.xlsx" || res.LastPhase != PhaseMainLoop {
		t.Fatalf("unexpected result %+v", res)
	}
	if !regs.Closed {
		t.Fatalf("device link must be released")
	}
}

func TestRun_TicksArePaced(t *testing.T) {
	regs := device.NewFakeRegisters()
	regs.SetCoil(device.Addr(device.SigCylinder), true)
	regs.SetCoil(device.Addr(device.SigBurner), true)
	clk := clock.NewManual(t0)
	clk.OnSleep = func(time.Time) { regs.SetGate(device.BeanEntrance, true) }

	o, _ := New(manualConfig(3*time.Second), Deps{Device: device.New(regs, nil), Clock: clk})
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Ticks) < 3 {
		t.Fatalf("ticks = %d", len(res.Ticks))
	}
	for i := 1; i < len(res.Ticks); i++ {
		if gap := res.Ticks[i].Timestamp.Sub(res.Ticks[i-1].Timestamp); gap < time.Second {
			t.Fatalf("tick %d only %s after the previous one", i, gap)
		}
	}
}

func TestRun_CancelledWhileWaitingForOperator(t *testing.T) {
	regs := device.NewFakeRegisters()
	clk := clock.NewManual(t0)
	exp := &fakeExporter{}
	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	clk.OnSleep = func(time.Time) {
		sleeps++
		if sleeps == 20 {
			cancel()
		}
	}

	o, _ := New(manualConfig(time.Minute), Deps{Device: device.New(regs, nil), Exporter: exp, Clock: clk})
	res, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if res.LastPhase != PhaseManualStart {
		t.Fatalf("last phase = %v", res.LastPhase)
	}
	if exp.calls != 1 || len(exp.ticks) != 0 {
		t.Fatalf("cancelled roast must still export (empty) ticks, calls=%d", exp.calls)
	}
	if !regs.Closed {
		t.Fatalf("device link must be released")
	}
}

func TestRun_CommunicationFailureStillExports(t *testing.T) {
	regs := device.NewFakeRegisters()
	regs.SetCoil(device.Addr(device.SigCylinder), true)
	regs.SetCoil(device.Addr(device.SigBurner), true)
	clk := clock.NewManual(t0)
	clk.OnSleep = func(now time.Time) {
		regs.SetGate(device.BeanEntrance, true)
		if now.Sub(t0) >= 3*time.Second {
			regs.Err = errors.New("connection reset by peer")
		}
	}
	exp := &fakeExporter{}
	sink := &telemetry.FakeSink{}

	o, _ := New(manualConfig(time.Minute), Deps{Device: device.New(regs, nil), Exporter: exp, Clock: clk, Sink: sink})
	res, err := o.Run(context.Background())
	if !errors.Is(err, device.ErrCommunication) {
		t.Fatalf("want ErrCommunication, got %v", err)
	}
	if len(res.Ticks) == 0 || exp.calls != 1 || len(exp.ticks) != len(res.Ticks) {
		t.Fatalf("partial recording must be exported: ticks=%d calls=%d", len(res.Ticks), exp.calls)
	}
	if res.LastPhase != PhaseMainLoop {
		t.Fatalf("last phase = %v", res.LastPhase)
	}
	if len(sink.EventsOfType(models.EventError)) != 1 {
		t.Fatalf("fatal error must be reported once")
	}
}

// simProfile is a short recorded roast: fire climbs from 220 to 250, bean
// peaks at 190 after the first half minute.
func simProfile(t *testing.T) *profile.Profile {
	t.Helper()
	rows := []profile.Row{
		{Elapsed: 0, BeanTemp: fp(180), AirTemp: fp(200), FireTemp: fp(220), ServoPosition: fp(20)},
		{Elapsed: 30, BeanTemp: fp(120), AirTemp: fp(190), FireTemp: fp(230), ServoPosition: fp(20)},
		{Elapsed: 60, BeanTemp: fp(150), AirTemp: fp(200), FireTemp: fp(240), ServoPosition: fp(25)},
		{Elapsed: 120, BeanTemp: fp(190), AirTemp: fp(210), FireTemp: fp(250), ServoPosition: fp(25)},
	}
	p, err := profile.New(rows, 1)
	if err != nil {
		t.Fatalf("profile.New: %v", err)
	}
	return p
}

func TestRun_AutomaticRoastOnSimulator(t *testing.T) {
	sim := device.NewSimulator(150, 200)
	clk := clock.NewManual(t0)
	sim.AdvanceTo(t0)
	clk.OnSleep = sim.AdvanceTo

	dev := device.New(sim, nil)
	prof := simProfile(t)
	strategy, err := control.New(control.FireTemperature, control.Deps{Device: dev, Profile: prof, Clock: clk})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	sink := &telemetry.FakeSink{}
	exp := &fakeExporter{}

	cfg := DefaultConfig()
	cfg.Name = "sim"
	cfg.Automatic = true
	cfg.TotalDuration = 4 * time.Minute

	o, err := New(cfg, Deps{Device: dev, Profile: prof, Strategy: strategy, Sink: sink, Exporter: exp, Clock: clk})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.Config().FinalBeanTemp != 190 {
		t.Fatalf("final bean temp = %d, want the profile's 190", o.Config().FinalBeanTemp)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"preflight", "preconditioning", "main_loop", "shutdown"}
	if got := phases(sink); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	if !res.TurningPointPassed {
		t.Fatalf("turning point never detected")
	}
	if !res.CoolingStarted || !res.Discharged {
		t.Fatalf("auto-finish incomplete: cooling=%v discharged=%v", res.CoolingStarted, res.Discharged)
	}
	if !sim.Coil(device.Addr(device.SigMixer)) || !sim.Coil(device.Addr(device.SigCooler)) {
		t.Fatalf("mixer and cooler must be running at the end")
	}
	if sim.Coil(device.Addr(device.SigBurner)) {
		t.Fatalf("burner must be out after discharge")
	}
	if sim.Coil(device.Addr(device.SigBeanEntranceState)) || sim.Coil(device.Addr(device.SigBeanExitState)) {
		t.Fatalf("hopper and drum must be closed again at the end")
	}
	if got := sim.WritesTo(device.Addr(device.SigAlarm)); len(got) == 0 || got[0] != 190 {
		t.Fatalf("alarm must first be set to the final temperature, got %v", got)
	}

	// every tick obeys the one-gate rule
	for _, tick := range res.Ticks {
		n := 0
		for _, open := range []bool{tick.BeanEntranceOpen, tick.BeanExitOpen, tick.CoolerExitOpen} {
			if open {
				n++
			}
		}
		if n > 1 {
			t.Fatalf("two gates open at %ds", tick.ElapsedSecs)
		}
	}

	status := 0
	for _, ev := range sink.EventsOfType(models.EventStatus) {
		if strings.Contains(ev.Description, "GRAO:") {
			status++
		}
	}
	if status < 10 {
		t.Fatalf("expected a status line every 15s, got %d", status)
	}
	if exp.calls != 1 || !sim.Closed {
		t.Fatalf("shutdown incomplete: export calls=%d closed=%v", exp.calls, sim.Closed)
	}
}

func TestStatusLine(t *testing.T) {
	p := simProfile(t)
	s := models.Snapshot{ElapsedSecs: 61, BeanTemp: 152, AirTemp: 201, FireTemp: 238, ServoPosition: 25}
	got := statusLine(s, p, 91)
	want := "00:01:01 GRAO: 152 (s: 150) AR: 201 (s: 200) FORNO: 0238 (s: 0240) TP: 0091 SV: 25.00 (s: 25.00)"
	if got != want {
		t.Fatalf("statusLine =\n%q\nwant\n%q", got, want)
	}
	if PrettySeconds(3725) != "01:02:05" {
		t.Fatalf("PrettySeconds(3725) = %s", PrettySeconds(3725))
	}
}
