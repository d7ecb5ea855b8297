package roast

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"coffee_roaster/internal/clock"
	"coffee_roaster/internal/control"
	"coffee_roaster/internal/device"
	"coffee_roaster/internal/models"
	"coffee_roaster/internal/telemetry"
)

// idleStrategy leaves the machine alone so only the orchestrator writes.
type idleStrategy struct{}

func (idleStrategy) Kind() control.Kind                    { return control.FireTemperature }
func (idleStrategy) BeforeStart(context.Context) error     { return nil }
func (idleStrategy) AfterStart(context.Context) error      { return nil }
func (idleStrategy) Step(context.Context, int, bool) error { return nil }

// preheatRig is a lit, spinning machine with every gate closed. The
// profile asks for a 220 °C fire before charging.
func preheatRig(t *testing.T, fire int) (*device.FakeRegisters, *clock.Manual, *telemetry.FakeSink, *Orchestrator) {
	t.Helper()
	regs := device.NewFakeRegisters()
	regs.SetCoil(device.Addr(device.SigCylinder), true)
	regs.SetCoil(device.Addr(device.SigBurner), true)
	regs.SetFireTemp(fire)
	clk := clock.NewManual(t0)
	sink := &telemetry.FakeSink{}

	cfg := DefaultConfig()
	cfg.Name = "preheat"
	cfg.Automatic = true
	cfg.TotalDuration = 2 * time.Second

	o, err := New(cfg, Deps{
		Device: device.New(regs, nil), Profile: simProfile(t), Strategy: idleStrategy{},
		Sink: sink, Exporter: &fakeExporter{}, Clock: clk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return regs, clk, sink, o
}

func TestPreheat_CoolsDownWithFlameOut(t *testing.T) {
	regs, clk, sink, o := preheatRig(t, 300)
	fire := 300
	clk.OnSleep = func(time.Time) {
		if !regs.Coil(device.Addr(device.SigBurner)) {
			fire -= 30
			regs.SetFireTemp(fire)
		}
	}

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"preflight", "preconditioning", "main_loop", "shutdown"}
	if got := phases(sink); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	// 300 -> 270 -> 240 -> 210 crosses 220 on the way down
	burner := regs.WritesTo(device.Addr(device.SigBurner))
	if !reflect.DeepEqual(burner, []uint16{0, 0, 0, 1}) {
		t.Fatalf("burner writes = %v, want the flame held out until charging", burner)
	}
	if got := regs.WritesTo(device.Addr(device.SigServoPosition)); len(got) != 0 {
		t.Fatalf("cooling must leave the servo alone, got %v", got)
	}
	if fire != 210 {
		t.Fatalf("fire = %d, cooling should stop once 220 is crossed", fire)
	}
}

func TestPreheat_ServoStepsWithinBounds(t *testing.T) {
	tests := []struct {
		name  string
		servo uint16 // raw register, percent * 10
		want  []uint16
	}{
		{"from closed", 0, []uint16{100, 130, 160, 190, 220, 250, 250}},
		{"near the ceiling", 240, []uint16{250, 250, 250, 250, 250, 250, 250}},
		{"above the ceiling", 400, []uint16{250, 250, 250, 250, 250, 250, 250}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs, clk, _, o := preheatRig(t, 150)
			regs.SetServoRaw(tt.servo)
			fire := 150
			clk.OnSleep = func(time.Time) {
				if fire < 220 && regs.Coil(device.Addr(device.SigBurner)) {
					fire += 10
					regs.SetFireTemp(fire)
				}
			}

			if _, err := o.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			got := regs.WritesTo(device.Addr(device.SigServoPosition))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("servo writes = %v, want %v", got, tt.want)
			}
			for _, v := range regs.WritesTo(device.Addr(device.SigBurner)) {
				if v != 1 {
					t.Fatalf("heating must never put the flame out, burner writes %v", regs.WritesTo(device.Addr(device.SigBurner)))
				}
			}
		})
	}
}

func TestPreheat_BlockedDrumCloseIsOnlyAWarning(t *testing.T) {
	regs, clk, sink, o := preheatRig(t, 200)
	fire, sleeps := 200, 0
	clk.OnSleep = func(time.Time) {
		sleeps++
		switch sleeps {
		case 1:
			// someone opened the drum while the cooler exit was open
			regs.SetGate(device.BeanExit, true)
			regs.SetGate(device.CoolerExit, true)
		case 3:
			regs.SetGate(device.CoolerExit, false)
		}
		if fire < 220 {
			fire += 5
			regs.SetFireTemp(fire)
		}
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var blocked []models.RoastEvent
	for _, ev := range sink.EventsOfType(models.EventWarning) {
		if strings.Contains(ev.Description, "feche o cilindro") {
			blocked = append(blocked, ev)
		}
	}
	if len(blocked) != 2 {
		t.Fatalf("want a warning on each blocked attempt, got %d", len(blocked))
	}
	if meta, _ := blocked[0].Metadata.(map[string]any); meta["err"] == nil {
		t.Fatalf("warning should carry the interlock error: %+v", blocked[0])
	}
	if got := regs.WritesTo(device.Addr(device.SigBeanExitCmd)); !reflect.DeepEqual(got, []uint16{0}) {
		t.Fatalf("drum close writes = %v, want one once the cooler exit cleared", got)
	}
	if regs.Coil(device.Addr(device.SigBeanExitState)) {
		t.Fatalf("drum must be closed before charging")
	}
	if res.LastPhase != PhaseMainLoop || len(res.Ticks) == 0 {
		t.Fatalf("roast should carry on into the main loop, got %+v", res.LastPhase)
	}
	if len(sink.EventsOfType(models.EventError)) != 0 {
		t.Fatalf("blocked close must not fail the roast")
	}
}
