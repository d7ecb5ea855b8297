package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func roastFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("roaster", pflag.ContinueOnError)
	RoastFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(roastFlagSet(t, "--config", writeConfig(t, "{}\n")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != "8080" || cfg.Roast.Control != "fire-temperature" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Roast.StartMixerRemaining != 5 || cfg.Roast.Interval != 1 {
		t.Fatalf("roast defaults: %+v", cfg.Roast)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour || cfg.MQTT.Timeout != 5*time.Second {
		t.Fatalf("duration defaults: %+v %+v", cfg.Auth, cfg.MQTT)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
roaster:
  address: 10.0.0.5:502
  timeout: 2s
mqtt:
  broker: tcp://broker:1883
roast:
  control: servo-position
`)
	t.Setenv("ROASTER_MQTT_BROKER", "tcp://from-env:1883")
	t.Setenv("ROASTER_ROAST_CONTROL", "bean-temperature")

	cfg, err := Load(roastFlagSet(t, "--config", path, "--control-type", "fire-temperature", "--fake", "--auto"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		name string
		got  any
		want any
	}{
		{"file", cfg.Roaster.Address, "10.0.0.5:502"},
		{"file duration", cfg.Roaster.Timeout, 2 * time.Second},
		{"file level", cfg.Log.Level, "warn"},
		{"env over file", cfg.MQTT.Broker, "tcp://from-env:1883"},
		{"flag over env", cfg.Roast.Control, "fire-temperature"},
		{"fake flag", cfg.Simulator.Enabled, true},
		{"auto flag", cfg.Roast.Automatic, true},
		{"unset flag keeps default", cfg.MQTT.Enabled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(roastFlagSet(t, "--config", filepath.Join(t.TempDir(), "nope.yml")))
	if err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}

func TestApplyRoastArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr bool
		minutes float64
	}{
		{"ok", []string{"42", "12.5", "data/setup.xlsx"}, false, 12.5},
		{"missing", []string{"42", "12"}, true, 0},
		{"space in name", []string{"4 2", "12", "s.csv"}, true, 0},
		{"bad minutes", []string{"42", "abc", "s.csv"}, true, 0},
		{"zero minutes", []string{"42", "0", "s.csv"}, true, 0},
		{"slash in name", []string{"a/b", "12", "s.csv"}, true, 0},
		{"backslash in name", []string{`a\b`, "12", "s.csv"}, true, 0},
		{"tab in name", []string{"4\t2", "12", "s.csv"}, true, 0},
		{"trailing garbage in minutes", []string{"42", "30abc", "s.csv"}, true, 0},
		{"negative minutes", []string{"42", "-5", "s.csv"}, true, 0},
		{"NaN minutes", []string{"42", "NaN", "s.csv"}, true, 0},
		{"infinite minutes", []string{"42", "Inf", "s.csv"}, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			err := cfg.ApplyRoastArgs(tc.args)
			if tc.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Fatalf("want ErrUsage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyRoastArgs: %v", err)
			}
			if cfg.Roast.Minutes != tc.minutes || cfg.Roast.Name != "42" || cfg.Roast.Setup != "data/setup.xlsx" {
				t.Fatalf("unexpected roast config: %+v", cfg.Roast)
			}
			if cfg.Roast.Duration() != 12*time.Minute+30*time.Second {
				t.Fatalf("Duration = %v", cfg.Roast.Duration())
			}
		})
	}
}
