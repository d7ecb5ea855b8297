package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coffee_roaster/internal/models"
)

type TickSQLite struct {
	db *sql.DB
}

func NewTickSQLite(db *sql.DB) *TickSQLite {
	return &TickSQLite{db: db}
}

var _ TickRepo = (*TickSQLite)(nil)

const (
	tickColumns = `roast_id, recorded_at, roast_time, temp_bean, temp_air, temp_fire, temp_goal, temp_cooler, servo_position, flags`

	insertTickSQL = `INSERT INTO roast_ticks (` + tickColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectLatestTickSQL = `SELECT ` + tickColumns + ` FROM roast_ticks ORDER BY id DESC LIMIT 1`

	selectTicksByRoastSQL = `SELECT ` + tickColumns + ` FROM roast_ticks WHERE roast_id = ? ORDER BY id ASC`
)

// Gate and actuator booleans are stored as one bit mask.
const (
	flagBeanEntrance = 1 << iota
	flagBeanExit
	flagCoolerExit
	flagMixer
	flagCooler
	flagBurner
	flagCylinder
	flagPowered
	flagRoasting
)

func packFlags(s models.Snapshot) int {
	var f int
	for bit, on := range map[int]bool{
		flagBeanEntrance: s.BeanEntranceOpen,
		flagBeanExit:     s.BeanExitOpen,
		flagCoolerExit:   s.CoolerExitOpen,
		flagMixer:        s.MixerOn,
		flagCooler:       s.CoolerOn,
		flagBurner:       s.BurnerOn,
		flagCylinder:     s.CylinderOn,
		flagPowered:      s.Powered,
		flagRoasting:     s.Roasting,
	} {
		if on {
			f |= bit
		}
	}
	return f
}

func unpackFlags(f int, s *models.Snapshot) {
	s.BeanEntranceOpen = f&flagBeanEntrance != 0
	s.BeanExitOpen = f&flagBeanExit != 0
	s.CoolerExitOpen = f&flagCoolerExit != 0
	s.MixerOn = f&flagMixer != 0
	s.CoolerOn = f&flagCooler != 0
	s.BurnerOn = f&flagBurner != 0
	s.CylinderOn = f&flagCylinder != 0
	s.Powered = f&flagPowered != 0
	s.Roasting = f&flagRoasting != 0
}

// Append stores one tick; a zero timestamp is replaced with now.
func (r *TickSQLite) Append(ctx context.Context, t models.Tick) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s := t.Snapshot
	_, err := r.db.ExecContext(ctx, insertTickSQL,
		t.RoastID,
		ts.UTC(),
		s.ElapsedSecs,
		s.BeanTemp,
		s.AirTemp,
		s.FireTemp,
		s.SetpointTemp,
		s.CoolerTemp,
		s.ServoPosition,
		packFlags(s),
	)
	return err
}

// Latest returns the most recent tick of any roast, or (nil, nil) when none was recorded.
func (r *TickSQLite) Latest(ctx context.Context) (*models.Tick, error) {
	t, err := scanTick(r.db.QueryRowContext(ctx, selectLatestTickSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByRoast returns the ticks of one roast in recording order.
func (r *TickSQLite) ListByRoast(ctx context.Context, roastID string) ([]models.Tick, error) {
	rows, err := r.db.QueryContext(ctx, selectTicksByRoastSQL, roastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tick
	for rows.Next() {
		t, err := scanTick(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTick(row scanner) (models.Tick, error) {
	var (
		t     models.Tick
		flags int
	)
	s := &t.Snapshot
	if err := row.Scan(
		&t.RoastID,
		&t.Timestamp,
		&s.ElapsedSecs,
		&s.BeanTemp,
		&s.AirTemp,
		&s.FireTemp,
		&s.SetpointTemp,
		&s.CoolerTemp,
		&s.ServoPosition,
		&flags,
	); err != nil {
		return models.Tick{}, err
	}
	unpackFlags(flags, s)
	t.Timestamp = t.Timestamp.UTC()
	return t, nil
}
