package roast

import (
	"fmt"

	"coffee_roaster/internal/models"
	"coffee_roaster/internal/profile"
)

// PrettySeconds renders a roast second count as HH:MM:SS.
func PrettySeconds(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// statusLine is the periodic operator summary: live readings next to the
// recorded ones ("s:") for the same second.
func statusLine(s models.Snapshot, p *profile.Profile, turningPointTemp int) string {
	var bean, air, fire, servo float64
	if p != nil {
		if row, ok := p.Near(s.ElapsedSecs); ok {
			bean, _ = row.Value(profile.FieldBeanTemp)
			air, _ = row.Value(profile.FieldAirTemp)
			fire, _ = row.Value(profile.FieldFireTemp)
			servo, _ = row.Value(profile.FieldServoPosition)
		}
	}
	return fmt.Sprintf(
		"%s GRAO: %3d (s: %3d) AR: %3d (s: %3d) FORNO: %04d (s: %04d) TP: %04d SV: %5.2f (s: %5.2f)",
		PrettySeconds(s.ElapsedSecs),
		s.BeanTemp, int(bean),
		s.AirTemp, int(air),
		s.FireTemp, int(fire),
		turningPointTemp,
		float64(s.ServoPosition), servo,
	)
}
