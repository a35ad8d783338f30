package domain

import (
	"fmt"
	"time"
)

// Slot identifies one scheduled delivery opportunity: an ISO week plus a
// weekday (0=Lunes) and an hour. Two ticks inside the same wall-clock hour
// of the same week map to the same Slot.
type Slot struct {
	Year int // ISO week-numbering year
	Week int // ISO week 1..53
	Day  int // 0=Lunes .. 6=Domingo
	Hour int // 0..23
}

// CurrentSlot computes the slot for t, which must already be in the
// scheduling timezone.
func CurrentSlot(t time.Time) Slot {
	year, week := t.ISOWeek()
	return Slot{
		Year: year,
		Week: week,
		Day:  Weekday(t.Weekday()),
		Hour: t.Hour(),
	}
}

// Key is the stable string form persisted on User.LastSlotFired.
func (s Slot) Key() string {
	return fmt.Sprintf("%04d-W%02d-D%d-H%02d", s.Year, s.Week, s.Day, s.Hour)
}
