package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayName_Canonical(t *testing.T) {
	cases := map[string]int{
		"Lunes":     0,
		"Martes":    1,
		"Miércoles": 2,
		"Jueves":    3,
		"Viernes":   4,
		"Sábado":    5,
		"Domingo":   6,
	}
	for name, want := range cases {
		got, err := ParseDayName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)

		// round trip back to the canonical name
		back, err := DayName(got)
		require.NoError(t, err)
		assert.Equal(t, name, back)
	}
}

func TestParseDayName_AccentlessAndCase(t *testing.T) {
	for in, want := range map[string]int{
		"miercoles": 2,
		"sabado":    5,
		"LUNES":     0,
		" domingo ": 6,
	} {
		got, err := ParseDayName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseDayName_Rejects(t *testing.T) {
	for _, in := range []string{"", "Monday", "lune", "8", "hoy"} {
		_, err := ParseDayName(in)
		assert.ErrorIs(t, err, ErrUnknownDay, in)
	}
}

func TestParseHour(t *testing.T) {
	h, err := ParseHour(" 14 ")
	require.NoError(t, err)
	assert.Equal(t, 14, h)

	h, err = ParseHour("0")
	require.NoError(t, err)
	assert.Equal(t, 0, h)

	_, err = ParseHour("24")
	assert.ErrorIs(t, err, ErrInvalidHour)
	_, err = ParseHour("-1")
	assert.ErrorIs(t, err, ErrInvalidHour)
	_, err = ParseHour("tres")
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, 0, Weekday(time.Monday))
	assert.Equal(t, 5, Weekday(time.Saturday))
	assert.Equal(t, 6, Weekday(time.Sunday))
}

func TestSlotKeyStableWithinHour(t *testing.T) {
	loc, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	a := time.Date(2026, time.August, 26, 14, 0, 30, 0, loc)  // Wednesday
	b := time.Date(2026, time.August, 26, 14, 59, 0, 0, loc)
	c := time.Date(2026, time.August, 26, 15, 0, 0, 0, loc)

	assert.Equal(t, CurrentSlot(a).Key(), CurrentSlot(b).Key())
	assert.NotEqual(t, CurrentSlot(a).Key(), CurrentSlot(c).Key())

	slot := CurrentSlot(a)
	assert.Equal(t, 2, slot.Day) // Miércoles
	assert.Equal(t, 14, slot.Hour)
}
