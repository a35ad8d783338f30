package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownDay  = errors.New("unknown day name")
	ErrInvalidHour = errors.New("hour out of range")
	ErrNotNumeric  = errors.New("not a number")
	ErrInvalidDay  = errors.New("day index out of range")
)

// dayNames is the canonical Spanish weekday set, index 0 = Lunes.
var dayNames = [7]string{
	"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo",
}

// dayAliases accepts the accent-less spellings users actually type.
var dayAliases = map[string]int{
	"lunes":     0,
	"martes":    1,
	"miércoles": 2,
	"miercoles": 2,
	"jueves":    3,
	"viernes":   4,
	"sábado":    5,
	"sabado":    5,
	"domingo":   6,
}

// ParseDayName maps a Spanish weekday name to its 0..6 index (0 = Lunes).
// Matching is case-insensitive and tolerates missing accents.
func ParseDayName(s string) (int, error) {
	d, ok := dayAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDay, s)
	}
	return d, nil
}

// DayName returns the canonical Spanish name for a 0..6 day index.
func DayName(day int) (string, error) {
	if day < 0 || day > 6 {
		return "", fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	return dayNames[day], nil
}

// ParseHour parses a typed hour reply ("14") into 0..23.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidHour, h)
	}
	return h, nil
}

// Weekday converts a time.Weekday (Sunday=0) to this bot's 0=Lunes..6=Domingo.
func Weekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
