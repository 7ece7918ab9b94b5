package source

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shiwa/skytrack/internal/rate"
)

// ErrSkip — строка пустая или комментарий
var ErrSkip = errors.New("skip line")

// ErrNonFinite — число разобралось, но это NaN или ±Inf
var ErrNonFinite = errors.New("non-finite number")

// parseFinite — strconv.ParseFloat без nan, inf и infinity
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNonFinite
	}
	return f, nil
}

// ParseLine разбирает строку наблюдения. Поля разделяются запятой, ';' или пробелами:
//
//	value
//	series,value
//	time,value
//	time,series,value
//
// time — секунды монотонных часов. Без time вызывается stamp.
// Строки, начинающиеся с '#', и пустые строки возвращают ErrSkip.
func ParseLine(line string, stamp func() rate.Instant) (Observation, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	var obs Observation
	var valueStr string
	switch len(fields) {
	case 0:
		return obs, ErrSkip
	case 1:
		valueStr = fields[0]
	case 2:
		t, err := parseFinite(fields[0])
		switch {
		case err == nil:
			obs.Time, obs.Stamped = rate.Instant(t), true
		case errors.Is(err, ErrNonFinite):
			return obs, fmt.Errorf("bad time %q: %w", fields[0], err)
		default:
			obs.Series = fields[0]
		}
		valueStr = fields[1]
	case 3:
		t, err := parseFinite(fields[0])
		if err != nil {
			return obs, fmt.Errorf("bad time %q: %w", fields[0], err)
		}
		obs.Time, obs.Stamped = rate.Instant(t), true
		obs.Series = fields[1]
		valueStr = fields[2]
	default:
		return obs, fmt.Errorf("expected 1-3 fields, got %d", len(fields))
	}
	v, err := parseFinite(valueStr)
	if err != nil {
		return obs, fmt.Errorf("bad value %q: %w", valueStr, err)
	}
	obs.Value = v
	if !obs.Stamped && stamp != nil {
		obs.Time = stamp()
	}
	return obs, nil
}
