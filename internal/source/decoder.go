package source

import (
	"github.com/shiwa/skytrack/internal/clock"
)

// Decoder превращает одну строку потока в наблюдения (ноль, одно или несколько).
// ErrSkip — строка не несёт наблюдений и не считается ошибкой.
type Decoder func(line string) ([]Observation, error)

// PlainDecoder разбирает строки ParseLine; строки без времени получают clk.Now().
func PlainDecoder(clk clock.Clock) Decoder {
	return func(line string) ([]Observation, error) {
		obs, err := ParseLine(line, clk.Now)
		if err != nil {
			return nil, err
		}
		return []Observation{obs}, nil
	}
}

// NewDecoder выбирает декодер по формату: "" или plain — ParseLine, nmea — NMEA RMC.
func NewDecoder(format string, clk clock.Clock) (Decoder, bool) {
	switch format {
	case "", "plain":
		return PlainDecoder(clk), true
	case "nmea":
		return NMEADecoder(), true
	default:
		return nil, false
	}
}
