package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shiwa/skytrack/internal/rate"
)

// Величины, которые даёт NMEA RMC
const (
	SeriesLat = "lat"
	SeriesLon = "lon"
)

// rmcFix — разобранное предложение RMC
type rmcFix struct {
	t        time.Time
	lat, lon float64 // градусы, юг и запад отрицательны
}

// NMEADecoder разбирает $GPRMC/$GNRMC в наблюдения lat и lon (градусы).
// Время берётся из предложения; нулём отсчёта служит первая фиксация.
// Предложения без фиксации (статус V) и прочие типы пропускаются.
func NMEADecoder() Decoder {
	var epoch time.Time
	return func(line string) ([]Observation, error) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$GP") && !strings.HasPrefix(line, "$GN") {
			return nil, ErrSkip
		}
		if len(line) < 6 || line[3:6] != "RMC" {
			return nil, ErrSkip
		}
		fix, err := parseRMC(line)
		if err != nil {
			return nil, err
		}
		if epoch.IsZero() {
			epoch = fix.t
		}
		at := rate.FromTime(fix.t, epoch)
		return []Observation{
			{Series: SeriesLat, Time: at, Value: fix.lat, Stamped: true},
			{Series: SeriesLon, Time: at, Value: fix.lon, Stamped: true},
		}, nil
	}
}

// parseRMC: поле 1 = hhmmss.ss, 2 = A/V, 3-4 = широта ddmm.mmmm,N/S,
// 5-6 = долгота dddmm.mmmm,E/W, 9 = ddmmyy.
func parseRMC(line string) (rmcFix, error) {
	var fix rmcFix
	if i := strings.IndexByte(line, '*'); i >= 0 {
		if err := checkNMEASum(line[1:i], line[i+1:]); err != nil {
			return fix, err
		}
		line = line[:i]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 10 {
		return fix, fmt.Errorf("rmc: %d fields", len(parts))
	}
	if parts[2] != "A" {
		return fix, ErrSkip
	}
	t, err := parseRMCTime(parts[1], parts[9])
	if err != nil {
		return fix, err
	}
	lat, err := parseCoord(parts[3], parts[4], 2, "N", "S")
	if err != nil {
		return fix, fmt.Errorf("rmc lat: %w", err)
	}
	lon, err := parseCoord(parts[5], parts[6], 3, "E", "W")
	if err != nil {
		return fix, fmt.Errorf("rmc lon: %w", err)
	}
	fix.t, fix.lat, fix.lon = t, lat, lon
	return fix, nil
}

func parseRMCTime(timeStr, dateStr string) (time.Time, error) {
	if len(timeStr) < 6 || len(dateStr) < 6 {
		return time.Time{}, fmt.Errorf("rmc: bad time %q date %q", timeStr, dateStr)
	}
	hh, err1 := strconv.Atoi(timeStr[0:2])
	mm, err2 := strconv.Atoi(timeStr[2:4])
	ss, err3 := strconv.Atoi(timeStr[4:6])
	day, err4 := strconv.Atoi(dateStr[0:2])
	month, err5 := strconv.Atoi(dateStr[2:4])
	year, err6 := strconv.Atoi(dateStr[4:6])
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return time.Time{}, fmt.Errorf("rmc: bad time %q date %q", timeStr, dateStr)
		}
	}
	nsec := 0
	if len(timeStr) >= 8 && timeStr[6] == '.' {
		fracStr := timeStr[7:]
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.Atoi(fracStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("rmc: bad time %q", timeStr)
		}
		// дробная часть (1-9 цифр) в наносекунды
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	if year < 80 {
		year += 2000
	} else {
		year += 1900
	}
	return time.Date(year, time.Month(month), day, hh, mm, ss, nsec, time.UTC), nil
}

// parseCoord переводит ddmm.mmmm (degDigits цифр градусов) в градусы
func parseCoord(v, hemi string, degDigits int, pos, neg string) (float64, error) {
	if len(v) < degDigits+2 {
		return 0, fmt.Errorf("bad coordinate %q", v)
	}
	deg, err := strconv.Atoi(v[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q", v)
	}
	minutes, err := parseFinite(v[degDigits:])
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("bad coordinate %q", v)
	}
	d := float64(deg) + minutes/60
	switch hemi {
	case pos:
		return d, nil
	case neg:
		return -d, nil
	default:
		return 0, fmt.Errorf("bad hemisphere %q", hemi)
	}
}

// checkNMEASum сверяет XOR байтов между '$' и '*' с двумя hex-цифрами после '*'
func checkNMEASum(body, sum string) error {
	sum = strings.TrimSpace(sum)
	want, err := strconv.ParseUint(sum, 16, 8)
	if err != nil || len(sum) != 2 {
		return fmt.Errorf("nmea: bad checksum %q", sum)
	}
	var got byte
	for i := 0; i < len(body); i++ {
		got ^= body[i]
	}
	if got != byte(want) {
		return fmt.Errorf("nmea: checksum %02X, want %02X", got, want)
	}
	return nil
}
