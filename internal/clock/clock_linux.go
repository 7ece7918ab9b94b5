//go:build linux

package clock

import (
	"golang.org/x/sys/unix"
)

// nowNs читает CLOCK_MONOTONIC: не зависит от перестановки системного времени.
func nowNs() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackNs()
	}
	return ts.Nano()
}

// Resolution возвращает разрешение CLOCK_MONOTONIC в наносекундах (clock_getres).
func Resolution() int64 {
	var ts unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano()
}

// GranularityNs измеряет минимальный ненулевой шаг часов за несколько чтений подряд.
func GranularityNs() int64 {
	const rounds = 20
	var minDt int64 = 1e9
	for i := 0; i < rounds; i++ {
		var t1, t2 unix.Timespec
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &t1)
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &t2)
		dt := t2.Nano() - t1.Nano()
		if dt > 0 && dt < minDt {
			minDt = dt
		}
	}
	if minDt == 1e9 {
		return 0
	}
	return minDt
}
