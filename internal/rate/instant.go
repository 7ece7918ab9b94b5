package rate

import "time"

// Instant — момент времени в секундах от произвольной фиксированной точки
// отсчёта (монотонные часы). Все разности времени в пакете считаются только
// через SecondsSince.
type Instant float64

// SecondsSince возвращает число секунд от ref до i (отрицательное, если i раньше ref).
func (i Instant) SecondsSince(ref Instant) float64 {
	return float64(i) - float64(ref)
}

// Add сдвигает момент на d секунд.
func (i Instant) Add(seconds float64) Instant {
	return i + Instant(seconds)
}

// Before сообщает, что i раньше j.
func (i Instant) Before(j Instant) bool {
	return i < j
}

// FromDuration — момент через d после точки отсчёта.
func FromDuration(d time.Duration) Instant {
	return Instant(d.Seconds())
}

// FromTime переводит time.Time в Instant относительно epoch.
// Используйте epoch рядом с началом наблюдений, чтобы не терять точность float64.
func FromTime(t, epoch time.Time) Instant {
	return FromDuration(t.Sub(epoch))
}
