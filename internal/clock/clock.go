// Package clock — монотонные часы для отметок времени наблюдений.
package clock

import "github.com/shiwa/skytrack/internal/rate"

// Clock возвращает текущий момент в секундах от точки отсчёта.
type Clock interface {
	Now() rate.Instant
}

// Func адаптирует функцию к Clock (удобно в тестах).
type Func func() rate.Instant

// Now вызывает f.
func (f Func) Now() rate.Instant {
	return f()
}

// Monotonic — монотонные часы; точка отсчёта — момент создания, чтобы
// значения оставались малыми и не теряли точность float64.
type Monotonic struct {
	origin int64 // нс
}

// NewMonotonic создаёт часы с нулём в текущий момент.
func NewMonotonic() *Monotonic {
	return &Monotonic{origin: nowNs()}
}

// Now возвращает секунды с момента создания.
func (m *Monotonic) Now() rate.Instant {
	return rate.Instant(float64(nowNs()-m.origin) / 1e9)
}
