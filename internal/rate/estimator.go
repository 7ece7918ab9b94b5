// Package rate — оценка скорости изменения одномерного ряда (значение как
// функция времени) в предположении постоянной скорости. Наклон считается МНК по
// резервуарной выборке из всей истории наблюдений, поэтому при фиксированной
// памяти точность продолжает расти с увеличением охваченного интервала времени.
package rate

import (
	"fmt"
	"math"

	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/reservoir"
)

const (
	// RegressionStep — на сколько секунд сдвигается наблюдение, пришедшее раньше предыдущего
	RegressionStep = 1e-6

	// MinTimeVariance — порог Σ(x-x̄)² (с²), ниже которого разброс времени
	// недостаточен и подгонка пропускается
	MinTimeVariance = 1e-12

	// regressionWarnSeconds — регресс времени больше этого порога пишется в лог
	regressionWarnSeconds = 10.0
)

// point — одно удержанное наблюдение
type point struct {
	x Instant
	y float64
}

// Option настраивает Estimator при создании.
type Option func(*Estimator)

// WithRand задаёт источник случайности резервуара.
func WithRand(rng reservoir.Rand) Option {
	return func(e *Estimator) { e.rng = rng }
}

// WithNoiseFloor задаёт нижнюю границу оценки шума (та же единица, что и значения).
func WithNoiseFloor(floor float64) Option {
	return func(e *Estimator) {
		if floor > 0 {
			e.noiseFloor = floor
		}
	}
}

// Estimator — инкрементальная линейная регрессия по резервуару наблюдений.
// Не потокобезопасен: владелец сериализует доступ сам.
type Estimator struct {
	samples    *reservoir.Sampler[point]
	rng        reservoir.Rand
	noiseFloor float64

	started bool
	first   Instant // первый add(), с учётом сдвига
	last    Instant // последний add(), с учётом сдвига; не убывает

	// суммы только по удержанным наблюдениям
	xSum float64
	ySum float64

	slope     float64 // значение в секунду
	intercept float64 // оценка значения в момент first
	noise     float64 // СКО остатков
	slopeErr  float64 // стандартная ошибка наклона

	regressions    int
	lastRegression float64 // на сколько секунд время ушло назад в последний раз
	degenerate     int
	nonFinite      int
}

// New создаёт Estimator, удерживающий не более capacity наблюдений.
func New(capacity int, opts ...Option) *Estimator {
	e := &Estimator{}
	for _, o := range opts {
		o(e)
	}
	e.samples = reservoir.New[point](capacity, e.rng)
	return e
}

// Add добавляет наблюдение. Время должно не убывать; если оно всё же меньше
// последнего (например, клиент переставил часы), наблюдение сдвигается на
// last+RegressionStep, регресс учитывается в Regressions() и LastRegression(),
// и точка всё равно используется. Наблюдение с NaN или ±Inf во времени или
// значении отбрасывается и учитывается в NonFinite(): одна такая точка
// навсегда испортила бы суммы.
func (e *Estimator) Add(t Instant, value float64) {
	if !isFinite(float64(t)) || !isFinite(value) {
		e.nonFinite++
		return
	}
	if e.started && t.Before(e.last) {
		back := e.last.SecondsSince(t)
		e.regressions++
		e.lastRegression = back
		if back >= regressionWarnSeconds {
			logger.Warn("time regressed by %.3fs (%v -> %v)", back, float64(e.last), float64(t))
		}
		t = e.last.Add(RegressionStep)
	}
	if !e.started {
		e.first = t
		e.started = true
	}
	e.last = t

	full := e.samples.Full()
	evicted, replaced := e.samples.Offer(point{x: t, y: value})
	if replaced {
		e.xSum -= float64(evicted.x)
		e.ySum -= evicted.y
	}
	if !full || replaced {
		e.xSum += float64(t)
		e.ySum += value
	}

	if e.samples.Len() < 2 {
		return
	}
	e.fit()
}

// fit пересчитывает наклон, пересечение и шум по удержанным наблюдениям.
func (e *Estimator) fit() {
	pts := e.samples.Samples()
	n := float64(len(pts))
	xMean := e.xSum / n
	yMean := e.ySum / n

	var num, den float64
	for _, p := range pts {
		dx := float64(p.x) - xMean
		num += dx * (p.y - yMean)
		den += dx * dx
	}
	if den < MinTimeVariance || math.IsNaN(den) {
		e.degenerate++
		return
	}
	e.slope = num / den
	e.intercept = yMean - e.slope*(xMean-float64(e.first))

	var ssr float64
	for _, p := range pts {
		r := p.y - e.EstimateValue(p.x)
		ssr += r * r
	}
	e.noise = math.Max(math.Sqrt(ssr/n), e.noiseFloor)
	if n > 2 {
		floorSSR := e.noiseFloor * e.noiseFloor * n
		e.slopeErr = math.Sqrt(math.Max(ssr, floorSSR) / (n - 2) / den)
	}
}

// EstimateValue возвращает значение модели в момент t.
func (e *Estimator) EstimateValue(t Instant) float64 {
	if !e.started {
		panic("rate: EstimateValue called before any observation was added")
	}
	return e.intercept + e.slope*t.SecondsSince(e.first)
}

// Count — число удержанных наблюдений.
func (e *Estimator) Count() int {
	return e.samples.Len()
}

// Offered — сколько наблюдений добавлено за всё время (включая отброшенные резервуаром).
func (e *Estimator) Offered() int {
	return e.samples.Count()
}

// Slope — оценка скорости изменения значения в секунду. Требует Count() >= 2.
func (e *Estimator) Slope() float64 {
	if e.Count() < 2 {
		panic(fmt.Sprintf("rate: Slope requires at least 2 observations, have %d", e.Count()))
	}
	return e.slope
}

// Noise — СКО наблюдений относительно линии тренда (с учётом нижней границы).
func (e *Estimator) Noise() float64 {
	return e.noise
}

// FitsTrend проверяет, лежит ли наблюдение в пределах sigma шумов от тренда.
// Граница включается (<=): при нулевом шуме точка точно на тренде проходит.
// При Count() < 3 данных для суждения мало, и возвращается true.
func (e *Estimator) FitsTrend(t Instant, value float64, sigma float64) bool {
	if e.Count() < 3 {
		return true
	}
	deviation := math.Abs(value - e.EstimateValue(t))
	return deviation <= sigma*e.noise
}

// RateIntervalBound — приблизительная ± полоса вокруг Slope(): шум, делённый на
// интервал между первым и последним наблюдением за всю историю. Требует Count() > 2.
// Если все наблюдения пришли в один момент, полоса бесконечна.
func (e *Estimator) RateIntervalBound() float64 {
	if e.Count() <= 2 {
		panic(fmt.Sprintf("rate: RateIntervalBound requires more than 2 observations, have %d", e.Count()))
	}
	span := e.last.SecondsSince(e.first)
	if span <= 0 {
		return math.Inf(1)
	}
	return e.noise / span
}

// SlopeStdErr — стандартная ошибка наклона по удержанным наблюдениям. Требует Count() > 2.
func (e *Estimator) SlopeStdErr() float64 {
	if e.Count() <= 2 {
		panic(fmt.Sprintf("rate: SlopeStdErr requires more than 2 observations, have %d", e.Count()))
	}
	return e.slopeErr
}

// First — момент первого наблюдения.
func (e *Estimator) First() Instant {
	if !e.started {
		panic("rate: First called before any observation was added")
	}
	return e.first
}

// Last — момент последнего наблюдения (после возможного сдвига).
func (e *Estimator) Last() Instant {
	if !e.started {
		panic("rate: Last called before any observation was added")
	}
	return e.last
}

// Span — секунды между первым и последним наблюдением; 0, если наблюдений нет.
func (e *Estimator) Span() float64 {
	if !e.started {
		return 0
	}
	return e.last.SecondsSince(e.first)
}

// Regressions — сколько раз время наблюдения шло назад.
func (e *Estimator) Regressions() int {
	return e.regressions
}

// LastRegression — на сколько секунд время ушло назад при последнем регрессе; 0, если регрессов не было.
func (e *Estimator) LastRegression() float64 {
	return e.lastRegression
}

// NonFinite — сколько наблюдений отброшено из-за NaN или ±Inf.
func (e *Estimator) NonFinite() int {
	return e.nonFinite
}

// DegenerateFits — сколько подгонок пропущено из-за нулевого разброса времени.
func (e *Estimator) DegenerateFits() int {
	return e.degenerate
}

// Clear возвращает Estimator в состояние сразу после New.
func (e *Estimator) Clear() {
	e.samples.Clear()
	e.started = false
	e.first, e.last = 0, 0
	e.xSum, e.ySum = 0, 0
	e.slope, e.intercept, e.noise, e.slopeErr = 0, 0, 0, 0
	e.regressions, e.degenerate, e.nonFinite = 0, 0, 0
	e.lastRegression = 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
