// Package tracker ведёт по одному оценщику скорости на каждую величину и
// отсеивает выбросы по текущему тренду.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shiwa/skytrack/internal/config"
	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/rate"
	"github.com/shiwa/skytrack/internal/reservoir"
)

var (
	// ErrUnknownSeries — наблюдение для величины, которой нет в конфиге
	ErrUnknownSeries = errors.New("unknown series")
	// ErrNonFinite — время или значение NaN/±Inf
	ErrNonFinite = errors.New("non-finite observation")
)

// DefaultRestartAfter — RestartAfter при нулевом значении в Config
const DefaultRestartAfter = 3

// Verdict — что стало с наблюдением
type Verdict int

const (
	VerdictAccepted  Verdict = iota // прошло фильтр и добавлено
	VerdictRejected                 // выброс, не добавлено
	VerdictRestarted                // тренд сброшен, наблюдение стало первым в новом
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	case VerdictRestarted:
		return "restarted"
	default:
		return "unknown"
	}
}

// Config — параметры трекера
type Config struct {
	Capacity     int
	Sigma        float64
	RestartAfter int // 0 — DefaultRestartAfter; < 0 — никогда не сбрасывать тренд
	Seed         uint64
	NoiseFloor   float64
	Series       []string
}

// FromConfig берёт параметры из секций estimator и series
func FromConfig(c *config.Config) Config {
	return Config{
		Capacity:     c.Estimator.Capacity,
		Sigma:        c.Estimator.Sigma,
		RestartAfter: c.Estimator.RestartAfter,
		Seed:         c.Estimator.Seed,
		NoiseFloor:   c.Estimator.NoiseFloor,
		Series:       c.Series,
	}
}

// Report — снимок состояния одной величины
type Report struct {
	Series      string
	Count       int     // удержано в резервуаре
	Offered     int     // добавлено за всё время
	Slope       float64 // при Count >= 2
	Bound       float64 // при Ready
	StdErr      float64 // при Ready
	Noise       float64
	Span        float64 // секунды между первым и последним наблюдением
	Regressions int
	Rejected    int // всего отброшено выбросов
	NonFinite   int // отброшено из-за NaN/±Inf
	Restarts    int
	Ready       bool
}

type series struct {
	est      *rate.Estimator
	rejected int
	streak   int
	restarts int
}

// Tracker потокобезопасен.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	order  []string
	series map[string]*series
}

// New создаёт трекер. Каждая величина получает свой поток PCG, зависящий от Seed.
func New(cfg Config) (*Tracker, error) {
	if len(cfg.Series) == 0 {
		return nil, fmt.Errorf("tracker: no series")
	}
	if cfg.Capacity < 2 {
		return nil, fmt.Errorf("tracker: capacity must be at least 2, got %d", cfg.Capacity)
	}
	if cfg.Sigma <= 0 {
		return nil, fmt.Errorf("tracker: sigma must be positive, got %v", cfg.Sigma)
	}
	if cfg.RestartAfter == 0 {
		cfg.RestartAfter = DefaultRestartAfter
	}
	t := &Tracker{
		cfg:    cfg,
		order:  append([]string(nil), cfg.Series...),
		series: make(map[string]*series, len(cfg.Series)),
	}
	for i, name := range cfg.Series {
		if _, dup := t.series[name]; dup {
			return nil, fmt.Errorf("tracker: duplicate series %q", name)
		}
		rng := reservoir.NewRand(cfg.Seed + uint64(i))
		t.series[name] = &series{
			est: rate.New(cfg.Capacity, rate.WithRand(rng), rate.WithNoiseFloor(cfg.NoiseFloor)),
		}
	}
	return t, nil
}

// Observe пропускает наблюдение через фильтр выбросов. Пустое имя — первая величина.
// NaN или ±Inf отклоняются с ErrNonFinite и не влияют на серию отказов.
func (t *Tracker) Observe(name string, at rate.Instant, value float64) (Verdict, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(name)
	if err != nil {
		return VerdictRejected, err
	}
	if math.IsNaN(float64(at)) || math.IsInf(float64(at), 0) || math.IsNaN(value) || math.IsInf(value, 0) {
		// оценщик отбросит точку и учтёт её в NonFinite
		s.est.Add(at, value)
		return VerdictRejected, fmt.Errorf("%w: %s t=%v value=%v", ErrNonFinite, t.nameOf(name), float64(at), value)
	}
	if s.est.FitsTrend(at, value, t.cfg.Sigma) {
		s.streak = 0
		s.est.Add(at, value)
		return VerdictAccepted, nil
	}
	s.rejected++
	s.streak++
	if t.cfg.RestartAfter >= 0 && s.streak >= t.cfg.RestartAfter {
		logger.Warn("%s: %d outliers in a row, restarting trend", t.nameOf(name), s.streak)
		s.est.Clear()
		s.est.Add(at, value)
		s.streak = 0
		s.restarts++
		return VerdictRestarted, nil
	}
	return VerdictRejected, nil
}

// Snapshot возвращает состояние величины
func (t *Tracker) Snapshot(name string) (Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(name)
	if err != nil {
		return Report{}, err
	}
	return report(t.nameOf(name), s), nil
}

// Snapshots — состояния всех величин в порядке конфига
func (t *Tracker) Snapshots() []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Report, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, report(name, t.series[name]))
	}
	return out
}

// Names — величины, отсортированные по имени
func (t *Tracker) Names() []string {
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	return names
}

// Reset сбрасывает одну величину
func (t *Tracker) Reset(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(name)
	if err != nil {
		return err
	}
	s.est.Clear()
	s.rejected, s.streak, s.restarts = 0, 0, 0
	return nil
}

// ResetAll сбрасывает все величины
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.series {
		s.est.Clear()
		s.rejected, s.streak, s.restarts = 0, 0, 0
	}
}

func (t *Tracker) nameOf(name string) string {
	if name == "" {
		return t.order[0]
	}
	return name
}

func (t *Tracker) lookup(name string) (*series, error) {
	s, ok := t.series[t.nameOf(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return s, nil
}

func report(name string, s *series) Report {
	r := Report{
		Series:      name,
		Count:       s.est.Count(),
		Offered:     s.est.Offered(),
		Noise:       s.est.Noise(),
		Span:        s.est.Span(),
		Regressions: s.est.Regressions(),
		Rejected:    s.rejected,
		NonFinite:   s.est.NonFinite(),
		Restarts:    s.restarts,
	}
	if r.Count >= 2 {
		r.Slope = s.est.Slope()
	}
	if r.Count > 2 {
		r.Ready = true
		r.Bound = s.est.RateIntervalBound()
		r.StdErr = s.est.SlopeStdErr()
	}
	return r
}
