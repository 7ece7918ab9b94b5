// Package sourceselect выбирает активный источник наблюдений: primary → secondary.
package sourceselect

import (
	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/source"
)

// Election — выбор активного источника наблюдений
type Election struct {
	primary   []source.ObservationSource
	secondary []source.ObservationSource
	active    source.ObservationSource
}

// NewElection создаёт выборщик из списков primary и secondary
func NewElection(primary, secondary []source.ObservationSource) *Election {
	return &Election{
		primary:   primary,
		secondary: secondary,
	}
}

// Select выбирает первый пригодный источник: сначала primary, затем secondary
func (e *Election) Select() source.ObservationSource {
	prev := e.active
	e.active = nil
	for _, s := range e.primary {
		if s.Status().IsUsable() {
			e.active = s
			break
		}
	}
	if e.active == nil {
		for _, s := range e.secondary {
			if s.Status().IsUsable() {
				e.active = s
				break
			}
		}
	}
	if e.active != prev && e.active != nil {
		logger.Info("source: active %s", e.active.Name())
	}
	return e.active
}

// Active возвращает текущий активный источник (после Select)
func (e *Election) Active() source.ObservationSource {
	return e.active
}

// Exhausted — все источники закончились; новых данных не будет
func (e *Election) Exhausted() bool {
	for _, list := range [][]source.ObservationSource{e.primary, e.secondary} {
		for _, s := range list {
			if s.Status() != source.StatusExhausted {
				return false
			}
		}
	}
	return true
}

// Next читает наблюдение из активного источника. Если источник стал непригоден,
// выбирается следующий. StatusIdle — данных сейчас нет; StatusExhausted — все
// источники закончились; StatusUnavailable — нет пригодного источника.
func (e *Election) Next() (source.Observation, source.Status) {
	for {
		active := e.Select()
		if active == nil {
			if e.Exhausted() {
				return source.Observation{}, source.StatusExhausted
			}
			return source.Observation{}, source.StatusUnavailable
		}
		obs, st := active.Next()
		if st.IsUsable() {
			return obs, st
		}
		logger.Info("source %s: %v", active.Name(), st)
	}
}

// Close закрывает все источники
func (e *Election) Close() {
	for _, list := range [][]source.ObservationSource{e.primary, e.secondary} {
		for _, s := range list {
			if err := s.Close(); err != nil {
				logger.Error("close %s: %v", s.Name(), err)
			}
		}
	}
}
