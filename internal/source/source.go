// Package source — источники наблюдений (время, значение) для оценщиков скорости.
package source

import "github.com/shiwa/skytrack/internal/rate"

// Observation — одно наблюдение. Series пусто — величина по умолчанию.
type Observation struct {
	Series string
	Time   rate.Instant
	Value  float64
	// Stamped — время пришло из строки, а не с локальных часов
	Stamped bool
}

// ObservationSource — поток наблюдений (stdin, файл, последовательный порт)
type ObservationSource interface {
	// Name возвращает имя источника для логов
	Name() string
	// Kind возвращает тип: stdin, file, serial
	Kind() string
	// Status возвращает состояние без чтения данных
	Status() Status
	// Next читает следующее наблюдение; оно валидно только при StatusOK
	Next() (Observation, Status)
	// Close освобождает ресурсы
	Close() error
}

// Status — состояние источника
type Status int

const (
	StatusUnavailable Status = iota // не открыт или ошибка чтения
	StatusIdle                      // открыт, но данных пока нет
	StatusOK                        // наблюдение прочитано
	StatusExhausted                 // поток закончился (EOF файла)
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusIdle:
		return "idle"
	case StatusOK:
		return "ok"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// IsUsable возвращает true, если из источника ещё можно читать
func (s Status) IsUsable() bool {
	return s == StatusIdle || s == StatusOK
}
