package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"

	"github.com/shiwa/skytrack/internal/logger"
)

// defaultSerialReadTimeout — сколько Next ждёт строку с порта
const defaultSerialReadTimeout = 2 * time.Second

// Serial — источник наблюдений с последовательного порта (по строке на наблюдение).
// EOF порта означает только отсутствие данных: неполная строка дочитывается позже.
type Serial struct {
	port    io.ReadCloser
	device  string
	baud    int
	timeout time.Duration
	rd      *bufio.Reader
	decode  Decoder
	queue   []Observation
	pending string
	status  Status
	closed  atomic.Bool
	badLine int
}

// NewSerial открывает порт device на скорости baud; строки разбирает dec.
func NewSerial(device string, baud int, readTimeout time.Duration, dec Decoder) (*Serial, error) {
	if baud == 0 {
		baud = 9600
	}
	if readTimeout <= 0 {
		readTimeout = defaultSerialReadTimeout
	}
	c := &serial.Config{Name: device, Baud: baud, ReadTimeout: readTimeout}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return newSerial(port, device, baud, readTimeout, dec), nil
}

func newSerial(port io.ReadCloser, device string, baud int, timeout time.Duration, dec Decoder) *Serial {
	return &Serial{
		port:    port,
		device:  device,
		baud:    baud,
		timeout: timeout,
		rd:      bufio.NewReader(port),
		decode:  dec,
		status:  StatusIdle,
	}
}

// Name возвращает имя источника
func (s *Serial) Name() string {
	return fmt.Sprintf("serial:%s@%d", s.device, s.baud)
}

// Kind возвращает тип источника
func (s *Serial) Kind() string { return "serial" }

// Status возвращает состояние
func (s *Serial) Status() Status {
	if s.closed.Load() {
		return StatusExhausted
	}
	return s.status
}

// Next читает строки с порта до корректного наблюдения или до истечения таймаута.
func (s *Serial) Next() (Observation, Status) {
	if st := s.Status(); st == StatusUnavailable || st == StatusExhausted {
		return Observation{}, st
	}
	if obs, ok := s.pop(); ok {
		return obs, StatusOK
	}
	deadline := time.Now().Add(s.timeout)
	for time.Now().Before(deadline) {
		chunk, err := s.rd.ReadString('\n')
		s.pending += chunk
		if err != nil {
			if errors.Is(err, io.EOF) {
				continue
			}
			if s.closed.Load() {
				return Observation{}, StatusExhausted
			}
			logger.Error("%s: read: %v", s.Name(), err)
			s.status = StatusUnavailable
			return Observation{}, s.status
		}
		line := s.pending
		s.pending = ""
		batch, perr := s.decode(line)
		if perr == nil {
			s.queue = append(s.queue, batch...)
			if obs, ok := s.pop(); ok {
				return obs, StatusOK
			}
			continue
		}
		if !errors.Is(perr, ErrSkip) {
			s.badLine++
			logger.Info("%s: %v", s.Name(), perr)
		}
	}
	s.status = StatusIdle
	return Observation{}, StatusIdle
}

func (s *Serial) pop() (Observation, bool) {
	if len(s.queue) == 0 {
		return Observation{}, false
	}
	obs := s.queue[0]
	s.queue = s.queue[1:]
	s.status = StatusOK
	return obs, true
}

// Close закрывает порт
func (s *Serial) Close() error {
	s.closed.Store(true)
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
