package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/shiwa/skytrack/internal/clock"
	"github.com/shiwa/skytrack/internal/logger"
)

// Reader — источник наблюдений из текстового потока (файл, stdin).
// EOF означает конец данных.
type Reader struct {
	name    string
	kind    string
	rd      *bufio.Reader
	closer  io.Closer
	decode  Decoder
	queue   []Observation
	status  Status
	closed  atomic.Bool // Close может прийти из другой горутины
	lineNo  int
	badLine int
}

// NewReader создаёт источник строк ParseLine поверх r. Если r реализует io.Closer, Close закрывает его.
func NewReader(name, kind string, r io.Reader, clk clock.Clock) *Reader {
	return NewDecodingReader(name, kind, r, PlainDecoder(clk))
}

// NewDecodingReader — как NewReader, но строки разбирает dec
func NewDecodingReader(name, kind string, r io.Reader, dec Decoder) *Reader {
	src := &Reader{
		name:   name,
		kind:   kind,
		rd:     bufio.NewReader(r),
		decode: dec,
		status: StatusIdle,
	}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// OpenFile открывает файл наблюдений
func OpenFile(path string, dec Decoder) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewDecodingReader("file:"+path, "file", f, dec), nil
}

// Name возвращает имя источника
func (r *Reader) Name() string { return r.name }

// Kind возвращает тип источника
func (r *Reader) Kind() string { return r.kind }

// Status возвращает состояние
func (r *Reader) Status() Status {
	if r.closed.Load() && r.status.IsUsable() {
		return StatusExhausted
	}
	return r.status
}

// BadLines — сколько строк не удалось разобрать
func (r *Reader) BadLines() int { return r.badLine }

// Next читает строки до первого корректного наблюдения
func (r *Reader) Next() (Observation, Status) {
	if st := r.Status(); !st.IsUsable() {
		return Observation{}, st
	}
	if obs, ok := r.pop(); ok {
		return obs, StatusOK
	}
	for {
		line, err := r.rd.ReadString('\n')
		if line != "" {
			r.lineNo++
			batch, perr := r.decode(line)
			if perr == nil {
				r.queue = append(r.queue, batch...)
				if obs, ok := r.pop(); ok {
					return obs, StatusOK
				}
				continue
			}
			if !errors.Is(perr, ErrSkip) {
				r.badLine++
				logger.Info("%s:%d: %v", r.name, r.lineNo, perr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || r.closed.Load() {
				r.status = StatusExhausted
			} else {
				logger.Error("%s: read: %v", r.name, err)
				r.status = StatusUnavailable
			}
			return Observation{}, r.status
		}
	}
}

func (r *Reader) pop() (Observation, bool) {
	if len(r.queue) == 0 {
		return Observation{}, false
	}
	obs := r.queue[0]
	r.queue = r.queue[1:]
	r.status = StatusOK
	return obs, true
}

// Close закрывает нижележащий поток
func (r *Reader) Close() error {
	r.closed.Store(true)
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
