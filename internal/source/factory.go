package source

import (
	"fmt"
	"os"

	"github.com/shiwa/skytrack/internal/clock"
	"github.com/shiwa/skytrack/internal/config"
)

// NewFromConfig создаёт источник из конфига (sources.primary / sources.secondary)
func NewFromConfig(c config.SourceConfig, clk clock.Clock) (ObservationSource, error) {
	if c.Disable {
		return nil, fmt.Errorf("source disabled")
	}
	dec, ok := NewDecoder(c.Format, clk)
	if !ok {
		return nil, fmt.Errorf("unknown format: %s", c.Format)
	}
	switch c.Kind {
	case "", "stdin":
		return NewDecodingReader("stdin", "stdin", os.Stdin, dec), nil
	case "file":
		if c.Path == "" {
			return nil, fmt.Errorf("file: path required")
		}
		return OpenFile(c.Path, dec)
	case "serial":
		if c.Device == "" {
			return nil, fmt.Errorf("serial: device required")
		}
		timeout := config.ParseDuration(c.ReadTimeout, defaultSerialReadTimeout)
		return NewSerial(c.Device, c.Baud, timeout, dec)
	default:
		return nil, fmt.Errorf("unknown source kind: %s", c.Kind)
	}
}

// Open создаёт источники списком; ошибочные пропускаются с записью в errs.
func Open(cfgs []config.SourceConfig, clk clock.Clock) (srcs []ObservationSource, errs []error) {
	for _, c := range cfgs {
		if c.Disable {
			continue
		}
		s, err := NewFromConfig(c, clk)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Kind, err))
			continue
		}
		srcs = append(srcs, s)
	}
	return srcs, errs
}
