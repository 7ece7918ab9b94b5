package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — конфигурация rate-track
type Config struct {
	Estimator EstimatorConfig `yaml:"estimator" config:"estimator"`
	// Series — имена отслеживаемых величин (например, ra, dec); первая — по умолчанию
	// для наблюдений без имени
	Series  []string      `yaml:"series" config:"series"`
	Sources SourcesConfig `yaml:"sources" config:"sources"`
	Report  ReportConfig  `yaml:"report" config:"report"`
}

// EstimatorConfig — параметры оценщика скорости и фильтра выбросов
type EstimatorConfig struct {
	Capacity     int     `yaml:"capacity" config:"capacity"`           // сколько наблюдений удерживается в резервуаре
	Seed         uint64  `yaml:"seed" config:"seed"`                   // сид генератора резервуара
	Sigma        float64 `yaml:"sigma" config:"sigma"`                 // порог FitsTrend в единицах шума
	RestartAfter int     `yaml:"restart_after" config:"restart_after"` // после стольких отказов подряд тренд начинается заново; < 0 — никогда
	NoiseFloor   float64 `yaml:"noise_floor" config:"noise_floor"`     // нижняя граница шума
}

// SourcesConfig — источники наблюдений: сначала primary, при недоступности — secondary
type SourcesConfig struct {
	Primary   []SourceConfig `yaml:"primary" config:"primary"`
	Secondary []SourceConfig `yaml:"secondary" config:"secondary"`
	// PollInterval — пауза, когда ни один источник не даёт данных
	PollInterval string `yaml:"poll_interval" config:"poll_interval"`
}

// SourceConfig — один источник наблюдений (kind: stdin, file, serial;
// format: plain — строки time,series,value; nmea — RMC, величины lat и lon)
type SourceConfig struct {
	Kind    string `yaml:"kind" config:"kind"`
	Format  string `yaml:"format" config:"format"`
	Disable bool   `yaml:"disable" config:"disable"`
	// file
	Path string `yaml:"path" config:"path"`
	// serial
	Device      string `yaml:"device" config:"device"`
	Baud        int    `yaml:"baud" config:"baud"`
	ReadTimeout string `yaml:"read_timeout" config:"read_timeout"`
}

// ReportConfig — периодический вывод оценок в лог
type ReportConfig struct {
	Interval string `yaml:"interval" config:"interval"`
}

// Default возвращает конфиг по умолчанию
func Default() *Config {
	return &Config{
		Estimator: EstimatorConfig{
			Capacity:     100,
			Seed:         42,
			Sigma:        10,
			RestartAfter: 3,
		},
		Series: []string{"value"},
		Sources: SourcesConfig{
			Primary:      []SourceConfig{{Kind: "stdin"}},
			PollInterval: "100ms",
		},
		Report: ReportConfig{
			Interval: "5s",
		},
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, подставляет умолчания и проверяет результат
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Normalize подставляет умолчания и проверяет конфиг (для конфигов, собранных не через Parse)
func (c *Config) Normalize() error {
	applyDefaults(c)
	return c.Validate()
}

// ErrInvalid — общая причина ошибок Validate
var ErrInvalid = errors.New("invalid config")

// Validate проверяет значения после подстановки умолчаний
func (c *Config) Validate() error {
	if c.Estimator.Capacity < 2 {
		return fmt.Errorf("%w: estimator.capacity must be at least 2, got %d", ErrInvalid, c.Estimator.Capacity)
	}
	if c.Estimator.Sigma <= 0 {
		return fmt.Errorf("%w: estimator.sigma must be positive, got %v", ErrInvalid, c.Estimator.Sigma)
	}
	if c.Estimator.NoiseFloor < 0 {
		return fmt.Errorf("%w: estimator.noise_floor must be non-negative, got %v", ErrInvalid, c.Estimator.NoiseFloor)
	}
	seen := make(map[string]bool, len(c.Series))
	for _, s := range c.Series {
		if s == "" {
			return fmt.Errorf("%w: empty series name", ErrInvalid)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate series %q", ErrInvalid, s)
		}
		seen[s] = true
	}
	for _, s := range append(append([]SourceConfig(nil), c.Sources.Primary...), c.Sources.Secondary...) {
		switch s.Kind {
		case "stdin":
		case "file":
			if s.Path == "" {
				return fmt.Errorf("%w: file source needs path", ErrInvalid)
			}
		case "serial":
			if s.Device == "" {
				return fmt.Errorf("%w: serial source needs device", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, s.Kind)
		}
		switch s.Format {
		case "", "plain", "nmea":
		default:
			return fmt.Errorf("%w: unknown source format %q", ErrInvalid, s.Format)
		}
	}
	return nil
}

// ReportInterval — интервал отчёта; пусто или ошибка — 5 s
func (c *Config) ReportInterval() time.Duration {
	return ParseDuration(c.Report.Interval, 5*time.Second)
}

// PollInterval — пауза при отсутствии данных; пусто или ошибка — 100 ms
func (c *Config) PollInterval() time.Duration {
	return ParseDuration(c.Sources.PollInterval, 100*time.Millisecond)
}

// ParseDuration разбирает длительность; пустая строка, ошибка или значение <= 0 — defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Estimator.Capacity == 0 {
		c.Estimator.Capacity = d.Estimator.Capacity
	}
	if c.Estimator.Seed == 0 {
		c.Estimator.Seed = d.Estimator.Seed
	}
	if c.Estimator.Sigma == 0 {
		c.Estimator.Sigma = d.Estimator.Sigma
	}
	if c.Estimator.RestartAfter == 0 {
		c.Estimator.RestartAfter = d.Estimator.RestartAfter
	}
	if len(c.Series) == 0 {
		c.Series = d.Series
	}
	if len(c.Sources.Primary) == 0 && len(c.Sources.Secondary) == 0 {
		c.Sources.Primary = d.Sources.Primary
	}
	if c.Sources.PollInterval == "" {
		c.Sources.PollInterval = d.Sources.PollInterval
	}
	if c.Report.Interval == "" {
		c.Report.Interval = d.Report.Interval
	}
	for i := range c.Sources.Primary {
		defaultSerial(&c.Sources.Primary[i])
	}
	for i := range c.Sources.Secondary {
		defaultSerial(&c.Sources.Secondary[i])
	}
}

func defaultSerial(s *SourceConfig) {
	if s.Kind != "serial" {
		return
	}
	if s.Baud == 0 {
		s.Baud = 9600
	}
	if s.ReadTimeout == "" {
		s.ReadTimeout = "2s"
	}
}
