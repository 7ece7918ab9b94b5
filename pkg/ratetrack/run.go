// Package ratetrack предоставляет цикл оценки скорости для встраивания в другие программы:
// чтение наблюдений из источников, фильтр выбросов, периодический отчёт.
package ratetrack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shiwa/skytrack/internal/clock"
	"github.com/shiwa/skytrack/internal/config"
	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/source"
	"github.com/shiwa/skytrack/internal/sourceselect"
	"github.com/shiwa/skytrack/internal/tracker"
)

// ErrNoSources — ни один источник из конфига не открылся
var ErrNoSources = errors.New("no usable observation sources")

// Config — конфигурация rate-track (секции estimator, series, sources, report)
type Config = config.Config

// Report — снимок одной величины
type Report = tracker.Report

// DefaultConfig возвращает конфиг по умолчанию
func DefaultConfig() *Config {
	return config.Default()
}

// closeWait — сколько Run после отмены ждёт, пока чтение остановится само.
// Дальше источники закрываются из Run, чтобы прервать блокирующее чтение (stdin).
var closeWait = 2 * time.Second

// Sink получает снимки всех величин: по таймеру отчёта и один раз в конце
type Sink func([]tracker.Report)

// Stats — итог работы Run
type Stats struct {
	Accepted  int
	Rejected  int
	Restarted int
	Unknown   int // наблюдения для величин не из конфига
	Invalid   int // NaN или ±Inf
}

// RunDaemon открывает источники из cfg.Sources и запускает Run до отмены ctx
// или конца всех источников. Отчёты пишутся в лог.
func RunDaemon(ctx context.Context, cfg *config.Config, quiet bool) error {
	return RunDaemonWithSink(ctx, cfg, quiet, LogReports)
}

// RunDaemonWithSink — как RunDaemon, но отчёты уходят в sink (например, в publisher Beat).
func RunDaemonWithSink(ctx context.Context, cfg *config.Config, quiet bool, sink Sink) error {
	if cfg == nil {
		return fmt.Errorf("ratetrack: nil config")
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	logger.Quiet = quiet
	clk := clock.NewMonotonic()

	primary, errs := source.Open(cfg.Sources.Primary, clk)
	for _, err := range errs {
		logger.Error("primary %v", err)
	}
	secondary, errs := source.Open(cfg.Sources.Secondary, clk)
	for _, err := range errs {
		logger.Error("secondary %v", err)
	}
	if len(primary) == 0 && len(secondary) == 0 {
		return ErrNoSources
	}
	logger.Info("ratetrack: primary=%d secondary=%d series=%s capacity=%d sigma=%v",
		len(primary), len(secondary), strings.Join(cfg.Series, ","), cfg.Estimator.Capacity, cfg.Estimator.Sigma)

	_, err := Run(ctx, cfg, primary, secondary, sink)
	return err
}

// Run читает наблюдения через выбор источника primary → secondary и передаёт их трекеру.
// Источники закрываются, когда чтение прекращается. Перед возвратом sink получает
// последний отчёт. Возвращает nil, когда все источники закончились, и ctx.Err() при отмене.
func Run(ctx context.Context, cfg *config.Config, primary, secondary []source.ObservationSource, sink Sink) (Stats, error) {
	var stats Stats
	tr, err := tracker.New(tracker.FromConfig(cfg))
	if err != nil {
		return stats, err
	}
	if sink == nil {
		sink = LogReports
	}

	election := sourceselect.NewElection(primary, secondary)
	var closeOnce sync.Once
	closeSources := func() { closeOnce.Do(election.Close) }
	obsCh := make(chan source.Observation)
	go readLoop(ctx, election, cfg.PollInterval(), obsCh, closeSources)

	ticker := time.NewTicker(cfg.ReportInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sink(tr.Snapshots())
			stopReader(obsCh, closeSources)
			return stats, ctx.Err()
		case <-ticker.C:
			sink(tr.Snapshots())
		case obs, ok := <-obsCh:
			if !ok {
				sink(tr.Snapshots())
				logger.Info("ratetrack: sources exhausted (accepted=%d rejected=%d restarted=%d unknown=%d invalid=%d)",
					stats.Accepted, stats.Rejected, stats.Restarted, stats.Unknown, stats.Invalid)
				return stats, nil
			}
			v, err := tr.Observe(obs.Series, obs.Time, obs.Value)
			if err != nil {
				if errors.Is(err, tracker.ErrNonFinite) {
					stats.Invalid++
				} else {
					stats.Unknown++
				}
				logger.Info("%v", err)
				continue
			}
			switch v {
			case tracker.VerdictAccepted:
				stats.Accepted++
			case tracker.VerdictRejected:
				stats.Rejected++
			case tracker.VerdictRestarted:
				stats.Restarted++
			}
		}
	}
}

// stopReader ждёт закрытия obsCh не дольше closeWait; если чтение висит,
// закрывает источники само.
func stopReader(obsCh <-chan source.Observation, closeSources func()) {
	timer := time.NewTimer(closeWait)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-obsCh:
			if !ok {
				return
			}
		case <-timer.C:
			logger.Warn("ratetrack: reader still blocked after %v, closing sources", closeWait)
			closeSources()
			return
		}
	}
}

// readLoop владеет election: читает, пока источники не закончатся или ctx не отменён
func readLoop(ctx context.Context, election *sourceselect.Election, poll time.Duration, out chan<- source.Observation, closeSources func()) {
	defer close(out)
	defer closeSources()
	for {
		obs, st := election.Next()
		switch st {
		case source.StatusOK:
			select {
			case out <- obs:
			case <-ctx.Done():
				return
			}
		case source.StatusExhausted:
			return
		default:
			select {
			case <-time.After(poll):
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// LogReports пишет снимки в лог
func LogReports(reports []tracker.Report) {
	for _, r := range reports {
		logger.Info("%s", FormatReport(r))
	}
}

// FormatReport — одна строка отчёта по величине
func FormatReport(r tracker.Report) string {
	switch {
	case r.Ready:
		return fmt.Sprintf("%s: rate=%.6g ±%.3g/s (stderr=%.3g noise=%.3g span=%.1fs n=%d/%d rejected=%d)",
			r.Series, r.Slope, r.Bound, r.StdErr, r.Noise, r.Span, r.Count, r.Offered, r.Rejected)
	case r.Count >= 2:
		return fmt.Sprintf("%s: rate=%.6g/s (n=%d, not enough points for bound)", r.Series, r.Slope, r.Count)
	default:
		return fmt.Sprintf("%s: waiting for data (n=%d)", r.Series, r.Count)
	}
}
