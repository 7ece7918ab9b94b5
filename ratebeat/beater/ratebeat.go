// Package beater реализует интерфейс Beater для Ratebeat (libbeat v7).
package beater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/beats/v7/libbeat/beat"
	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"
	"github.com/shiwa/skytrack/pkg/ratetrack"
)

// Ratebeat реализует beat.Beater.
type Ratebeat struct {
	done   chan struct{}
	config *ratetrack.Config
	client beat.Client
}

// New создаёт Beater из конфигурации Beat (секция ratebeat).
func New(b *beat.Beat, cfg *common.Config) (beat.Beater, error) {
	sub, err := cfg.Child("ratebeat", -1)
	if err != nil || sub == nil {
		return nil, fmt.Errorf("конфиг ratebeat не найден: %v", err)
	}
	config := ratetrack.DefaultConfig()
	if err := sub.Unpack(config); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфига ratebeat: %w", err)
	}
	return &Ratebeat{
		done:   make(chan struct{}),
		config: config,
	}, nil
}

// Run читает наблюдения и публикует отчёты до Stop() или конца источников.
func (bt *Ratebeat) Run(b *beat.Beat) error {
	logp.Info("ratebeat запущен")
	client, err := b.Publisher.Connect()
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	bt.client = client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-bt.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = ratetrack.RunDaemonWithSink(ctx, bt.config, true, bt.publish)
	if err != nil && !errors.Is(err, context.Canceled) {
		logp.Warn("ratetrack завершён: %v", err)
	}
	return nil
}

func (bt *Ratebeat) publish(reports []ratetrack.Report) {
	now := time.Now()
	for _, r := range reports {
		fields := common.MapStr{
			"series":      r.Series,
			"count":       r.Count,
			"offered":     r.Offered,
			"noise":       r.Noise,
			"span":        r.Span,
			"regressions": r.Regressions,
			"rejected":    r.Rejected,
			"non_finite":  r.NonFinite,
			"restarts":    r.Restarts,
			"ready":       r.Ready,
		}
		if r.Count >= 2 {
			fields["rate"] = r.Slope
		}
		if r.Ready {
			fields["rate_bound"] = r.Bound
			fields["rate_stderr"] = r.StdErr
		}
		bt.client.Publish(beat.Event{
			Timestamp: now,
			Fields:    common.MapStr{"ratetrack": fields},
		})
	}
}

// Stop останавливает Run.
func (bt *Ratebeat) Stop() {
	if bt.client != nil {
		bt.client.Close()
	}
	close(bt.done)
}
