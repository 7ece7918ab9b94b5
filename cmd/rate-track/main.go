// rate-track — оценка скорости изменения величин (например, координат объекта на небе)
// по потоку наблюдений с ограниченной памятью.
//
// Наблюдения читаются построчно из stdin, файла или последовательного порта
// (time,series,value; см. source.ParseLine). Для каждой величины держится
// резервуарная выборка, по ней МНК даёт скорость и её погрешность.
//
// Использование:
//
//	rate-track -run                          — читать stdin, конфиг rate-track.yml если есть
//	rate-track -run -config rate-track.yml   — источники и параметры из конфига
//	rate-track -list-ports                   — показать последовательные порты и выйти
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiwa/skytrack/internal/clock"
	"github.com/shiwa/skytrack/internal/config"
	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/source"
	"github.com/shiwa/skytrack/pkg/ratetrack"
)

func main() {
	run := flag.Bool("run", false, "запуск: чтение наблюдений и оценка скорости до конца данных или сигнала")
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию rate-track.yml)")
	listPorts := flag.Bool("list-ports", false, "показать последовательные порты и выйти")
	capacity := flag.Int("capacity", 0, "размер резервуара (переопределяет config)")
	sigma := flag.Float64("sigma", 0, "порог выброса в единицах шума (переопределяет config)")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	if *listPorts {
		printPorts()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if *capacity != 0 {
		cfg.Estimator.Capacity = *capacity
	}
	if *sigma != 0 {
		cfg.Estimator.Sigma = *sigma
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if *run {
		logger.Quiet = *quiet
		runWithShutdown(cfg, *quiet)
		return
	}

	if !*quiet {
		fmt.Printf("rate-track: часы %d нс; для запуска используйте -run (см. -h)\n", clock.GranularityNs())
	}
}

func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = "rate-track.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return nil, nil
	}
	return config.Load(path)
}

func printPorts() {
	ports, err := source.ListPorts()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(ports) == 0 {
		fmt.Println("последовательные порты не найдены")
		return
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}

// runWithShutdown запускает ratetrack.RunDaemon; по SIGINT/SIGTERM контекст отменяется,
// источники закрываются, последний отчёт пишется в лог.
func runWithShutdown(cfg *config.Config, quiet bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	if err := ratetrack.RunDaemon(ctx, cfg, quiet); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
