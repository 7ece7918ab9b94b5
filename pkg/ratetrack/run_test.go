package ratetrack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shiwa/skytrack/internal/clock"
	"github.com/shiwa/skytrack/internal/config"
	"github.com/shiwa/skytrack/internal/logger"
	"github.com/shiwa/skytrack/internal/rate"
	"github.com/shiwa/skytrack/internal/source"
	"github.com/shiwa/skytrack/internal/tracker"
)

func init() {
	logger.Quiet = true
}

func testConfig() *config.Config {
	c := config.Default()
	c.Estimator.NoiseFloor = 0.01
	c.Series = []string{"ra", "dec"}
	return c
}

var zeroClock = clock.Func(func() rate.Instant { return 0 })

func lineSource(name, text string) source.ObservationSource {
	return source.NewReader(name, "file", strings.NewReader(text), zeroClock)
}

// lastSink запоминает последний отчёт
type lastSink struct {
	calls int
	last  []tracker.Report
}

func (s *lastSink) sink(r []tracker.Report) {
	s.calls++
	s.last = r
}

func TestRun_Exhausted(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d,ra,%d\n", i, 2*i+1)
	}
	b.WriteString("10,ra,1000\n") // выброс
	b.WriteString("# комментарий\n\n")

	var sink lastSink
	stats, err := Run(context.Background(), testConfig(),
		[]source.ObservationSource{lineSource("p", b.String())}, nil, sink.sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Accepted != 10 || stats.Rejected != 1 {
		t.Errorf("stats = %+v, want accepted=10 rejected=1", stats)
	}
	if sink.calls == 0 {
		t.Fatal("sink was never called")
	}
	ra := sink.last[0]
	if ra.Series != "ra" || !ra.Ready || ra.Count != 10 {
		t.Fatalf("final report = %+v", ra)
	}
	if math.Abs(ra.Slope-2) > 1e-9 {
		t.Errorf("Slope = %v, want 2", ra.Slope)
	}
}

func TestRun_FailoverToSecondary(t *testing.T) {
	primary := lineSource("p", "0,dec,0\n1,dec,-1\n")
	secondary := lineSource("s", "2,dec,-2\n3,dec,-3\n")
	var sink lastSink
	stats, err := Run(context.Background(), testConfig(),
		[]source.ObservationSource{primary}, []source.ObservationSource{secondary}, sink.sink)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Accepted != 4 {
		t.Errorf("Accepted = %d, want 4", stats.Accepted)
	}
	dec := sink.last[1]
	if dec.Offered != 4 || math.Abs(dec.Slope+1) > 1e-9 {
		t.Errorf("dec report = %+v", dec)
	}
}

func TestRun_UnknownSeries(t *testing.T) {
	stats, err := Run(context.Background(), testConfig(),
		[]source.ObservationSource{lineSource("p", "0,az,5\n1,ra,1\n")}, nil, func([]tracker.Report) {})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unknown != 1 || stats.Accepted != 1 {
		t.Errorf("stats = %+v, want unknown=1 accepted=1", stats)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.Estimator.Capacity = 1
	if _, err := Run(context.Background(), c, nil, nil, nil); err == nil {
		t.Error("Run should fail on capacity 1")
	}
}

// idleSource никогда не отдаёт данных
type idleSource struct{}

func (idleSource) Name() string          { return "idle" }
func (idleSource) Kind() string          { return "mock" }
func (idleSource) Status() source.Status { return source.StatusIdle }
func (idleSource) Next() (source.Observation, source.Status) {
	return source.Observation{}, source.StatusIdle
}
func (idleSource) Close() error { return nil }

func TestRun_Cancel(t *testing.T) {
	c := testConfig()
	c.Sources.PollInterval = "5ms"
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, c, []source.ObservationSource{idleSource{}}, nil, func([]tracker.Report) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run err = %v, want deadline exceeded", err)
	}
}

// blockingSource висит в Next до Close, как stdin без данных
type blockingSource struct {
	release chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{})}
}

func (b *blockingSource) Name() string          { return "blocking" }
func (b *blockingSource) Kind() string          { return "mock" }
func (b *blockingSource) Status() source.Status { return source.StatusIdle }
func (b *blockingSource) Next() (source.Observation, source.Status) {
	<-b.release
	return source.Observation{}, source.StatusExhausted
}
func (b *blockingSource) Close() error {
	b.closed.Store(true)
	b.once.Do(func() { close(b.release) })
	return nil
}

func TestRun_CancelClosesBlockedSource(t *testing.T) {
	old := closeWait
	closeWait = 20 * time.Millisecond
	defer func() { closeWait = old }()

	src := newBlockingSource()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Run(ctx, testConfig(), []source.ObservationSource{src}, nil, func([]tracker.Report) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run err = %v, want deadline exceeded", err)
	}
	if !src.closed.Load() {
		t.Error("заблокированный источник должен быть закрыт до возврата Run")
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("Run вернулся через %v", d)
	}
}

// sliceSource отдаёт готовые наблюдения, минуя разбор строк
type sliceSource struct {
	obs []source.Observation
	st  source.Status
}

func (s *sliceSource) Name() string          { return "slice" }
func (s *sliceSource) Kind() string          { return "mock" }
func (s *sliceSource) Status() source.Status { return s.st }
func (s *sliceSource) Close() error          { return nil }
func (s *sliceSource) Next() (source.Observation, source.Status) {
	if len(s.obs) == 0 {
		s.st = source.StatusExhausted
		return source.Observation{}, s.st
	}
	o := s.obs[0]
	s.obs = s.obs[1:]
	return o, source.StatusOK
}

func TestRun_NonFiniteCounted(t *testing.T) {
	src := &sliceSource{st: source.StatusIdle, obs: []source.Observation{
		{Series: "ra", Time: 0, Value: 0},
		{Series: "ra", Time: 1, Value: math.NaN()},
		{Series: "ra", Time: rate.Instant(math.Inf(1)), Value: 1},
		{Series: "ra", Time: 2, Value: 2},
		{Series: "ra", Time: 3, Value: 3},
	}}
	var sink lastSink
	stats, err := Run(context.Background(), testConfig(), []source.ObservationSource{src}, nil, sink.sink)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Accepted != 3 || stats.Invalid != 2 || stats.Rejected != 0 {
		t.Errorf("stats = %+v, want accepted=3 invalid=2", stats)
	}
	ra := sink.last[0]
	if ra.NonFinite != 2 || math.Abs(ra.Slope-1) > 1e-9 {
		t.Errorf("ra report = %+v", ra)
	}
}

// nan в строке отсекается ещё при разборе
func TestRun_NonFiniteLineSkipped(t *testing.T) {
	stats, err := Run(context.Background(), testConfig(),
		[]source.ObservationSource{lineSource("p", "0,ra,0\n1,ra,nan\n2,ra,2\n")}, nil, func([]tracker.Report) {})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Accepted != 2 || stats.Invalid != 0 {
		t.Errorf("stats = %+v, want accepted=2 invalid=0", stats)
	}
}

func TestRunDaemon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obs.txt")
	if err := os.WriteFile(path, []byte("0,1\n1,2\n2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := config.Default()
	c.Sources.Primary = []config.SourceConfig{{Kind: "file", Path: path}}
	if err := RunDaemon(context.Background(), c, true); err != nil {
		t.Errorf("RunDaemon: %v", err)
	}

	c.Sources.Primary = []config.SourceConfig{{Kind: "file", Path: filepath.Join(dir, "missing.txt")}}
	if err := RunDaemon(context.Background(), c, true); !errors.Is(err, ErrNoSources) {
		t.Errorf("RunDaemon with missing file err = %v, want ErrNoSources", err)
	}
	if err := RunDaemon(context.Background(), nil, true); err == nil {
		t.Error("RunDaemon(nil) should fail")
	}
}

func TestFormatReport(t *testing.T) {
	tests := []struct {
		name string
		r    tracker.Report
		want string
	}{
		{"waiting", tracker.Report{Series: "ra", Count: 1}, "ra: waiting for data (n=1)"},
		{"slope only", tracker.Report{Series: "ra", Count: 2, Slope: 0.5}, "ra: rate=0.5/s"},
		{"ready", tracker.Report{Series: "dec", Count: 3, Offered: 7, Slope: 0.11, Bound: 0.0023, Ready: true}, "dec: rate=0.11 ±0.0023/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatReport(tt.r)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("FormatReport() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}
