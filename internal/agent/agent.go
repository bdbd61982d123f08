package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/senbaris/tempdbcheck/internal/alarm"
	"github.com/senbaris/tempdbcheck/internal/collector/mssql"
	"github.com/senbaris/tempdbcheck/internal/config"
	"github.com/senbaris/tempdbcheck/internal/history"
	"github.com/senbaris/tempdbcheck/internal/logger"
	"github.com/senbaris/tempdbcheck/internal/model"
)

const checkTimeout = 2 * time.Minute

// ErrStopped is returned by Start once Stop has been called.
var ErrStopped = errors.New("agent stopped")

// ConnectFunc hedef sunucuya bağlanır
type ConnectFunc func(ctx context.Context) (mssql.Target, error)

// Agent tempdb kontrollerini periyodik olarak çalıştırır
type Agent struct {
	cfg       *config.Config
	collector *mssql.MSSQLCollector
	connect   ConnectFunc
	monitor   *alarm.AlarmMonitor
	store     *history.Store
	stopCh    chan struct{}
	done      chan struct{}

	mu      sync.Mutex // started, stopped ve store'u korur
	started bool
	stopped bool
}

// NewAgent yeni bir Agent örneği oluşturur
func NewAgent(cfg *config.Config) *Agent {
	c := mssql.NewMSSQLCollector(cfg)
	return &Agent{
		cfg:       cfg,
		collector: c,
		connect: func(ctx context.Context) (mssql.Target, error) {
			return c.Connect(ctx)
		},
		monitor: alarm.NewAlarmMonitor(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// WithConnect replaces the connection function. Used by tests.
func (a *Agent) WithConnect(fn ConnectFunc) *Agent {
	a.connect = fn
	return a
}

// WithStore attaches an already opened history store.
func (a *Agent) WithStore(s *history.Store) *Agent {
	a.mu.Lock()
	a.store = s
	a.mu.Unlock()
	return a
}

func (a *Agent) historyStore() *history.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store
}

// Monitor returns the alarm monitor that tracks rule state across runs.
func (a *Agent) Monitor() *alarm.AlarmMonitor { return a.monitor }

// RunOnce connects, evaluates tempdb, records alarm transitions and, when a
// history store is attached, saves the report.
func (a *Agent) RunOnce(ctx context.Context) (*model.Report, error) {
	target, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer target.Close()

	report, err := mssql.CheckTempDB(ctx, target)
	if err != nil {
		return nil, err
	}

	for _, ev := range a.monitor.Observe(report) {
		logger.Debug("Alarm %s: %s %s", ev.ID, ev.Rule, ev.Status)
	}

	if store := a.historyStore(); store != nil {
		if err := store.SaveReport(ctx, report); err != nil {
			// Rapor üretildi, kayıt hatası kontrolü başarısız saymaz
			logger.Error("Rapor geçmişe kaydedilemedi: %v", err)
		}
	}
	return report, nil
}

// Start opens the history store when enabled and runs checks on every
// service interval until Stop is called.
func (a *Agent) Start() error {
	logger.Info("Agent başlatılıyor: %s", a.collector.ServerName())

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrStopped
	}
	if a.started {
		return errors.New("agent zaten başlatılmış")
	}

	if a.store == nil && a.cfg.History.Enabled {
		store, err := history.Open(a.cfg.History.Driver, a.cfg.History.DSN)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.CreateSchema(ctx); err != nil {
			store.Close()
			return err
		}
		a.store = store
	}

	a.started = true
	go a.loop()

	logger.Info("Agent başarıyla başlatıldı, kontrol aralığı: %s", a.interval())
	return nil
}

// Stop agent'ı durdurur ve çalışan kontrolün bitmesini bekler
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	logger.Info("Agent durduruluyor: %s", a.collector.ServerName())
	close(a.stopCh)
	if started {
		<-a.done
	}

	if store := a.historyStore(); store != nil {
		if err := store.Close(); err != nil {
			logger.Warning("History kapatılamadı: %v", err)
		}
	}
}

func (a *Agent) interval() time.Duration {
	sec := a.cfg.Service.IntervalSec
	if sec <= 0 {
		sec = 3600
	}
	return time.Duration(sec) * time.Second
}

// loop ilk kontrolü hemen, sonrakileri her aralıkta çalıştırır
func (a *Agent) loop() {
	defer close(a.done)

	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()

	for {
		a.runChecked()
		select {
		case <-ticker.C:
		case <-a.stopCh:
			return
		}
	}
}

func (a *Agent) runChecked() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	go func() {
		select {
		case <-a.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := a.RunOnce(ctx)
	if err != nil {
		logger.Error("tempdb kontrolü başarısız: %v", err)
		return
	}
	if report.HasViolations {
		logger.Warning("%s: %d kural en iyi uygulamadan sapıyor", report.Server, len(report.Violations()))
	} else {
		logger.Info("%s: tempdb yapılandırması uygun", report.Server)
	}
}
