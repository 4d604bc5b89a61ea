// Package injector assembles the application graph for the command line.
package injector

import (
	"fmt"
	"time"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/engine"
	"github.com/zeusync/scenehook/internal/hostsim"
	"github.com/zeusync/scenehook/internal/ledger"
	"github.com/zeusync/scenehook/internal/recorder"
	"github.com/zeusync/scenehook/internal/server"
)

// App is the assembled run graph. Ledger and Recorder are nil when disabled.
type App struct {
	Config   config.Config
	Log      log.Log
	Bus      bus.EventBus
	Loop     *loop.Loop
	Host     *hostsim.Host
	Engine   *engine.Engine
	Server   *server.Server
	Ledger   *ledger.Ledger
	Recorder *recorder.Recorder
}

func ProvideLogger(cfg config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideLoop(logger log.Log) *loop.Loop {
	return loop.New(time.Now(), logger)
}

func ProvideHost(cfg config.Config, logger log.Log) *hostsim.Host {
	return hostsim.New(cfg.Host, logger)
}

func ProvideEngine(cfg config.Config, host *hostsim.Host, logger log.Log, b bus.EventBus, l *loop.Loop) (*engine.Engine, error) {
	return engine.New(cfg, host.Bindings(), logger, b, l)
}

func ProvideServer(cfg config.Config, e *engine.Engine, logger log.Log) *server.Server {
	return server.New(cfg.Server, e, logger)
}

// ProvideLedger opens the pickup ledger, subscribes it to pickups and exposes
// it on the server. An empty path disables it.
func ProvideLedger(cfg config.Config, b bus.EventBus, srv *server.Server, logger log.Log) (*ledger.Ledger, func(), error) {
	if cfg.Ledger.Path == "" {
		return nil, func() {}, nil
	}
	l, err := ledger.Open(cfg.Ledger.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.Subscribe(bus.CoinCollected, l.Handler())
	if err != nil {
		_ = l.Close()
		return nil, nil, fmt.Errorf("injector: ledger: %w", err)
	}
	srv.SetLedger(l)
	return l, func() {
		_ = sub.Cancel()
		if err := l.Close(); err != nil {
			logger.Warn("ledger close", log.Error(err))
		}
	}, nil
}

// ProvideRecorder records every bus event. An empty dir disables it.
func ProvideRecorder(cfg config.Config, b bus.EventBus, logger log.Log) (*recorder.Recorder, func(), error) {
	if cfg.Recorder.Dir == "" {
		return nil, func() {}, nil
	}
	r, err := recorder.Open(cfg.Recorder.Dir, cfg.Recorder.Prefix)
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.Subscribe(bus.AllEvents, r.Handler())
	if err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("injector: recorder: %w", err)
	}
	return r, func() {
		_ = sub.Cancel()
		if err := r.Close(); err != nil {
			logger.Warn("recorder close", log.Error(err))
		}
	}, nil
}
