package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/firmware"
	"github.com/fiberpos/tendo-go/pkg/log"
	"github.com/fiberpos/tendo-go/pkg/persistence"
	"github.com/fiberpos/tendo-go/pkg/positioner"
	"github.com/fiberpos/tendo-go/pkg/transport"
)

// ErrUnknownTransport indicates a dispatcher index outside the session.
var ErrUnknownTransport = errors.New("config: unknown transport")

// Session is a connected driver built from a Config: the opened
// transceivers, one dispatcher per transceiver and the fleet over them.
type Session struct {
	Fleet *positioner.Fleet

	config      *Config
	logger      *slog.Logger
	trace       log.Logger
	traceFile   *log.FileLogger
	store       *persistence.FleetStateStore
	transports  []*transport.Transport
	dispatchers []*dispatch.Dispatcher
}

// Connect opens the configured transceivers and builds the fleet. Units
// are not discovered; call Discover.
func Connect(ctx context.Context, cfg *Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{config: cfg, logger: logger}

	if err := s.openTrace(); err != nil {
		return nil, err
	}
	if cfg.State.File != "" {
		s.store = persistence.NewFleetStateStore(cfg.State.File)
	}

	if err := s.openTransports(ctx); err != nil {
		s.closeTrace()
		return nil, err
	}
	for _, t := range s.transports {
		s.dispatchers = append(s.dispatchers, dispatch.New(t, cfg.DispatchConfig(t.SessionID(), s.trace, logger)))
	}
	s.Fleet = positioner.NewFleet(cfg.FleetConfig(logger), s.dispatchers...)
	return s, nil
}

func (s *Session) openTrace() error {
	var loggers []log.Logger
	if s.config.Trace.File != "" {
		fl, err := log.NewFileLogger(s.config.Trace.File)
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		s.traceFile = fl
		loggers = append(loggers, fl)
	}
	if s.config.Trace.Console {
		loggers = append(loggers, log.NewSlogAdapter(s.logger))
	}
	switch len(loggers) {
	case 0:
		s.trace = log.NoopLogger{}
	case 1:
		s.trace = loggers[0]
	default:
		s.trace = log.NewMultiLogger(loggers...)
	}
	return nil
}

func (s *Session) openTransports(ctx context.Context) error {
	configs := s.config.TransportConfigs(s.trace, s.logger)
	if len(s.config.Transceivers) == 0 {
		ts, err := transport.OpenAll(ctx, configs[0])
		if err != nil {
			return err
		}
		s.transports = ts
		return nil
	}
	for _, tc := range configs {
		t, err := transport.Open(ctx, tc)
		if err != nil {
			for _, opened := range s.transports {
				_ = opened.Close()
			}
			s.transports = nil
			return err
		}
		s.transports = append(s.transports, t)
	}
	return nil
}

// Transports returns the opened transceivers in dispatcher order.
func (s *Session) Transports() []*transport.Transport {
	return append([]*transport.Transport(nil), s.transports...)
}

// Dispatchers returns one dispatcher per transceiver.
func (s *Session) Dispatchers() []*dispatch.Dispatcher {
	return append([]*dispatch.Dispatcher(nil), s.dispatchers...)
}

// Trace returns the protocol trace logger.
func (s *Session) Trace() log.Logger {
	return s.trace
}

// Discover finds the positioners on every bus and re-applies the altered
// markers from the state file. Units that answered are restored even when
// the scan of another bus failed; every error is returned joined.
func (s *Session) Discover(ctx context.Context) ([]uint16, error) {
	found, scanErr := s.Fleet.Discover(ctx)
	if s.store == nil {
		return found, scanErr
	}
	state, err := s.store.Load()
	if err != nil {
		return found, errors.Join(scanErr, fmt.Errorf("load state: %w", err))
	}
	if missing := persistence.Restore(s.Fleet, state); len(missing) > 0 {
		s.logger.Warn("positioners from the state file did not answer", "addresses", missing)
	}
	return found, scanErr
}

// SaveState writes the fleet state file. It is a no-op without one.
func (s *Session) SaveState() error {
	if s.store == nil {
		return nil
	}
	serials := make([]string, 0, len(s.transports))
	for _, t := range s.transports {
		serials = append(serials, t.SerialNumber())
	}
	return s.store.Save(persistence.Snapshot(s.Fleet, serials...))
}

// Reopen recovers the i-th transceiver after its dispatcher failed.
func (s *Session) Reopen(ctx context.Context, i int) error {
	if i < 0 || i >= len(s.transports) {
		return fmt.Errorf("%w: %d", ErrUnknownTransport, i)
	}
	rc := transport.ReopenFor(s.transports[i])
	rc.Backoff = s.config.Reopen.Backoff
	rc.MaxAttempts = s.config.Reopen.MaxAttempts
	rc.OnAttempt = func(n int, delay time.Duration) {
		s.logger.Info("reopening transceiver", "serial", rc.Transport.SerialNumber, "attempt", n, "delay", delay)
	}
	t, err := transport.Reopen(ctx, s.dispatchers[i], rc)
	if err != nil {
		return err
	}
	s.transports[i] = t
	return nil
}

// Upgrader returns a firmware upgrader for unit configured from the session.
func (s *Session) Upgrader(unit *positioner.Unit) *firmware.Upgrader {
	return firmware.NewUpgrader(unit, s.config.FirmwareConfig(s.trace, s.logger))
}

// Close saves the state, closes every transceiver and the trace file.
func (s *Session) Close() error {
	errs := []error{s.SaveState()}
	if s.Fleet != nil {
		errs = append(errs, s.Fleet.Close())
	}
	errs = append(errs, s.closeTrace())
	return errors.Join(errs...)
}

func (s *Session) closeTrace() error {
	if s.traceFile == nil {
		return nil
	}
	return s.traceFile.Close()
}
