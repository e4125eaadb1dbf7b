package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Candidates lists the serial ports whose description matches cfg.Match,
// sorted by name.
func Candidates(cfg Config) ([]PortInfo, error) {
	cfg = cfg.withDefaults()
	details, err := cfg.Lister()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	var out []PortInfo
	for _, d := range details {
		info := portInfo(d)
		if info.matches(cfg.Match) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open finds and configures one transceiver. With PortName set only that
// port is tried; otherwise every candidate is probed in name order and the
// first whose serial number matches (or any, when SerialNumber is empty)
// is kept.
func Open(ctx context.Context, cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()
	if cfg.PortName != "" {
		return openPort(ctx, cfg, cfg.PortName)
	}

	ports, err := Candidates(cfg)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, p := range ports {
		t, err := openPort(ctx, cfg, p.Name)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, noTransceiver(cfg, errs)
}

// OpenAll configures every transceiver that answers, skipping ports that
// fail. It fails only when none could be opened.
func OpenAll(ctx context.Context, cfg Config) ([]*Transport, error) {
	cfg = cfg.withDefaults()
	ports, err := Candidates(cfg)
	if err != nil {
		return nil, err
	}
	var (
		out  []*Transport
		errs []error
	)
	for _, p := range ports {
		t, err := openPort(ctx, cfg, p.Name)
		if err != nil {
			if ctx.Err() != nil {
				closeAll(out)
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, noTransceiver(cfg, errs)
	}
	return out, nil
}

// openPort opens name, identifies the transceiver and configures it.
// The port is closed again on any failure.
func openPort(ctx context.Context, cfg Config, name string) (*Transport, error) {
	port, err := cfg.Opener(name, serialMode(cfg.BaudRate))
	if err != nil {
		cfg.Logger.Debug("serial port unavailable", "port", name, "error", err)
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout %s: %w", name, err)
	}

	t := New(port, name, cfg)
	sn, err := t.QuerySerialNumber(ctx)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if cfg.SerialNumber != "" && sn != cfg.SerialNumber {
		_ = t.Close()
		return nil, fmt.Errorf("%w: %s reports %s, want %s", ErrSerialMismatch, name, sn, cfg.SerialNumber)
	}
	if err := t.Configure(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	cfg.Logger.Info("transceiver connected", "port", name, "serial", sn, "session", t.SessionID())
	return t, nil
}

func noTransceiver(cfg Config, errs []error) error {
	if cfg.SerialNumber != "" {
		errs = append([]error{fmt.Errorf("%w: serial %s", ErrNoTransceiver, cfg.SerialNumber)}, errs...)
	} else {
		errs = append([]error{ErrNoTransceiver}, errs...)
	}
	return errors.Join(errs...)
}

func closeAll(ts []*Transport) {
	for _, t := range ts {
		_ = t.Close()
	}
}
