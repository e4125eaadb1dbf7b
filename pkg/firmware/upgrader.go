package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fiberpos/tendo-go/pkg/log"
	"github.com/fiberpos/tendo-go/pkg/positioner"
	"github.com/fiberpos/tendo-go/pkg/status"
)

// Default upgrade timing.
const (
	DefaultRebootDelay    = 2 * time.Second
	DefaultHeaderSettle   = 2 * time.Second
	DefaultVerifyAttempts = 9
	DefaultProgressEvery  = 500
)

// Upgrade errors.
var (
	// ErrBusy is returned when an upgrade is already running.
	ErrBusy = errors.New("firmware: upgrade already in progress")

	// ErrHeaderRejected is returned when the bootloader refused the image
	// announcement.
	ErrHeaderRejected = errors.New("firmware: header rejected")

	// ErrNotReceived is returned when the bootloader never reported the
	// image as received.
	ErrNotReceived = errors.New("firmware: image not confirmed by bootloader")

	// ErrChecksumBad is returned when the bootloader reported a checksum
	// mismatch.
	ErrChecksumBad = errors.New("firmware: image checksum rejected")

	// ErrNotChecked is returned when the image was received but neither
	// check bit was set.
	ErrNotChecked = errors.New("firmware: image received but not checked")
)

// UpgradeFailedError reports a frame the bootloader did not accept.
type UpgradeFailedError struct {
	Address    uint16
	FrameIndex int
	Response   positioner.Response

	// Status is the bootloader status read after the first rejection,
	// if the read succeeded.
	Status *uint64
}

func (e *UpgradeFailedError) Error() string {
	return fmt.Sprintf("firmware: frame %d not accepted by positioner %d: %s", e.FrameIndex, e.Address, e.Response.Code.Reason())
}

// Unwrap returns the device error of the rejected frame.
func (e *UpgradeFailedError) Unwrap() error {
	return e.Response.Err()
}

// Device is the bootloader command set an upgrade needs.
type Device interface {
	Address() uint16
	RequestReboot(ctx context.Context) ([]positioner.Response, error)
	SendFirmwareHeader(ctx context.Context, length, crc uint32) (positioner.Response, error)
	SendFirmwareChunk(ctx context.Context, chunk []byte) (positioner.Response, error)
	ReadBootloaderStatus(ctx context.Context) ([]positioner.StatusResponse, error)
}

var _ Device = (*positioner.Unit)(nil)

// State is the upgrade progress.
type State uint8

const (
	StateIdle State = iota
	StateHeaderSent
	StateStreaming
	StateAwaitingVerification
	StateSuccess
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHeaderSent:
		return "HEADER_SENT"
	case StateStreaming:
		return "STREAMING"
	case StateAwaitingVerification:
		return "AWAITING_VERIFICATION"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Progress reports streamed frames.
type Progress struct {
	Address uint16
	Sent    int
	Total   int
}

// Percent returns the streamed share of the image.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Sent) * 100 / float64(p.Total)
}

// Config configures an Upgrader. Delays are used as given, so zero
// delays are valid.
type Config struct {
	// RebootDelay is the pause between the reboot request and the header.
	RebootDelay time.Duration `yaml:"reboot_delay"`

	// HeaderSettle is the pause between the header and the first frame.
	HeaderSettle time.Duration `yaml:"header_settle"`

	// VerifyAttempts bounds the status polls after the last frame.
	VerifyAttempts int `yaml:"verify_attempts"`

	// ProgressEvery is the frame interval between progress callbacks.
	ProgressEvery int `yaml:"progress_every"`

	// Progress is called every ProgressEvery frames and after the last
	// frame. Optional.
	Progress func(Progress) `yaml:"-"`

	// Trace receives upgrade state changes. Optional.
	Trace log.Logger `yaml:"-"`

	// Logger receives operational output. Optional.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the timing the bootloader expects.
func DefaultConfig() Config {
	return Config{
		RebootDelay:    DefaultRebootDelay,
		HeaderSettle:   DefaultHeaderSettle,
		VerifyAttempts: DefaultVerifyAttempts,
		ProgressEvery:  DefaultProgressEvery,
	}
}

// Report summarises a finished upgrade.
type Report struct {
	Address uint16
	Length  int
	CRC     uint32
	Frames  int

	// Retries counts frames that were sent twice.
	Retries int

	// Status is the last bootloader status read during verification.
	Status  uint64
	Verdict status.FirmwareVerdict
	State   State
	Elapsed time.Duration
}

// Upgrader uploads firmware to one device. An Upgrader runs one upgrade at
// a time.
type Upgrader struct {
	dev    Device
	config Config
	trace  log.Logger

	mu      sync.Mutex
	state   State
	running bool
}

// NewUpgrader creates an upgrader for dev.
func NewUpgrader(dev Device, cfg Config) *Upgrader {
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = DefaultVerifyAttempts
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Upgrader{
		dev:    dev,
		config: cfg,
		trace:  log.OrNoop(cfg.Trace),
	}
}

// State returns the current upgrade state.
func (u *Upgrader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Upgrader) debugLog(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, args...)
	}
}

func (u *Upgrader) setState(to State, reason string) {
	u.mu.Lock()
	from := u.state
	u.state = to
	u.mu.Unlock()

	u.debugLog("firmware upgrade state", "address", u.dev.Address(), "from", from.String(), "to", to.String(), "reason", reason)
	u.trace.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerDevice,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityUpgrade,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
			Address:  u.dev.Address(),
		},
	})
}

// Upgrade uploads img and waits for the bootloader to verify it. The
// returned report is filled as far as the upgrade got.
func (u *Upgrader) Upgrade(ctx context.Context, img *Image) (Report, error) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return Report{}, ErrBusy
	}
	u.running = true
	u.state = StateIdle
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	start := time.Now()
	rep := Report{
		Address: u.dev.Address(),
		Length:  img.Len(),
		CRC:     img.CRC32(),
		Frames:  img.FrameCount(),
	}
	err := u.run(ctx, img, &rep)
	rep.Elapsed = time.Since(start)
	if err != nil {
		u.setState(StateFailed, err.Error())
	}
	rep.State = u.State()
	return rep, err
}

func (u *Upgrader) run(ctx context.Context, img *Image, rep *Report) error {
	if _, err := u.dev.RequestReboot(ctx); err != nil {
		return fmt.Errorf("firmware: reboot: %w", err)
	}
	if err := sleep(ctx, u.config.RebootDelay); err != nil {
		return err
	}

	hdr, err := u.dev.SendFirmwareHeader(ctx, uint32(img.Len()), img.CRC32())
	if err != nil {
		return fmt.Errorf("firmware: header: %w", err)
	}
	if !hdr.OK() {
		return fmt.Errorf("%w: %w", ErrHeaderRejected, hdr.Err())
	}
	u.setState(StateHeaderSent, fmt.Sprintf("%d bytes, crc %08x", img.Len(), img.CRC32()))
	if err := sleep(ctx, u.config.HeaderSettle); err != nil {
		return err
	}

	u.setState(StateStreaming, "")
	frames := img.Frames()
	for i, chunk := range frames {
		retried, err := u.sendFrame(ctx, i, chunk)
		if retried {
			rep.Retries++
		}
		if err != nil {
			return err
		}
		if n := i + 1; n%u.config.ProgressEvery == 0 || n == len(frames) {
			u.progress(n, len(frames))
		}
	}

	u.setState(StateAwaitingVerification, "")
	return u.verify(ctx, rep)
}

// sendFrame sends one chunk and retries it once after a rejection.
func (u *Upgrader) sendFrame(ctx context.Context, index int, chunk []byte) (bool, error) {
	r, err := u.dev.SendFirmwareChunk(ctx, chunk)
	if err != nil {
		return false, fmt.Errorf("firmware: frame %d: %w", index, err)
	}
	if r.OK() {
		return false, nil
	}

	failed := &UpgradeFailedError{Address: u.dev.Address(), FrameIndex: index, Response: r}
	st, err := u.readStatus(ctx)
	if err != nil {
		return false, errors.Join(failed, err)
	}
	if st == nil {
		u.debugLog("firmware frame rejected, status unreadable, retrying", "address", u.dev.Address(), "frame", index,
			"code", r.Code.String())
	} else {
		failed.Status = &st.Value
		u.debugLog("firmware frame rejected, retrying", "address", u.dev.Address(), "frame", index,
			"code", r.Code.String(), "status", status.Bootloader.SetNames(st.Value))
	}

	r, err = u.dev.SendFirmwareChunk(ctx, chunk)
	if err != nil {
		return true, fmt.Errorf("firmware: frame %d: %w", index, err)
	}
	if !r.OK() {
		failed.Response = r
		return true, failed
	}
	return true, nil
}

// readStatus reads the bootloader status. It returns nil when the device
// did not accept the request.
func (u *Upgrader) readStatus(ctx context.Context) (*positioner.StatusResponse, error) {
	out, err := u.dev.ReadBootloaderStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range out {
		if r.OK() {
			return &r, nil
		}
	}
	return nil, nil
}

func (u *Upgrader) verify(ctx context.Context, rep *Report) error {
	for attempt := 0; attempt < u.config.VerifyAttempts; attempt++ {
		st, err := u.readStatus(ctx)
		if err != nil {
			return fmt.Errorf("firmware: verify: %w", err)
		}
		if st == nil {
			continue
		}
		rep.Status = st.Value
		rep.Verdict = status.Verdict(st.Value)
		switch rep.Verdict {
		case status.VerdictPending:
			continue
		case status.VerdictOK:
			u.setState(StateSuccess, "")
			return nil
		case status.VerdictBad:
			return ErrChecksumBad
		default:
			return ErrNotChecked
		}
	}
	return fmt.Errorf("%w after %d polls", ErrNotReceived, u.config.VerifyAttempts)
}

func (u *Upgrader) progress(sent, total int) {
	u.debugLog("firmware upload progress", "address", u.dev.Address(), "sent", sent, "total", total)
	if u.config.Progress != nil {
		u.config.Progress(Progress{Address: u.dev.Address(), Sent: sent, Total: total})
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
