package simplevr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hipsterbrown/simplevr/transports"
)

// Group ids accepted by SetGroup.
const (
	MinGroup = 1
	MaxGroup = 64
)

// DefaultBaudRate is the module's factory UART speed.
const DefaultBaudRate = 38400

// Driver issues commands to a SimpleVR module and interprets its replies.
//
// A Driver performs one exchange at a time over a single receive buffer and
// is not safe for concurrent use; callers sharing a Driver must serialize
// access themselves.
type Driver struct {
	transport Transport
	codec     *Codec
	timeout   time.Duration
	log       *zap.Logger
	closed    bool
}

// DriverConfig holds configuration for creating a new Driver.
type DriverConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 38400.
	BaudRate int

	// Timeout is the receive window for replies. Default is 1 second.
	Timeout time.Duration

	// Clock measures receive windows. Default is SystemClock.
	Clock Clock

	// Logger traces frames at Debug level. Default is a no-op logger.
	Logger *zap.Logger
}

// NewDriver creates a new driver with the given configuration.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	return &Driver{
		transport: transport,
		codec:     NewCodec(transport, CodecConfig{Clock: cfg.Clock, Logger: cfg.Logger}),
		timeout:   cfg.Timeout,
		log:       cfg.Logger,
	}, nil
}

// Close closes the driver and releases the transport.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.transport.Close()
}

// Codec returns the frame codec used by this driver.
func (d *Driver) Codec() *Codec {
	return d.codec
}

// Timeout returns the receive window used for command replies.
func (d *Driver) Timeout() time.Duration {
	return d.timeout
}

// Version is the firmware and hardware revision reported by the module.
type Version struct {
	FirmwareMajor byte
	FirmwareMinor byte
	FirmwarePatch byte
	HardwareMajor byte
	HardwareMinor byte
}

// Firmware formats the firmware revision as major.minor.patch.
func (v Version) Firmware() string {
	return fmt.Sprintf("%d.%d.%d", v.FirmwareMajor, v.FirmwareMinor, v.FirmwarePatch)
}

// Hardware formats the hardware revision as major.minor.
func (v Version) Hardware() string {
	return fmt.Sprintf("%d.%d", v.HardwareMajor, v.HardwareMinor)
}

// Bytes returns the version in wire order.
func (v Version) Bytes() []byte {
	return []byte{v.FirmwareMajor, v.FirmwareMinor, v.FirmwarePatch, v.HardwareMajor, v.HardwareMinor}
}

// SystemState is the module's current configuration.
type SystemState struct {
	WorkState byte
	Group     byte // selected vocabulary group
	Threshold byte // recognition score threshold
}

// Bytes returns the state in wire order.
func (s SystemState) Bytes() []byte {
	return []byte{s.WorkState, s.Group, s.Threshold}
}

// Recognition is a voice recognition event.
type Recognition struct {
	Index uint16 // sentence index
	Group byte
	Score byte
}

// Bytes returns the event in wire order.
func (r Recognition) Bytes() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf, r.Index)
	buf[2] = r.Group
	buf[3] = r.Score
	return buf
}

// Reset restores the module's default settings.
func (d *Driver) Reset(ctx context.Context) error {
	_, err := d.exchange(ctx, "reset", CmdReset, nil)
	return err
}

// SystemState queries the work state, selected group and threshold.
func (d *Driver) SystemState(ctx context.Context) (SystemState, error) {
	payload, err := d.query(ctx, "system state", CmdSystemState, 3)
	if err != nil {
		return SystemState{}, err
	}
	return SystemState{
		WorkState: payload[0],
		Group:     payload[1],
		Threshold: payload[2],
	}, nil
}

// Version queries the firmware and hardware revision.
func (d *Driver) Version(ctx context.Context) (Version, error) {
	payload, err := d.query(ctx, "version", CmdVersion, 5)
	if err != nil {
		return Version{}, err
	}
	return Version{
		FirmwareMajor: payload[0],
		FirmwareMinor: payload[1],
		FirmwarePatch: payload[2],
		HardwareMajor: payload[3],
		HardwareMinor: payload[4],
	}, nil
}

// SetGroup selects and enables a vocabulary group (1-64).
func (d *Driver) SetGroup(ctx context.Context, group int) error {
	if group < MinGroup || group > MaxGroup {
		return &CommandError{
			Op:      "set group",
			Command: CmdSelectGroup,
			Err:     fmt.Errorf("%w: group %d (valid range: %d-%d)", ErrInvalidArgument, group, MinGroup, MaxGroup),
		}
	}
	_, err := d.exchange(ctx, "set group", CmdSelectGroup, []byte{byte(group)})
	return err
}

// SetThreshold sets the recognition score threshold.
func (d *Driver) SetThreshold(ctx context.Context, value byte) error {
	_, err := d.exchange(ctx, "set threshold", CmdThreshold, []byte{value})
	return err
}

// Enable turns recognition on.
func (d *Driver) Enable(ctx context.Context) error {
	return d.SetEnabled(ctx, true)
}

// Disable turns recognition off.
func (d *Driver) Disable(ctx context.Context) error {
	return d.SetEnabled(ctx, false)
}

// SetEnabled turns recognition on or off.
func (d *Driver) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		_, err := d.exchange(ctx, "enable", CmdEnable, nil)
		return err
	}
	_, err := d.exchange(ctx, "disable", CmdDisable, nil)
	return err
}

// EnableStartupInfo makes the module print its banner on power-up.
func (d *Driver) EnableStartupInfo(ctx context.Context) error {
	return d.SetStartupInfo(ctx, true)
}

// DisableStartupInfo silences the power-up banner.
func (d *Driver) DisableStartupInfo(ctx context.Context) error {
	return d.SetStartupInfo(ctx, false)
}

// SetStartupInfo turns the power-up banner on or off.
func (d *Driver) SetStartupInfo(ctx context.Context, enabled bool) error {
	var flag byte
	if enabled {
		flag = 1
	}
	_, err := d.exchange(ctx, "startup info", CmdStartupInfo, []byte{flag})
	return err
}

// Recognize waits up to timeout for a recognition event. It does not send
// anything. A zero timeout uses the driver's default.
//
// The event payload is read as index(2, big-endian), group, score. Firmware
// that puts a status byte ahead of the index would have that byte folded into
// Index; read such frames raw through Codec().Receive and Frame.Payload.
//
// When the module sends a frame other than a recognition event (a prompt or
// an error report) the returned error wraps ErrUnexpectedCommand.
func (d *Driver) Recognize(ctx context.Context, timeout time.Duration) (Recognition, error) {
	return d.recognize(ctx, timeout, d.codec.Receive)
}

func (d *Driver) recognize(ctx context.Context, timeout time.Duration,
	receive func(context.Context, time.Duration) (Frame, error)) (Recognition, error) {
	const op = "recognize"

	if d.closed {
		return Recognition{}, &CommandError{Op: op, Command: CmdRecognition, Err: ErrDriverClosed}
	}
	if timeout == 0 {
		timeout = d.timeout
	}

	frame, err := receive(ctx, timeout)
	if err != nil {
		return Recognition{}, &CommandError{Op: op, Command: CmdRecognition, Err: err}
	}
	if got := frame.Command(); got != CmdRecognition {
		return Recognition{}, &CommandError{Op: op, Command: CmdRecognition, Got: got, Err: ErrUnexpectedCommand}
	}

	payload := frame.Payload()
	if len(payload) < 4 {
		return Recognition{}, &CommandError{
			Op:      op,
			Command: CmdRecognition,
			Err:     fmt.Errorf("%w: %d of 4 bytes", ErrShortPayload, len(payload)),
		}
	}
	return Recognition{
		Index: binary.BigEndian.Uint16(payload),
		Group: payload[2],
		Score: payload[3],
	}, nil
}

// Listen waits for recognition events until ctx is done, passing each one to
// fn. Bytes ahead of a frame head are discarded, so a stream that starts
// mid-frame or after a text banner falls back into step on the next frame.
// Timeouts and malformed or unrelated frames are skipped. Listen returns
// ctx.Err(), the first error from fn, or a transport failure.
func (d *Driver) Listen(ctx context.Context, timeout time.Duration, fn func(Recognition) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := d.recognize(ctx, timeout, d.codec.ReceiveNext)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if isFrameError(err) {
				if !IsTimeout(err) {
					d.log.Debug("listen skipped frame", zap.Error(err))
				}
				continue
			}
			return err
		}

		if err := fn(r); err != nil {
			return err
		}
	}
}

func isFrameError(err error) bool {
	for _, target := range []error{
		ErrIncompletePacket,
		ErrBadHeader,
		ErrMalformedLength,
		ErrBadTrailer,
		ErrUnexpectedCommand,
		ErrShortPayload,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Internal methods

func (d *Driver) query(ctx context.Context, op string, cmd Command, size int) ([]byte, error) {
	frame, err := d.exchange(ctx, op, cmd, nil)
	if err != nil {
		return nil, err
	}
	payload := frame.Payload()
	if len(payload) < size {
		return nil, &CommandError{
			Op:      op,
			Command: cmd,
			Err:     fmt.Errorf("%w: %d of %d bytes", ErrShortPayload, len(payload), size),
		}
	}
	return payload[:size], nil
}

func (d *Driver) exchange(ctx context.Context, op string, cmd Command, payload []byte) (Frame, error) {
	if d.closed {
		return nil, &CommandError{Op: op, Command: cmd, Err: ErrDriverClosed}
	}

	if err := d.codec.SendCommand(cmd, payload); err != nil {
		return nil, &CommandError{Op: op, Command: cmd, Err: err}
	}

	frame, err := d.codec.Receive(ctx, d.timeout)
	if err != nil {
		return nil, &CommandError{Op: op, Command: cmd, Err: err}
	}

	if got := frame.Command(); got != cmd {
		return nil, &CommandError{Op: op, Command: cmd, Got: got, Err: ErrCommandMismatch}
	}
	return frame, nil
}
