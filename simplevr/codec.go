package simplevr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// CodecConfig holds optional collaborators for a Codec.
type CodecConfig struct {
	// Clock measures receive windows. Default is SystemClock.
	Clock Clock

	// Logger receives a Debug trace of every frame. Default is a no-op logger.
	Logger *zap.Logger
}

// Codec frames outgoing commands and reads framed replies from a Transport.
// A Codec owns one receive buffer and is not safe for concurrent use.
type Codec struct {
	transport Transport
	clock     Clock
	log       *zap.Logger

	rx  [frameOverhead + maxFrameLen]byte
	one [1]byte
}

// NewCodec creates a codec on top of the given transport.
func NewCodec(t Transport, cfg CodecConfig) *Codec {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Codec{
		transport: t,
		clock:     cfg.Clock,
		log:       cfg.Logger,
	}
}

// SendPayload sends a frame carrying only payload bytes.
func (c *Codec) SendPayload(payload []byte) error {
	frame, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// SendCommand sends a frame for cmd followed by payload bytes.
func (c *Codec) SendCommand(cmd Command, payload []byte) error {
	frame, err := EncodeCommand(cmd, payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// SendSubCommand sends a frame for cmd and sub followed by payload bytes.
func (c *Codec) SendSubCommand(cmd Command, sub byte, payload []byte) error {
	frame, err := EncodeSubCommand(cmd, sub, payload)
	if err != nil {
		return err
	}
	return c.send(frame)
}

func (c *Codec) send(frame []byte) error {
	// Stale input would otherwise be taken for the reply.
	if err := c.transport.Flush(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	n, err := c.transport.Write(frame)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(frame))
	}

	c.log.Debug("tx frame", zap.String("frame", HexDump(frame)))
	return nil
}

// Receive reads one frame. The header and the remainder of the frame each get
// their own timeout window. The returned Frame is only valid until the next
// call to Receive.
func (c *Codec) Receive(ctx context.Context, timeout time.Duration) (Frame, error) {
	header := c.rx[:frameOverhead]
	n, err := c.ReceiveExactly(ctx, header, timeout)
	if err != nil {
		return nil, err
	}
	if n != len(header) {
		return nil, c.rejected(n, fmt.Errorf("%w: header: read %d of %d bytes", ErrIncompletePacket, n, len(header)))
	}
	if header[0] != FrameHead {
		return nil, c.rejected(n, fmt.Errorf("%w: 0x%02X", ErrBadHeader, header[0]))
	}
	return c.receiveBody(ctx, timeout)
}

// ReceiveNext reads one frame like Receive, but first discards bytes up to the
// next FrameHead. Use it for unsolicited traffic where the stream may not
// start on a frame boundary, such as the text banner sent at power-up.
func (c *Codec) ReceiveNext(ctx context.Context, timeout time.Duration) (Frame, error) {
	skipped := 0
	for {
		n, err := c.ReceiveExactly(ctx, c.rx[:1], timeout)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: header: read 0 of %d bytes", ErrIncompletePacket, frameOverhead)
		}
		if c.rx[0] == FrameHead {
			break
		}
		skipped++
	}
	if skipped > 0 {
		c.log.Debug("rx resync", zap.Int("skipped", skipped))
	}

	n, err := c.ReceiveExactly(ctx, c.rx[1:frameOverhead], timeout)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, c.rejected(1, fmt.Errorf("%w: header: read 1 of %d bytes", ErrIncompletePacket, frameOverhead))
	}
	return c.receiveBody(ctx, timeout)
}

// receiveBody finishes a frame whose header is already in rx.
func (c *Codec) receiveBody(ctx context.Context, timeout time.Duration) (Frame, error) {
	length := int(c.rx[1])
	if length < minFrameLen {
		return nil, c.rejected(frameOverhead, fmt.Errorf("%w: %d", ErrMalformedLength, length))
	}

	body := c.rx[frameOverhead : frameOverhead+length]
	m, err := c.ReceiveExactly(ctx, body, timeout)
	if err != nil {
		return nil, err
	}
	if m != length {
		return nil, c.rejected(frameOverhead+m, fmt.Errorf("%w: body: read %d of %d bytes", ErrIncompletePacket, m, length))
	}
	if last := body[length-1]; last != FrameEnd {
		return nil, c.rejected(frameOverhead+m, fmt.Errorf("%w: 0x%02X", ErrBadTrailer, last))
	}

	frame := Frame(c.rx[:frameOverhead+length])
	c.log.Debug("rx frame", zap.String("frame", HexDump(frame)))
	return frame, nil
}

func (c *Codec) rejected(n int, err error) error {
	c.log.Debug("rx rejected", zap.String("data", HexDump(c.rx[:n])), zap.Error(err))
	return err
}

// ReceiveExactly fills buf one byte at a time. Each byte gets a fresh timeout
// window; when a window elapses without data the bytes read so far are
// counted and returned with a nil error. The caller compares the count with
// len(buf) to detect a timeout. An error is returned only for transport
// failures or when ctx is done.
func (c *Codec) ReceiveExactly(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	for i := range buf {
		ok, err := c.pollByte(ctx, &buf[i], timeout)
		if err != nil {
			return i, err
		}
		if !ok {
			return i, nil
		}
	}
	return len(buf), nil
}

func (c *Codec) pollByte(ctx context.Context, dst *byte, timeout time.Duration) (bool, error) {
	start := c.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		n, err := c.transport.Read(c.one[:])
		if n > 0 {
			*dst = c.one[0]
			return true, nil
		}
		if err != nil && !errors.Is(err, io.EOF) && !os.IsTimeout(err) {
			return false, fmt.Errorf("read failed: %w", err)
		}

		if c.clock.Now().Sub(start) >= timeout {
			return false, nil
		}
	}
}
