package simplevr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hipsterbrown/simplevr/transports"
)

const testTimeout = 100 * time.Millisecond

func newTestCodec(mock *transports.MockTransport) *Codec {
	return NewCodec(mock, CodecConfig{Clock: newStepClock(time.Millisecond)})
}

func TestCodec_SendDrainsStaleInput(t *testing.T) {
	mock := &transports.MockTransport{
		RxData: []byte{0x0D, 0x00, 0x01, 0x0A},
	}
	codec := newTestCodec(mock)

	require.NoError(t, codec.SendCommand(CmdSelectGroup, []byte{5}))

	assert.Equal(t, 1, mock.Flushes)
	assert.Equal(t, 4, mock.Discarded)
	assert.Equal(t, []byte{0xAA, 0x03, 0x03, 0x05, 0x0A}, mock.WriteData)
}

func TestCodec_SendVariants(t *testing.T) {
	mock := &transports.MockTransport{}
	codec := newTestCodec(mock)

	require.NoError(t, codec.SendPayload([]byte{0x42}))
	require.NoError(t, codec.SendCommand(CmdEnable, nil))
	require.NoError(t, codec.SendSubCommand(CmdStartupInfo, 0x01, []byte{0x02}))

	assert.Equal(t, []byte{
		0xAA, 0x02, 0x42, 0x0A,
		0xAA, 0x02, 0x01, 0x0A,
		0xAA, 0x04, 0x04, 0x01, 0x02, 0x0A,
	}, mock.WriteData)
	assert.Equal(t, 3, mock.Flushes)
}

func TestCodec_SendPayloadTooLarge(t *testing.T) {
	mock := &transports.MockTransport{}
	codec := newTestCodec(mock)

	err := codec.SendCommand(CmdThreshold, make([]byte, 300))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, mock.WriteData)
	assert.Zero(t, mock.Flushes)
}

func TestCodec_SendErrors(t *testing.T) {
	errBoom := errors.New("boom")

	codec := newTestCodec(&transports.MockTransport{WriteErr: errBoom})
	assert.ErrorIs(t, codec.SendCommand(CmdEnable, nil), errBoom)

	codec = newTestCodec(&transports.MockTransport{FlushErr: errBoom})
	assert.ErrorIs(t, codec.SendCommand(CmdEnable, nil), errBoom)
}

func TestCodec_ReceiveExactly(t *testing.T) {
	t.Run("all bytes arrive", func(t *testing.T) {
		mock := &transports.MockTransport{RxData: []byte{1, 2, 3, 4}}
		codec := newTestCodec(mock)

		buf := make([]byte, 3)
		n, err := codec.ReceiveExactly(context.Background(), buf, testTimeout)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []byte{1, 2, 3}, buf)
		assert.Equal(t, []byte{4}, mock.RxData)
	})

	t.Run("starved after two bytes", func(t *testing.T) {
		mock := &transports.MockTransport{RxData: []byte{1, 2}}
		codec := newTestCodec(mock)

		buf := make([]byte, 5)
		n, err := codec.ReceiveExactly(context.Background(), buf, testTimeout)
		require.NoError(t, err, "a timeout is reported through the count")
		assert.Equal(t, 2, n)
	})

	t.Run("zero bytes requested", func(t *testing.T) {
		codec := newTestCodec(&transports.MockTransport{})
		n, err := codec.ReceiveExactly(context.Background(), nil, testTimeout)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCodec_ReceiveExactly_WindowPerByte(t *testing.T) {
	// One byte every 6 polls; each poll advances the clock 10ms, so bytes
	// arrive 60ms apart. The whole read takes far longer than one window.
	data := []byte{0xAA, 0x07, 0x11, 0x01, 0x02, 0x03, 0x00, 0x01, 0x0A}
	calls := 0
	mock := &transports.MockTransport{
		ReadFunc: func(p []byte) (int, error) {
			calls++
			if calls%6 != 0 || len(data) == 0 {
				return 0, nil
			}
			p[0] = data[0]
			data = data[1:]
			return 1, nil
		},
	}
	clock := newStepClock(10 * time.Millisecond)
	codec := NewCodec(mock, CodecConfig{Clock: clock})

	start := clock.now
	frame, err := codec.Receive(context.Background(), testTimeout)
	require.NoError(t, err)
	assert.Equal(t, CmdVersion, frame.Command())
	assert.Greater(t, clock.now.Sub(start), testTimeout)
}

func TestCodec_ReceiveExactly_TransportError(t *testing.T) {
	errBoom := errors.New("boom")
	codec := newTestCodec(&transports.MockTransport{ReadErr: errBoom})

	n, err := codec.ReceiveExactly(context.Background(), make([]byte, 2), testTimeout)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, n)
}

func TestCodec_ReceiveExactly_ContextCanceled(t *testing.T) {
	codec := newTestCodec(&transports.MockTransport{RxData: []byte{1, 2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := codec.ReceiveExactly(ctx, make([]byte, 2), testTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestCodec_Receive(t *testing.T) {
	tests := []struct {
		name     string
		rx       []byte
		wantErr  error
		wantLeft int // bytes the codec must not have consumed
	}{
		{
			name: "version reply",
			rx:   []byte{0xAA, 0x07, 0x11, 0x01, 0x02, 0x03, 0x00, 0x01, 0x0A},
		},
		{
			name:     "bad header",
			rx:       []byte{0x55, 0x07, 0x11, 0x01, 0x02, 0x03, 0x00, 0x01, 0x0A},
			wantErr:  ErrBadHeader,
			wantLeft: 7,
		},
		{
			name:     "length below minimum",
			rx:       []byte{0xAA, 0x01, 0x0A, 0x0A},
			wantErr:  ErrMalformedLength,
			wantLeft: 2,
		},
		{
			name:    "second header byte never arrives",
			rx:      []byte{0xAA},
			wantErr: ErrIncompletePacket,
		},
		{
			name:    "nothing arrives",
			rx:      nil,
			wantErr: ErrIncompletePacket,
		},
		{
			name:    "body cut short",
			rx:      []byte{0xAA, 0x07, 0x11, 0x01},
			wantErr: ErrIncompletePacket,
		},
		{
			name:    "bad trailer",
			rx:      []byte{0xAA, 0x03, 0x03, 0x00, 0x0B},
			wantErr: ErrBadTrailer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &transports.MockTransport{RxData: tt.rx}
			codec := newTestCodec(mock)

			frame, err := codec.Receive(context.Background(), testTimeout)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, frame)
				assert.Len(t, mock.RxData, tt.wantLeft)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Frame(tt.rx), frame)
		})
	}
}

func TestCodec_ReceiveNext(t *testing.T) {
	event := []byte{0xAA, 0x06, 0x0D, 0x00, 0x01, 0x02, 0x40, 0x0A}

	tests := []struct {
		name    string
		rx      []byte
		want    []byte
		wantErr error
	}{
		{name: "aligned", rx: event, want: event},
		{name: "one junk byte", rx: append([]byte{0x01}, event...), want: event},
		{name: "text banner", rx: append([]byte("SimpleVR\r\n"), event...), want: event},
		{name: "only junk", rx: []byte{0x01, 0x02}, wantErr: ErrIncompletePacket},
		{name: "head without length", rx: []byte{0x01, 0xAA}, wantErr: ErrIncompletePacket},
		{name: "malformed after resync", rx: []byte{0x01, 0xAA, 0x01}, wantErr: ErrMalformedLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &transports.MockTransport{RxData: tt.rx}
			codec := newTestCodec(mock)

			frame, err := codec.ReceiveNext(context.Background(), testTimeout)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, frame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Frame(tt.want), frame)
			assert.Empty(t, mock.RxData)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x2A, 0x03, 0x50}
	data, err := EncodeCommand(CmdRecognition, payload)
	require.NoError(t, err)

	codec := newTestCodec(&transports.MockTransport{RxData: data})
	frame, err := codec.Receive(context.Background(), testTimeout)
	require.NoError(t, err)
	assert.Equal(t, CmdRecognition, frame.Command())
	assert.Equal(t, payload, frame.Payload())
}

func TestCodec_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mock := &transports.MockTransport{
		Replies: [][]byte{{0xAA, 0x03, 0x03, 0x00, 0x0A}},
	}
	codec := NewCodec(mock, CodecConfig{
		Clock:  newStepClock(time.Millisecond),
		Logger: zap.New(core),
	})

	require.NoError(t, codec.SendCommand(CmdSelectGroup, []byte{5}))
	_, err := codec.Receive(context.Background(), testTimeout)
	require.NoError(t, err)

	tx := logs.FilterMessage("tx frame").All()
	require.Len(t, tx, 1)
	assert.Equal(t, "AA 03 03 05 0A", tx[0].ContextMap()["frame"])

	rx := logs.FilterMessage("rx frame").All()
	require.Len(t, rx, 1)
	assert.Equal(t, "AA 03 03 00 0A", rx[0].ContextMap()["frame"])
}
