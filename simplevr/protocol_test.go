package simplevr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		encode func() ([]byte, error)
		want   []byte
	}{
		{
			name:   "payload only",
			encode: func() ([]byte, error) { return EncodePayload([]byte{0x11, 0x22}) },
			want:   []byte{0xAA, 0x03, 0x11, 0x22, 0x0A},
		},
		{
			name:   "command without payload",
			encode: func() ([]byte, error) { return EncodeCommand(CmdVersion, nil) },
			want:   []byte{0xAA, 0x02, 0x11, 0x0A},
		},
		{
			name:   "command with payload",
			encode: func() ([]byte, error) { return EncodeCommand(CmdSelectGroup, []byte{5}) },
			want:   []byte{0xAA, 0x03, 0x03, 0x05, 0x0A},
		},
		{
			name:   "command with sub-command",
			encode: func() ([]byte, error) { return EncodeSubCommand(CmdStartupInfo, 0x01, []byte{0x7F}) },
			want:   []byte{0xAA, 0x04, 0x04, 0x01, 0x7F, 0x0A},
		},
		{
			name:   "sub-command without payload",
			encode: func() ([]byte, error) { return EncodeSubCommand(CmdReset, 0x00, nil) },
			want:   []byte{0xAA, 0x03, 0x00, 0x00, 0x0A},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_LengthByte(t *testing.T) {
	for fields := 0; fields <= 2; fields++ {
		for l := 0; l <= 250; l++ {
			payload := bytes.Repeat([]byte{0x5A}, l)

			var frame []byte
			var err error
			switch fields {
			case 0:
				frame, err = EncodePayload(payload)
			case 1:
				frame, err = EncodeCommand(CmdThreshold, payload)
			case 2:
				frame, err = EncodeSubCommand(CmdThreshold, 0x01, payload)
			}
			require.NoError(t, err)

			// LEN covers the leading fields, the payload and END.
			require.Equalf(t, byte(l+fields+1), frame[1], "fields=%d len=%d", fields, l)
			require.Lenf(t, frame, l+fields+3, "fields=%d len=%d", fields, l)
			require.Equal(t, FrameHead, frame[0])
			require.Equal(t, FrameEnd, frame[len(frame)-1])
		}
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := EncodePayload(make([]byte, MaxPayload(0)))
	assert.NoError(t, err)
	_, err = EncodePayload(make([]byte, MaxPayload(0)+1))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = EncodeSubCommand(CmdThreshold, 0, make([]byte, MaxPayload(2)))
	assert.NoError(t, err)
	_, err = EncodeSubCommand(CmdThreshold, 0, make([]byte, MaxPayload(2)+1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x00},
		{0x01, 0x02, 0x03, 0x00, 0x01},
		bytes.Repeat([]byte{0xAA, 0x0A}, 100),
	}

	for _, payload := range payloads {
		data, err := EncodeCommand(CmdVersion, payload)
		require.NoError(t, err)

		frame, err := ParseFrame(data)
		require.NoError(t, err)
		assert.Equal(t, CmdVersion, frame.Command())
		assert.Equal(t, len(payload), len(frame.Payload()))
		if len(payload) > 0 {
			assert.Equal(t, payload, frame.Payload())
		}
	}
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid", []byte{0xAA, 0x03, 0x03, 0x00, 0x0A}, nil},
		{"trailing bytes ignored", []byte{0xAA, 0x02, 0x01, 0x0A, 0xFF}, nil},
		{"too short", []byte{0xAA}, ErrIncompletePacket},
		{"bad header", []byte{0x55, 0x02, 0x01, 0x0A}, ErrBadHeader},
		{"bad header with valid tail", []byte{0x00, 0xAA, 0x02, 0x01, 0x0A}, ErrBadHeader},
		{"length zero", []byte{0xAA, 0x00, 0x0A}, ErrMalformedLength},
		{"length one", []byte{0xAA, 0x01, 0x0A}, ErrMalformedLength},
		{"truncated", []byte{0xAA, 0x07, 0x11, 0x01}, ErrIncompletePacket},
		{"bad trailer", []byte{0xAA, 0x03, 0x03, 0x00, 0x0B}, ErrBadTrailer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, frame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, frame.Len()+2, len(frame))
		})
	}
}

func TestFrame_Accessors(t *testing.T) {
	frame, err := ParseFrame([]byte{0xAA, 0x07, 0x11, 0x01, 0x02, 0x03, 0x00, 0x01, 0x0A})
	require.NoError(t, err)

	assert.Equal(t, 7, frame.Len())
	assert.Equal(t, CmdVersion, frame.Command())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00, 0x01}, frame.Payload())
	assert.Equal(t, "AA 07 11 01 02 03 00 01 0A", frame.String())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "version(0x11)", CmdVersion.String())
	assert.Equal(t, "recognition(0x0D)", CmdRecognition.String())
	assert.Equal(t, "unknown(0x42)", Command(0x42).String())
}
