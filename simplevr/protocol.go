// Package simplevr provides a Go library for driving the SimpleVR
// UART voice-recognition module.
package simplevr

import (
	"fmt"
	"time"
)

// DefaultTimeout is the receive window used when none is configured.
const DefaultTimeout = 1000 * time.Millisecond

// Frame sentinel bytes.
const (
	FrameHead byte = 0xAA
	FrameEnd  byte = 0x0A
)

// Command identifies the operation carried by a frame.
type Command byte

// Command codes per the module protocol.
const (
	CmdReset       Command = 0x00
	CmdEnable      Command = 0x01
	CmdDisable     Command = 0x02
	CmdSelectGroup Command = 0x03
	CmdStartupInfo Command = 0x04
	CmdThreshold   Command = 0x05
	CmdSystemState Command = 0x10
	CmdVersion     Command = 0x11
	CmdRecognition Command = 0x0D
	CmdPrompt      Command = 0x0A
	CmdError       Command = 0xFF
)

var commandNames = map[Command]string{
	CmdReset:       "reset",
	CmdEnable:      "enable",
	CmdDisable:     "disable",
	CmdSelectGroup: "select group",
	CmdStartupInfo: "startup info",
	CmdThreshold:   "threshold",
	CmdSystemState: "system state",
	CmdVersion:     "version",
	CmdRecognition: "recognition",
	CmdPrompt:      "prompt",
	CmdError:       "error",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return fmt.Sprintf("%s(0x%02X)", name, byte(c))
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}

// Frame layout: HEAD, LEN, LEN-1 bytes of [cmd][subcmd?][payload...], END.
// LEN counts everything after itself, the END byte included.
const (
	frameOverhead = 2   // HEAD + LEN
	minFrameLen   = 2   // command + END
	maxFrameLen   = 255 // LEN is a single byte
)

// MaxPayload returns the largest payload that fits in one frame next to the
// given number of leading command fields (0, 1 or 2).
func MaxPayload(fields int) int {
	return maxFrameLen - 1 - fields
}

// Frame is one complete wire frame, HEAD through END.
// Frames returned by Codec.Receive alias the codec's scratch buffer and are
// only valid until the next receive.
type Frame []byte

// Len returns the declared LEN byte.
func (f Frame) Len() int {
	return int(f[1])
}

// Command returns the command byte.
func (f Frame) Command() Command {
	return Command(f[2])
}

// Payload returns the bytes between the command byte and END.
func (f Frame) Payload() []byte {
	return f[3 : len(f)-1]
}

func (f Frame) String() string {
	return HexDump(f)
}

// EncodePayload builds a frame carrying only payload bytes.
func EncodePayload(payload []byte) ([]byte, error) {
	return encode(nil, payload)
}

// EncodeCommand builds a frame for a command followed by payload bytes.
func EncodeCommand(cmd Command, payload []byte) ([]byte, error) {
	return encode([]byte{byte(cmd)}, payload)
}

// EncodeSubCommand builds a frame for a command, a sub-command and payload bytes.
func EncodeSubCommand(cmd Command, sub byte, payload []byte) ([]byte, error) {
	return encode([]byte{byte(cmd), sub}, payload)
}

func encode(fields, payload []byte) ([]byte, error) {
	if limit := MaxPayload(len(fields)); len(payload) > limit {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidArgument, len(payload), limit)
	}
	length := len(fields) + len(payload) + 1

	buf := make([]byte, 0, frameOverhead+length)
	buf = append(buf, FrameHead, byte(length))
	buf = append(buf, fields...)
	buf = append(buf, payload...)
	buf = append(buf, FrameEnd)
	return buf, nil
}

// ParseFrame validates a complete buffer holding exactly one frame.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < frameOverhead {
		return nil, fmt.Errorf("%w: have %d bytes", ErrIncompletePacket, len(data))
	}
	if data[0] != FrameHead {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadHeader, data[0])
	}
	length := int(data[1])
	if length < minFrameLen {
		return nil, fmt.Errorf("%w: %d", ErrMalformedLength, length)
	}
	total := frameOverhead + length
	if len(data) < total {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrIncompletePacket, total, len(data))
	}
	if data[total-1] != FrameEnd {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadTrailer, data[total-1])
	}
	return Frame(data[:total]), nil
}
