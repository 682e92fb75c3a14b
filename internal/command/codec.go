// SPDX-License-Identifier: MIT
package command

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ledJSON struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func led(c RGB) ledJSON { return ledJSON{R: c.R, G: c.G, B: c.B} }

type servoJSON struct {
	Servo string `json:"servo"`
	Angle int    `json:"angle"`
}

type rgbJSON struct {
	LED ledJSON `json:"led"`
}

type flickerJSON struct {
	LED     ledJSON `json:"led"`
	Flicker int64   `json:"flicker"`
}

type fadeJSON struct {
	LED  ledJSON `json:"led"`
	From ledJSON `json:"from"`
	Fade int64   `json:"fade"`
}

// MarshalJSON encodes {"led":{"r":..,"g":..,"b":..}}.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(rgbJSON{LED: led(c)})
}

// MarshalJSON encodes the colour plus "flicker" in milliseconds.
func (f Flicker) MarshalJSON() ([]byte, error) {
	return json.Marshal(flickerJSON{LED: led(f.Color), Flicker: f.Duration.Milliseconds()})
}

// MarshalJSON encodes the target colour as "led" plus "from" and "fade" in
// milliseconds.
func (f Fade) MarshalJSON() ([]byte, error) {
	return json.Marshal(fadeJSON{LED: led(f.To), From: led(f.From), Fade: f.Duration.Milliseconds()})
}

// MarshalJSON encodes {"servo":"base"|"top","angle":n}.
func (s Servo) MarshalJSON() ([]byte, error) {
	return json.Marshal(servoJSON{Servo: s.Axis.String(), Angle: s.Degrees()})
}

// Messages encodes each command of the frame as its own JSON text message,
// the shape the fixture firmware parses.
func (f Frame) Messages() ([][]byte, error) {
	cmds := f.Commands()
	out := make([][]byte, 0, len(cmds))
	for _, c := range cmds {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T: %w", c, err)
		}
		out = append(out, b)
	}
	return out, nil
}

/*
Binary frame packet (BigEndian), used by the UDP link.

+-----------------+--------+------+---------------------------------------+
| Field           | Type   | Size | Description                           |
|-----------------|--------|------|---------------------------------------|
| Sequence Number | uint32 | 4    | Monotonically increasing              |
| Timestamp       | int64  | 8    | Nanoseconds since epoch               |
| Base            | uint16 | 2    | Base angle, hundredths of a degree    |
| Top             | uint16 | 2    | Top angle, hundredths of a degree     |
| Colour Kind     | uint8  | 1    | 0 none, 1 rgb, 2 flicker, 3 fade      |
| From            | [3]u8  | 3    | Fade start colour, else zero          |
| Colour          | [3]u8  | 3    | Target colour                         |
| Duration        | uint32 | 4    | Effect length in milliseconds         |
+-----------------+--------+------+---------------------------------------+
*/

// PacketSize is the length of an encoded binary frame.
const PacketSize = 27

const (
	kindNone uint8 = iota
	kindRGB
	kindFlicker
	kindFade
)

// ErrShortPacket is returned when decoding fewer than PacketSize bytes.
var ErrShortPacket = errors.New("short frame packet")

// AppendBinary appends the binary encoding of f to dst.
func AppendBinary(dst []byte, seq uint32, ts time.Time, f Frame) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, centiDegrees(f.Base.Angle))
	dst = binary.BigEndian.AppendUint16(dst, centiDegrees(f.Top.Angle))

	var (
		kind     = kindNone
		from, to RGB
		dur      time.Duration
	)
	switch c := f.Color.(type) {
	case RGB:
		kind, to = kindRGB, c
	case Flicker:
		kind, to, dur = kindFlicker, c.Color, c.Duration
	case Fade:
		kind, from, to, dur = kindFade, c.From, c.To, c.Duration
	}
	dst = append(dst, kind, from.R, from.G, from.B, to.R, to.G, to.B)
	return binary.BigEndian.AppendUint32(dst, uint32(max(0, dur.Milliseconds())))
}

// DecodeBinary parses a packet written by AppendBinary.
func DecodeBinary(p []byte) (seq uint32, ts time.Time, f Frame, err error) {
	if len(p) < PacketSize {
		return 0, time.Time{}, Frame{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(p))
	}
	seq = binary.BigEndian.Uint32(p[0:])
	ts = time.Unix(0, int64(binary.BigEndian.Uint64(p[4:])))
	base := float64(binary.BigEndian.Uint16(p[12:])) / 100
	top := float64(binary.BigEndian.Uint16(p[14:])) / 100
	from := RGB{p[17], p[18], p[19]}
	to := RGB{p[20], p[21], p[22]}
	dur := time.Duration(binary.BigEndian.Uint32(p[23:])) * time.Millisecond

	var c Color
	switch p[16] {
	case kindNone:
	case kindRGB:
		c = to
	case kindFlicker:
		c = Flicker{Color: to, Duration: dur}
	case kindFade:
		c = Fade{From: from, To: to, Duration: dur}
	default:
		return 0, time.Time{}, Frame{}, fmt.Errorf("unknown colour kind %d", p[16])
	}
	return seq, ts, NewFrame(base, top, c), nil
}

func centiDegrees(a float64) uint16 {
	return uint16(min(max(a*100+0.5, 0), 65535))
}
