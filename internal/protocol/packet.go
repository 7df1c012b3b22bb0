// Package protocol implements the serial configuration protocol.
//
// Wire format, terminated by Delimiter:
//
//	[marker][checksum][cmd][param len][value len][param...][value...]
//
// The checksum is a CRC-8 over every byte after the checksum byte. A
// delimited buffer starting with the two magic bytes toggles configuration
// mode instead of carrying a packet.
package protocol

import (
	"fmt"

	"github.com/sigurn/crc8"
)

// Framing constants.
const (
	Marker     = 0x69
	Delimiter  = 0xFF
	MagicUpper = 0x72
	MagicLower = 0x19

	// BufferSize bounds one delimited frame, delimiter excluded.
	BufferSize = 256
	// ParamSize is the size of a parameter buffer, terminator included.
	ParamSize = 32
	// MaxValueLen is the longest value a parameter can hold.
	MaxValueLen = ParamSize - 1

	headerLen = 5

	crcPoly = 0x16
	crcInit = 0x45
)

// Command codes.
const (
	CmdReady  byte = 0x01
	CmdRead   byte = 0x02
	CmdWrite  byte = 0x03
	CmdCommit byte = 0x04
)

// Response codes.
const (
	RspOK         byte = 0xB0
	RspWriteOK    byte = 0xB1
	RspWriteError byte = 0xB2
	RspReadOK     byte = 0xB3
	RspReadError  byte = 0xB4
	RspError      byte = 0xBA
	RspRxError    byte = 0xBB
	RspCRCError   byte = 0xBC
)

// Packet is one decoded command or response.
type Packet struct {
	Cmd   byte
	Param []byte
	Value []byte
}

func (p Packet) String() string {
	return fmt.Sprintf("cmd=%#02x param=%q value_len=%d", p.Cmd, p.Param, len(p.Value))
}

var crcTable = crc8.MakeTable(crc8.Params{
	Poly: crcPoly,
	Init: crcInit,
	Name: "CRC-8/REFBOX",
})

// Checksum returns the CRC-8 of b. A result equal to Delimiter is folded to
// zero so the checksum byte can never terminate a frame early.
func Checksum(b []byte) byte {
	crc := crc8.Checksum(b, crcTable)
	if crc == Delimiter {
		return 0
	}
	return crc
}

// Encode builds the frame for p, delimiter excluded.
func Encode(p Packet) ([]byte, error) {
	if len(p.Param)+len(p.Value)+headerLen > BufferSize {
		return nil, fmt.Errorf("%w: %d payload bytes", ErrMalformed, len(p.Param)+len(p.Value))
	}

	buf := make([]byte, 0, headerLen+len(p.Param)+len(p.Value))
	buf = append(buf, Marker, 0, p.Cmd, byte(len(p.Param)), byte(len(p.Value)))
	buf = append(buf, p.Param...)
	buf = append(buf, p.Value...)

	for _, b := range buf[2:] {
		if b == Delimiter {
			return nil, fmt.Errorf("%w: body contains delimiter", ErrMalformed)
		}
	}

	buf[1] = Checksum(buf[2:])
	return buf, nil
}

// AppendFrame encodes p and appends it, delimiter included, to dst.
func AppendFrame(dst []byte, p Packet) ([]byte, error) {
	b, err := Encode(p)
	if err != nil {
		return dst, err
	}
	dst = append(dst, b...)
	return append(dst, Delimiter), nil
}

// Decode parses one frame, delimiter excluded. The checksum is verified
// before the lengths so a corrupted frame always reports ErrChecksum.
func Decode(frame []byte) (Packet, error) {
	if len(frame) < headerLen || frame[0] != Marker {
		return Packet{}, fmt.Errorf("%w: short frame or bad marker", ErrMalformed)
	}
	if got, want := frame[1], Checksum(frame[2:]); got != want {
		return Packet{}, fmt.Errorf("%w: got %#02x want %#02x", ErrChecksum, got, want)
	}

	plen, vlen := int(frame[3]), int(frame[4])
	if headerLen+plen+vlen != len(frame) {
		return Packet{}, fmt.Errorf("%w: lengths %d+%d do not match %d body bytes",
			ErrMalformed, plen, vlen, len(frame)-headerLen)
	}

	p := Packet{Cmd: frame[2]}
	if plen > 0 {
		p.Param = append([]byte(nil), frame[headerLen:headerLen+plen]...)
	}
	if vlen > 0 {
		p.Value = append([]byte(nil), frame[headerLen+plen:]...)
	}
	return p, nil
}

// IsMagic reports whether a delimited buffer is the configuration toggle.
func IsMagic(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == MagicUpper && buf[1] == MagicLower
}
