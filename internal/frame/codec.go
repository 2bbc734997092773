// Copyright 2026 The SensorBridge Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package frame implements the SHDLC wire format: delimiter-framed byte
// sequences with byte-stuffing and an inverted-sum checksum.
//
// Wire layout: 0x7E [addr] [cmd] [len] [payload...] [chk] 0x7E, where every
// occurrence of a control byte between the delimiters is stuffed as
// 0x7D, (byte XOR 0x20). The checksum covers addr, cmd, len and payload,
// computed before stuffing.
package frame

import (
	"fmt"

	"github.com/SensorBridgeProject/go-shdlc"
)

// Frame is a decoded SHDLC frame: slave address, command id and the
// unstuffed payload bytes.
type Frame struct {
	Data    []byte
	Address byte
	Command byte
}

// Codec encodes and decodes SHDLC frames. Escapes is the set of control
// bytes that are stuffed inside the frame body; nil selects DefaultEscapes.
// The exact escape set varies between protocol revisions (some devices only
// reserve 0x7E/0x7D), so it is configurable rather than fixed.
type Codec struct {
	Escapes []byte
}

var defaultCodec = Codec{}

// Encode builds the on-wire byte sequence for a request frame using the
// default escape set.
func Encode(addr, cmd byte, data []byte) ([]byte, error) {
	return defaultCodec.Encode(addr, cmd, data)
}

// Decode parses a raw delimiter-to-delimiter byte sequence using the
// default escape set.
func Decode(raw []byte) (Frame, error) {
	return defaultCodec.Decode(raw)
}

func (c *Codec) escapes() []byte {
	if c.Escapes == nil {
		return DefaultEscapes
	}
	return c.Escapes
}

func (c *Codec) isControl(b byte) bool {
	for _, e := range c.escapes() {
		if b == e {
			return true
		}
	}
	return false
}

// stuff appends b to dst, escaping it if it is a control byte.
func (c *Codec) stuff(dst []byte, b byte) []byte {
	if c.isControl(b) {
		return append(dst, Escape, b^EscapeXOR)
	}
	return append(dst, b)
}

// Encode builds the on-wire byte sequence for a frame. The checksum is
// computed over the unstuffed addr/cmd/len/payload bytes; stuffing is then
// applied to everything between the delimiters.
func (c *Codec) Encode(addr, cmd byte, data []byte) ([]byte, error) {
	if len(data) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: payload is %d bytes, maximum is %d",
			shdlc.ErrPayloadTooLarge, len(data), MaxPayloadLength)
	}

	chk := Checksum(addr, cmd, byte(len(data)), data)

	// Worst case every body byte is stuffed
	buf := make([]byte, 0, 2*(len(data)+4)+2)
	buf = append(buf, Delimiter)
	buf = c.stuff(buf, addr)
	buf = c.stuff(buf, cmd)
	buf = c.stuff(buf, byte(len(data)))
	for _, b := range data {
		buf = c.stuff(buf, b)
	}
	buf = c.stuff(buf, chk)
	buf = append(buf, Delimiter)

	return buf, nil
}

// Decode parses a raw byte sequence back into a Frame, validating the
// delimiters, the byte-stuffing, the checksum and the declared length.
func (c *Codec) Decode(raw []byte) (Frame, error) {
	if len(raw) < MinFrameLength {
		return Frame{}, fmt.Errorf("%w: frame too short (%d bytes)", shdlc.ErrFraming, len(raw))
	}
	if raw[0] != Delimiter || raw[len(raw)-1] != Delimiter {
		return Frame{}, fmt.Errorf("%w: missing frame delimiters", shdlc.ErrFraming)
	}

	body, err := c.unstuff(raw[1 : len(raw)-1])
	if err != nil {
		return Frame{}, err
	}
	if len(body) < 4 {
		return Frame{}, fmt.Errorf("%w: frame body too short (%d bytes)", shdlc.ErrFraming, len(body))
	}

	addr := body[0]
	cmd := body[1]
	length := body[2]
	payload := body[3 : len(body)-1]
	chk := body[len(body)-1]

	if want := Checksum(addr, cmd, length, payload); want != chk {
		return Frame{}, fmt.Errorf("%w: calculated 0x%02X, received 0x%02X",
			shdlc.ErrChecksumMismatch, want, chk)
	}
	if int(length) != len(payload) {
		return Frame{}, fmt.Errorf("%w: declared %d bytes, received %d",
			shdlc.ErrLengthMismatch, length, len(payload))
	}

	return Frame{Address: addr, Command: cmd, Data: payload}, nil
}

// unstuff reverses byte-stuffing with a forward scan and an escape-pending
// flag. Input excludes the frame delimiters.
func (c *Codec) unstuff(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in))
	pending := false
	for _, b := range in {
		switch {
		case pending:
			orig := b ^ EscapeXOR
			if !c.isControl(orig) {
				return nil, fmt.Errorf("%w: invalid escape sequence 0x%02X 0x%02X",
					shdlc.ErrUnstuffing, Escape, b)
			}
			out = append(out, orig)
			pending = false
		case b == Escape:
			pending = true
		case b == Delimiter:
			return nil, fmt.Errorf("%w: unescaped delimiter inside frame body", shdlc.ErrFraming)
		default:
			out = append(out, b)
		}
	}
	if pending {
		return nil, fmt.Errorf("%w: escape byte at end of frame body", shdlc.ErrUnstuffing)
	}
	return out, nil
}
