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

package frame

import (
	"bytes"
	"errors"
	"testing"

	shdlc "github.com/SensorBridgeProject/go-shdlc"
)

func TestEncode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want []byte
		addr byte
		cmd  byte
	}{
		{
			name: "device info request",
			addr: 0x00, cmd: 0xD0,
			data: nil,
			want: []byte{0x7E, 0x00, 0xD0, 0x00, 0x2F, 0x7E},
		},
		{
			name: "single data byte",
			addr: 0x00, cmd: 0xD0,
			data: []byte{0x00},
			want: []byte{0x7E, 0x00, 0xD0, 0x01, 0x00, 0x2E, 0x7E},
		},
		{
			name: "delimiter byte in payload is stuffed",
			addr: 0x00, cmd: 0x80,
			data: []byte{0x7E},
			want: []byte{0x7E, 0x00, 0x80, 0x01, 0x7D, 0x5E, 0x00, 0x7E},
		},
		{
			name: "escape byte in payload is stuffed",
			addr: 0x00, cmd: 0x80,
			data: []byte{0x7D},
			want: []byte{0x7E, 0x00, 0x80, 0x01, 0x7D, 0x5D, 0x01, 0x7E},
		},
		{
			name: "xon and xoff are stuffed",
			addr: 0x00, cmd: 0x80,
			data: []byte{0x11, 0x13},
			want: []byte{0x7E, 0x00, 0x80, 0x02, 0x7D, 0x31, 0x7D, 0x33, 0x59, 0x7E},
		},
		{
			name: "control byte in checksum position is stuffed",
			addr: 0x00, cmd: 0x81, // chk = ^0x81 = 0x7E
			data: nil,
			want: []byte{0x7E, 0x00, 0x81, 0x00, 0x7D, 0x5E, 0x7E},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Encode(tt.addr, tt.cmd, tt.data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % 02X, want % 02X", got, tt.want)
			}
		})
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	t.Parallel()
	_, err := Encode(0, 0x80, make([]byte, MaxPayloadLength+1))
	if !errors.Is(err, shdlc.ErrPayloadTooLarge) {
		t.Errorf("Encode() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeMaxPayload(t *testing.T) {
	t.Parallel()
	raw, err := Encode(0, 0x80, make([]byte, MaxPayloadLength))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(f.Data) != MaxPayloadLength {
		t.Errorf("round-trip payload length = %d, want %d", len(f.Data), MaxPayloadLength)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		addr byte
		cmd  byte
	}{
		{name: "empty payload", addr: 0x00, cmd: 0xD0, data: nil},
		{name: "plain payload", addr: 0x05, cmd: 0x43, data: []byte{0x01, 0x02, 0x03}},
		{name: "all control bytes", addr: 0x00, cmd: 0x80, data: []byte{0x7E, 0x7D, 0x11, 0x13}},
		{name: "payload of delimiters", addr: 0x00, cmd: 0x80, data: bytes.Repeat([]byte{0x7E}, 32)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := Encode(tt.addr, tt.cmd, tt.data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			f, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if f.Address != tt.addr {
				t.Errorf("Address = 0x%02X, want 0x%02X", f.Address, tt.addr)
			}
			if f.Command != tt.cmd {
				t.Errorf("Command = 0x%02X, want 0x%02X", f.Command, tt.cmd)
			}
			wantData := tt.data
			if wantData == nil {
				wantData = []byte{}
			}
			if !bytes.Equal(f.Data, wantData) {
				t.Errorf("Data = % 02X, want % 02X", f.Data, wantData)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		want error
		name string
		raw  []byte
	}{
		{
			name: "too short",
			raw:  []byte{0x7E, 0x00, 0x7E},
			want: shdlc.ErrFraming,
		},
		{
			name: "missing leading delimiter",
			raw:  []byte{0x00, 0xD0, 0x00, 0x2F, 0x00, 0x7E},
			want: shdlc.ErrFraming,
		},
		{
			name: "missing trailing delimiter",
			raw:  []byte{0x7E, 0x00, 0xD0, 0x00, 0x2F, 0x00},
			want: shdlc.ErrFraming,
		},
		{
			name: "escape of non-control byte",
			raw:  []byte{0x7E, 0x00, 0x80, 0x01, 0x7D, 0x42, 0x00, 0x7E},
			want: shdlc.ErrUnstuffing,
		},
		{
			name: "escape at end of body",
			raw:  []byte{0x7E, 0x00, 0xD0, 0x00, 0x2F, 0x7D, 0x7E},
			want: shdlc.ErrUnstuffing,
		},
		{
			name: "corrupted command byte",
			raw:  []byte{0x7E, 0x00, 0xD1, 0x00, 0x2F, 0x7E},
			want: shdlc.ErrChecksumMismatch,
		},
		{
			name: "corrupted checksum byte",
			raw:  []byte{0x7E, 0x00, 0xD0, 0x00, 0x30, 0x7E},
			want: shdlc.ErrChecksumMismatch,
		},
		{
			name: "truncated payload with matching checksum",
			// declared length 2, one payload byte; checksum covers what
			// was received so only the length check can catch it
			raw: []byte{0x7E, 0x00, 0x80, 0x02, 0x01, chkByte(0x00, 0x80, 0x02, 0x01), 0x7E},
			want: shdlc.ErrLengthMismatch,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func chkByte(bs ...byte) byte {
	var sum byte
	for _, b := range bs {
		sum += b
	}
	return ^sum
}

// A single flipped bit anywhere in the body must be caught by the checksum.
func TestDecodeBitFlipDetection(t *testing.T) {
	t.Parallel()
	raw, err := Encode(0x00, 0x43, []byte{0x10, 0x20, 0x30})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	for i := 1; i < len(raw)-1; i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			if _, err := Decode(mutated); err == nil {
				t.Errorf("Decode() accepted frame with byte %d bit %d flipped", i, bit)
			}
		}
	}
}

func TestCodecCustomEscapes(t *testing.T) {
	t.Parallel()
	// Minimal escape set: only the delimiter and escape bytes themselves
	c := Codec{Escapes: []byte{Delimiter, Escape}}

	raw, err := c.Encode(0x00, 0x80, []byte{0x11, 0x13})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{0x7E, 0x00, 0x80, 0x02, 0x11, 0x13, 0x59, 0x7E}
	if !bytes.Equal(raw, want) {
		t.Errorf("Encode() = % 02X, want % 02X", raw, want)
	}

	f, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(f.Data, []byte{0x11, 0x13}) {
		t.Errorf("Data = % 02X, want 11 13", f.Data)
	}
}
