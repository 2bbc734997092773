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
	"testing"
)

// Malformed input from a noisy serial line must never panic the decoder.
//
// Run with: go test -fuzz=FuzzDecode -fuzztime=30s ./internal/frame/

// FuzzDecode feeds arbitrary byte sequences to the decoder and checks it
// either returns a well-formed frame or an error, never panics.
func FuzzDecode(f *testing.F) {
	// Valid frames
	f.Add([]byte{0x7E, 0x00, 0xD0, 0x00, 0x2F, 0x7E})
	f.Add([]byte{0x7E, 0x00, 0xD0, 0x01, 0x00, 0x2E, 0x7E})
	f.Add([]byte{0x7E, 0x00, 0x80, 0x01, 0x7D, 0x5E, 0x00, 0x7E})

	// Edge cases
	f.Add([]byte{})
	f.Add([]byte{0x7E})
	f.Add([]byte{0x7E, 0x7E})
	f.Add([]byte{0x7E, 0x7D, 0x7E})
	f.Add([]byte{0x7E, 0x00, 0xD0, 0x00, 0x2F, 0x7D})
	f.Add(bytes.Repeat([]byte{0x7D}, 64))
	f.Add(bytes.Repeat([]byte{0x7E}, 64))

	f.Fuzz(func(t *testing.T, raw []byte) {
		f, err := Decode(raw)
		if err != nil {
			return
		}
		if len(f.Data) > MaxPayloadLength {
			t.Errorf("Decode() accepted oversized payload: %d bytes", len(f.Data))
		}
	})
}

// FuzzRoundTrip checks that anything the encoder produces decodes back to
// the same frame.
func FuzzRoundTrip(f *testing.F) {
	f.Add(byte(0x00), byte(0xD0), []byte{})
	f.Add(byte(0x05), byte(0x43), []byte{0x01, 0x02, 0x03})
	f.Add(byte(0x00), byte(0x80), []byte{0x7E, 0x7D, 0x11, 0x13})

	f.Fuzz(func(t *testing.T, addr, cmd byte, data []byte) {
		raw, err := Encode(addr, cmd, data)
		if err != nil {
			if len(data) > MaxPayloadLength {
				return
			}
			t.Fatalf("Encode() error = %v", err)
		}

		decoded, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(Encode()) error = %v", err)
		}
		if decoded.Address != addr || decoded.Command != cmd {
			t.Errorf("round-trip header = (0x%02X, 0x%02X), want (0x%02X, 0x%02X)",
				decoded.Address, decoded.Command, addr, cmd)
		}
		if !bytes.Equal(decoded.Data, data) {
			t.Errorf("round-trip data = % 02X, want % 02X", decoded.Data, data)
		}
	})
}
