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

import "testing"

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		addr byte
		cmd  byte
		len  byte
		want byte
	}{
		{
			name: "all zero header",
			addr: 0x00, cmd: 0x00, len: 0x00,
			data: nil,
			want: 0xFF,
		},
		{
			name: "device info request",
			addr: 0x00, cmd: 0xD0, len: 0x00,
			data: nil,
			want: 0x2F, // 0xFF - 0xD0
		},
		{
			name: "with payload",
			addr: 0x00, cmd: 0xD0, len: 0x01,
			data: []byte{0x00},
			want: 0x2E,
		},
		{
			name: "overflow wraps modulo 256",
			addr: 0xFF, cmd: 0xFF, len: 0x02,
			data: []byte{0xFF, 0xFF},
			want: ^byte((0xFF + 0xFF + 0x02 + 0xFF + 0xFF) % 256),
		},
		{
			name: "sum of 0xFF inverts to zero",
			addr: 0x00, cmd: 0xFE, len: 0x01,
			data: []byte{0x00},
			want: 0x00,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.addr, tt.cmd, tt.len, tt.data); got != tt.want {
				t.Errorf("Checksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}
