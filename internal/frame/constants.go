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

// SHDLC frame markers and control bytes
const (
	// Delimiter marks both the start and the end of every frame on the wire
	Delimiter = 0x7E
	// Escape introduces a stuffed byte inside the frame body
	Escape = 0x7D
	// EscapeXOR is XORed with a control byte when it is stuffed
	EscapeXOR = 0x20
)

// Frame size limits
const (
	// MaxPayloadLength is the maximum unstuffed payload size (length field is one byte)
	MaxPayloadLength = 255
	// MinFrameLength is the minimum raw frame length (delimiter + addr + cmd + len + chk + delimiter)
	MinFrameLength = 6
)

// DefaultEscapes is the set of control bytes that are byte-stuffed inside the
// frame body. 0x11/0x13 (XON/XOFF) are included for line disciplines that
// intercept software flow control bytes.
var DefaultEscapes = []byte{0x7E, 0x7D, 0x11, 0x13}
