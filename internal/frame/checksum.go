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

// Checksum computes the SHDLC frame checksum: the sum of the address,
// command, length and payload bytes, modulo 256, bit-inverted.
// Equivalent to 0xFF - (sum % 256). Computed over unstuffed bytes.
func Checksum(addr, cmd, length byte, data []byte) byte {
	sum := addr + cmd + length
	for _, b := range data {
		sum += b
	}
	return ^sum
}
