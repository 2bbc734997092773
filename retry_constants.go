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

package shdlc

import "time"

// Command execution retry constants control the dispatcher's behavior for
// transient wire-level failures.
const (
	// DefaultExecuteRetries is the number of attempts for one command exchange.
	DefaultExecuteRetries = 3
	// ExecuteInitialBackoff is the initial delay between exchange attempts.
	ExecuteInitialBackoff = 10 * time.Millisecond
	// ExecuteMaxBackoff is the maximum delay between exchange attempts.
	ExecuteMaxBackoff = 500 * time.Millisecond
	// MismatchRetryLimit caps retries for address/command mismatches. A stale
	// reply left in the device's UART buffer is drained by a single retry;
	// repeated mismatches indicate a wiring or addressing fault.
	MismatchRetryLimit = 1
)

// Default command timing. MaxResponseTime is per-command configuration; this
// is the fallback for commands that leave it zero.
const (
	// DefaultResponseTimeout is the default wait for a complete response frame.
	DefaultResponseTimeout = 500 * time.Millisecond
)

// Bootloader mode-switch polling constants. The device resets its UART when
// switching between firmware and bootloader, so the controller polls the
// identity command with backoff until the device re-announces itself.
const (
	// BootloaderEntryRetries is the number of identity polls after the
	// enter-bootloader command.
	BootloaderEntryRetries = 10
	// BootloaderEntryBackoff is the delay between identity polls during entry.
	BootloaderEntryBackoff = 200 * time.Millisecond

	// RebootPollRetries is the number of identity polls after the
	// reboot-to-firmware command.
	RebootPollRetries = 20
	// RebootPollBackoff is the delay between identity polls during reboot.
	RebootPollBackoff = 250 * time.Millisecond
)

// Firmware transfer constants.
const (
	// DefaultUpdateChunkSize is the maximum data bytes per write-chunk
	// command. Records larger than this are sliced.
	DefaultUpdateChunkSize = 128
	// chunkAddressSize is the big-endian flash address prefix in each
	// write-chunk payload.
	chunkAddressSize = 4
	// frameMaxPayload mirrors the wire codec's payload limit, which caps
	// chunk size plus address prefix.
	frameMaxPayload = 255
	// UpdateChunkResponseTimeout allows for the device's flash write time,
	// which is much longer than a normal command turnaround.
	UpdateChunkResponseTimeout = 2 * time.Second
	// UpdateVerifyResponseTimeout allows for a full image checksum pass on
	// the device.
	UpdateVerifyResponseTimeout = 5 * time.Second
)
