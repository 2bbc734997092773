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

package discover

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB devices that must never be probed. Probing
// writes bytes to the port, which confuses some devices badly enough to
// need a power cycle.
// Format: VID:PID in hexadecimal, case-insensitive.
func DefaultBlocklist() []string {
	return []string{
		// Add known problematic devices here as discovered
	}
}

// IsBlocked checks if a USB device is in the blocklist
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// ParseVIDPID normalizes a USB vendor:product descriptor to the canonical
// uppercase "VVVV:PPPP" form. Returns "" when the descriptor does not look
// like a VID:PID pair.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))
	parts := strings.Split(descriptor, ":")
	if len(parts) != 2 || !isHex(parts[0]) || !isHex(parts[1]) {
		return ""
	}
	return parts[0] + ":" + parts[1]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// IsPathIgnored checks if a device path should be skipped. Paths are
// compared cleaned and case-insensitively, so "COM3" matches "com3" and
// "/dev//ttyUSB0" matches "/dev/ttyUSB0".
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalized := normalizedPath(devicePath)
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if normalized == normalizedPath(ignore) || devicePath == ignore {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
