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
	"time"

	"github.com/SensorBridgeProject/go-shdlc/internal/syncutil"
)

// discoveryCache holds the most recent discovery result. Probing opens each
// port exclusively, so callers that discover often (UIs refreshing a device
// list) would otherwise keep kicking active sessions off the bus.
type discoveryCache struct {
	timestamp time.Time
	devices   []DeviceInfo
	mu        syncutil.RWMutex
}

var cache discoveryCache

func getCached(ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if cache.devices == nil || time.Since(cache.timestamp) > ttl {
		return nil, false
	}

	devices := make([]DeviceInfo, len(cache.devices))
	copy(devices, cache.devices)
	return devices, true
}

func setCached(devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.devices = make([]DeviceInfo, len(devices))
	copy(cache.devices, devices)
	cache.timestamp = time.Now()
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.devices = nil
}

// ClearCache drops any cached discovery result, forcing the next Devices
// call to rescan
func ClearCache() {
	clearCache()
}
