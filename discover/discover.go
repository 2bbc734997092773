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

// Package discover finds SHDLC devices attached to the host. It enumerates
// serial ports, filters out ignored paths and blocklisted USB adapters, and
// optionally probes each candidate with the identity command to confirm a
// live device and read its product type and serial number.
package discover

import (
	"context"
	"errors"
	"fmt"
	"time"

	shdlc "github.com/SensorBridgeProject/go-shdlc"
	"github.com/SensorBridgeProject/go-shdlc/transport/uart"
	"go.bug.st/serial/enumerator"
)

// DeviceInfo describes one discovered serial port and, when probed, the
// SHDLC device behind it.
type DeviceInfo struct {
	// Path is the serial port path (e.g. "/dev/ttyUSB0", "COM3")
	Path string
	// Name is the USB product string when the port is a USB adapter
	Name string
	// VIDPID is the USB vendor:product pair ("0403:6001"), empty for
	// non-USB ports
	VIDPID string
	// ProductType is the device's reported product type code; set only
	// when probing is enabled and the device answered
	ProductType string
	// SerialNumber is the device's reported serial number, probe-only
	SerialNumber string
	// Bootloader is true when the probed device is stuck in bootloader
	// mode and needs a firmware update with the emergency flag
	Bootloader bool
	// Probed is true when the port answered the identity command
	Probed bool
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	if !d.Probed {
		return fmt.Sprintf("candidate port %s", d.Path)
	}
	mode := "application"
	if d.Bootloader {
		mode = "bootloader"
	}
	return fmt.Sprintf("device at %s (product %s, serial %s, %s mode)",
		d.Path, d.ProductType, d.SerialNumber, mode)
}

// Options configures discovery behavior
type Options struct {
	// Blocklist holds USB VID:PID pairs to skip (e.g. ["1234:5678"])
	Blocklist []string
	// IgnorePaths holds device paths to skip (e.g. ["/dev/ttyS0"])
	IgnorePaths []string
	// ProbeTimeout bounds the identity exchange per port
	ProbeTimeout time.Duration
	// CacheTTL is how long probe results stay valid
	CacheTTL time.Duration
	// Probe opens each candidate port and sends the identity command.
	// Without it, discovery returns unverified candidate ports.
	Probe bool
	// EnableCache reuses recent results instead of re-probing. Probing
	// opens the port exclusively, so frequent discovery calls would
	// otherwise disturb an active session.
	EnableCache bool
}

// DefaultOptions returns sensible default discovery options
func DefaultOptions() *Options {
	return &Options{
		Probe:        true,
		ProbeTimeout: time.Second,
		Blocklist:    DefaultBlocklist(),
		EnableCache:  true,
		CacheTTL:     30 * time.Second,
	}
}

// ErrNoDevicesFound indicates no SHDLC devices were discovered
var ErrNoDevicesFound = errors.New("no SHDLC devices found")

// Indirections for tests; production code never overrides these.
var (
	listPorts = enumerator.GetDetailedPortsList
	probePort = probeSHDLC
)

// Devices discovers SHDLC devices with the given options. A nil opts selects
// DefaultOptions.
func Devices(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if opts.EnableCache {
		if devices, ok := getCached(opts.CacheTTL); ok {
			// Filters may differ from the call that populated the
			// cache; re-apply them, and fall through to a fresh scan
			// if they leave nothing
			if filtered := filterDevices(devices, opts); len(filtered) > 0 {
				return filtered, nil
			}
		}
	}

	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candidate := DeviceInfo{Path: port.Name}
		if port.IsUSB {
			candidate.Name = port.Product
			candidate.VIDPID = ParseVIDPID(port.VID + ":" + port.PID)
		}

		if IsPathIgnored(candidate.Path, opts.IgnorePaths) {
			continue
		}
		if candidate.VIDPID != "" && IsBlocked(candidate.VIDPID, opts.Blocklist) {
			continue
		}

		if opts.Probe {
			probed, err := probePort(ctx, candidate, opts.ProbeTimeout)
			if err != nil {
				// Not an SHDLC device, or a port in use; skip it
				shdlc.Debugf("discover: skipping %s: %v", candidate.Path, err)
				continue
			}
			candidate = probed
		}

		devices = append(devices, candidate)
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(devices)
		} else {
			// Drop stale entries so a disconnected device does not
			// linger until TTL expiry
			clearCache()
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// probeSHDLC opens the port and sends the identity command
func probeSHDLC(ctx context.Context, candidate DeviceInfo, timeout time.Duration) (DeviceInfo, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	transport, err := uart.New(candidate.Path)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to open %s: %w", candidate.Path, err)
	}
	defer func() { _ = transport.Close() }()

	device, err := shdlc.New(transport)
	if err != nil {
		return DeviceInfo{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	productType, err := device.GetProductType(probeCtx)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("no identity response from %s: %w", candidate.Path, err)
	}
	candidate.ProductType = productType
	candidate.Bootloader = shdlc.IsBootloaderProductType(productType)
	candidate.Probed = true
	shdlc.Debugf("discover: %s answered with product type %s", candidate.Path, productType)

	// Bootloaders only implement the transfer command set; the serial
	// number is not available there
	if !candidate.Bootloader {
		if serial, err := device.GetSerialNumber(probeCtx); err == nil {
			candidate.SerialNumber = serial
		}
	}

	return candidate, nil
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device
// list. Cached results bypass the per-port filtering in Devices, so the
// filters are re-applied here.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if device.VIDPID != "" && IsBlocked(device.VIDPID, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}
