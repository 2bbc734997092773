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

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProductType(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	mock.SetResponse(cmdGetDeviceInfo, append([]byte{0x00}, "00141000"...))
	device := newTestDevice(t, mock)

	got, err := device.GetProductType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "00141000", got)

	// Request carries the product type subcommand
	assert.Equal(t, []byte{infoProductType}, mock.LastData(cmdGetDeviceInfo))
}

func TestGetSerialNumber(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	// Fixed-width field padded with NULs
	mock.SetResponse(cmdGetDeviceInfo, append([]byte{0x00}, "AB12CD34\x00\x00\x00"...))
	device := newTestDevice(t, mock)

	got, err := device.GetSerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", got)
	assert.Equal(t, []byte{infoSerialNumber}, mock.LastData(cmdGetDeviceInfo))
}

func TestGetVersion(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	mock.SetResponse(cmdGetVersion, []byte{0x00, 0x02, 0x05, 0x01, 0x01, 0x00, 0x02, 0x00})
	device := newTestDevice(t, mock)

	v, err := device.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(2), v.FirmwareMajor)
	assert.Equal(t, uint8(5), v.FirmwareMinor)
	assert.True(t, v.FirmwareDebug)
	assert.Equal(t, uint8(1), v.HardwareMajor)
	assert.Equal(t, uint8(0), v.HardwareMinor)
	assert.Equal(t, uint8(2), v.ProtocolMajor)
	assert.Equal(t, uint8(0), v.ProtocolMinor)

	assert.Equal(t, "fw 2.5-debug, hw 1.0, shdlc 2.0", v.String())
}

func TestGetVersionTruncatedResponse(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	mock.SetResponse(cmdGetVersion, []byte{0x00, 0x02, 0x05})
	device := newTestDevice(t, mock)

	_, err := device.GetVersion(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetSystemUpTime(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	mock.SetResponse(cmdGetSystemUpTime, []byte{0x00, 0x00, 0x01, 0x51, 0x80})
	device := newTestDevice(t, mock)

	uptime, err := device.GetSystemUpTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 86400*time.Second, uptime)
}

func TestDeviceReset(t *testing.T) {
	t.Parallel()
	mock := NewMockTransport()
	device := newTestDevice(t, mock)

	start := time.Now()
	require.NoError(t, device.DeviceReset(context.Background()))
	assert.Equal(t, 1, mock.GetCallCount(cmdDeviceReset))

	// Allows the device its restart window before the next command
	assert.GreaterOrEqual(t, time.Since(start), deviceResetDelay)
}

func TestVersionStringWithoutDebug(t *testing.T) {
	t.Parallel()
	v := Version{FirmwareMajor: 1, FirmwareMinor: 2, HardwareMajor: 3, HardwareMinor: 4, ProtocolMajor: 2}
	assert.Equal(t, "fw 1.2, hw 3.4, shdlc 2.0", v.String())
}
