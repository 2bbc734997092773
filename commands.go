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
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Common SHDLC command opcodes
const (
	cmdGetDeviceInfo    = 0xD0
	cmdGetVersion       = 0xD1
	cmdDeviceReset      = 0xD3
	cmdGetSystemUpTime  = 0xD4
	cmdEnterBootloader  = 0xF3
	cmdRebootToFirmware = 0xF4
	cmdWriteChunk       = 0xF5
	cmdVerifyImage      = 0xF6
)

// Get Device Information subcommands
const (
	infoProductType  = 0x00
	infoProductName  = 0x01
	infoSerialNumber = 0x03
)

// deviceResetDelay is how long the device needs to restart after a reset
// command before it accepts the next frame.
const deviceResetDelay = 200 * time.Millisecond

// Version holds the firmware, hardware and SHDLC protocol versions reported
// by the device.
type Version struct {
	FirmwareMajor uint8
	FirmwareMinor uint8
	FirmwareDebug bool
	HardwareMajor uint8
	HardwareMinor uint8
	ProtocolMajor uint8
	ProtocolMinor uint8
}

func (v Version) String() string {
	debug := ""
	if v.FirmwareDebug {
		debug = "-debug"
	}
	return fmt.Sprintf("fw %d.%d%s, hw %d.%d, shdlc %d.%d",
		v.FirmwareMajor, v.FirmwareMinor, debug,
		v.HardwareMajor, v.HardwareMinor,
		v.ProtocolMajor, v.ProtocolMinor)
}

// GetProductType returns the device's product type code as an ASCII string.
// Devices in bootloader mode report a distinct product type, which the
// firmware update controller uses as its mode probe.
func (d *Device) GetProductType(ctx context.Context) (string, error) {
	data, err := d.Execute(ctx, Command{
		ID:                cmdGetDeviceInfo,
		Data:              []byte{infoProductType},
		Name:              "GetProductType",
		MinResponseLength: 1,
		MaxResponseLength: 32,
	})
	if err != nil {
		return "", err
	}
	return trimASCII(data), nil
}

// GetSerialNumber returns the device serial number as an ASCII string
func (d *Device) GetSerialNumber(ctx context.Context) (string, error) {
	data, err := d.Execute(ctx, Command{
		ID:                cmdGetDeviceInfo,
		Data:              []byte{infoSerialNumber},
		Name:              "GetSerialNumber",
		MinResponseLength: 1,
		MaxResponseLength: 32,
	})
	if err != nil {
		return "", err
	}
	return trimASCII(data), nil
}

// GetVersion returns the firmware, hardware and protocol versions
func (d *Device) GetVersion(ctx context.Context) (*Version, error) {
	data, err := d.Execute(ctx, Command{
		ID:                cmdGetVersion,
		Name:              "GetVersion",
		MinResponseLength: 7,
		MaxResponseLength: 7,
	})
	if err != nil {
		return nil, err
	}
	return &Version{
		FirmwareMajor: data[0],
		FirmwareMinor: data[1],
		FirmwareDebug: data[2] != 0,
		HardwareMajor: data[3],
		HardwareMinor: data[4],
		ProtocolMajor: data[5],
		ProtocolMinor: data[6],
	}, nil
}

// GetSystemUpTime returns how long the device has been running since its
// last reset
func (d *Device) GetSystemUpTime(ctx context.Context) (time.Duration, error) {
	data, err := d.Execute(ctx, Command{
		ID:                cmdGetSystemUpTime,
		Name:              "GetSystemUpTime",
		MinResponseLength: 4,
		MaxResponseLength: 4,
	})
	if err != nil {
		return 0, err
	}
	seconds := binary.BigEndian.Uint32(data)
	return time.Duration(seconds) * time.Second, nil
}

// DeviceReset performs a soft reset. The device drops off the bus while it
// restarts, so the command allows for the restart time before returning.
func (d *Device) DeviceReset(ctx context.Context) error {
	_, err := d.Execute(ctx, Command{
		ID:                 cmdDeviceReset,
		Name:               "DeviceReset",
		MinResponseLength:  0,
		MaxResponseLength:  0,
		PostProcessingTime: deviceResetDelay,
	})
	return err
}

// trimASCII strips trailing NUL padding and whitespace from a fixed-width
// ASCII response field
func trimASCII(data []byte) string {
	return strings.TrimRight(string(data), "\x00 ")
}
