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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SensorBridgeProject/go-shdlc/ihex"
)

// UpdateState identifies the phase a firmware update is in
type UpdateState int

const (
	// UpdateStateIdle means the update has not started yet
	UpdateStateIdle UpdateState = iota
	// UpdateStateEnteringBootloader means the controller is switching the
	// device into bootloader mode
	UpdateStateEnteringBootloader
	// UpdateStateTransferring means firmware chunks are being written
	UpdateStateTransferring
	// UpdateStateVerifying means the bootloader is checking the written image
	UpdateStateVerifying
	// UpdateStateRebooting means the device is restarting into the new firmware
	UpdateStateRebooting
	// UpdateStateComplete means the update finished and the device is back in
	// application mode
	UpdateStateComplete
	// UpdateStateFailed means the update aborted; the device may be stuck in
	// bootloader mode and need an emergency retry
	UpdateStateFailed
)

func (s UpdateState) String() string {
	switch s {
	case UpdateStateIdle:
		return "idle"
	case UpdateStateEnteringBootloader:
		return "entering bootloader"
	case UpdateStateTransferring:
		return "transferring"
	case UpdateStateVerifying:
		return "verifying"
	case UpdateStateRebooting:
		return "rebooting"
	case UpdateStateComplete:
		return "complete"
	case UpdateStateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StatusCallback receives state transitions and progress messages during an
// update
type StatusCallback func(state UpdateState, message string)

// ProgressCallback receives the transfer completion percentage (0–100)
type ProgressCallback func(percent float64)

// BootloaderEntryError indicates the device never showed up in bootloader
// mode after the entry command and probe window.
type BootloaderEntryError struct {
	Err error
}

func (e *BootloaderEntryError) Error() string {
	return fmt.Sprintf("failed to enter bootloader: %v", e.Err)
}

func (e *BootloaderEntryError) Unwrap() error { return e.Err }

// ChunkWriteError indicates a firmware chunk was rejected or lost. Offset is
// the absolute flash address of the failed chunk; data before it was written
// successfully.
type ChunkWriteError struct {
	Err    error
	Offset uint32
}

func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("failed to write chunk at 0x%08X: %v", e.Offset, e.Err)
}

func (e *ChunkWriteError) Unwrap() error { return e.Err }

// VerificationError indicates the bootloader rejected the transferred image
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("image verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// RebootError indicates the device did not come back in application mode
// after the final reboot. The image was transferred and verified; a plain
// power cycle may still recover the device.
type RebootError struct {
	Err error
}

func (e *RebootError) Error() string {
	return fmt.Sprintf("failed to reboot into new firmware: %v", e.Err)
}

func (e *RebootError) Unwrap() error { return e.Err }

// FirmwareUpdate drives a device through a complete firmware update:
// bootloader entry, chunked image transfer, verification and reboot. A
// controller is single-use; create a new one for each attempt.
type FirmwareUpdate struct {
	device        *Device
	image         *ihex.Image
	statusCb      StatusCallback
	progressCb    ProgressCallback
	chunkSize     int
	entryRetries  int
	entryBackoff  time.Duration
	rebootRetries int
	rebootBackoff time.Duration
	state         UpdateState
	lastOffset    uint32
}

// UpdateOption configures a FirmwareUpdate
type UpdateOption func(*FirmwareUpdate)

// WithStatusCallback registers a callback for state transitions
func WithStatusCallback(cb StatusCallback) UpdateOption {
	return func(u *FirmwareUpdate) {
		u.statusCb = cb
	}
}

// WithProgress registers a callback for transfer percentage updates
func WithProgress(cb ProgressCallback) UpdateOption {
	return func(u *FirmwareUpdate) {
		u.progressCb = cb
	}
}

// WithChunkSize overrides the per-frame firmware chunk size. Values above
// the frame payload limit minus the 4-byte address prefix are rejected by
// Execute.
func WithChunkSize(size int) UpdateOption {
	return func(u *FirmwareUpdate) {
		u.chunkSize = size
	}
}

// NewFirmwareUpdate creates an update controller for the given device and
// parsed firmware image
func NewFirmwareUpdate(device *Device, image *ihex.Image, opts ...UpdateOption) *FirmwareUpdate {
	u := &FirmwareUpdate{
		device:        device,
		image:         image,
		chunkSize:     DefaultUpdateChunkSize,
		entryRetries:  BootloaderEntryRetries,
		entryBackoff:  BootloaderEntryBackoff,
		rebootRetries: RebootPollRetries,
		rebootBackoff: RebootPollBackoff,
		state:         UpdateStateIdle,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// State returns the current update phase
func (u *FirmwareUpdate) State() UpdateState {
	return u.state
}

// LastOffset returns the flash address just past the last successfully
// written chunk. After a ChunkWriteError it tells how far the transfer got.
func (u *FirmwareUpdate) LastOffset() uint32 {
	return u.lastOffset
}

// Execute runs the full update. With emergency set, the bootloader entry
// command is skipped and the device is assumed to already be in bootloader
// mode, which recovers devices bricked by a previously interrupted update.
//
// On any error the controller moves to UpdateStateFailed and the device is
// left as-is; a failed transfer leaves it in bootloader mode.
func (u *FirmwareUpdate) Execute(ctx context.Context, emergency bool) error {
	if u.state != UpdateStateIdle {
		return fmt.Errorf("update already ran (state %v)", u.state)
	}
	maxChunk := frameMaxPayload - chunkAddressSize
	if u.chunkSize <= 0 || u.chunkSize > maxChunk {
		u.setState(UpdateStateFailed, "invalid chunk size")
		return fmt.Errorf("chunk size %d out of range [1, %d]", u.chunkSize, maxChunk)
	}

	if err := u.enterBootloader(ctx, emergency); err != nil {
		u.setState(UpdateStateFailed, err.Error())
		return err
	}
	if err := u.transfer(ctx); err != nil {
		u.setState(UpdateStateFailed, err.Error())
		return err
	}
	if err := u.verify(ctx); err != nil {
		u.setState(UpdateStateFailed, err.Error())
		return err
	}
	if err := u.reboot(ctx); err != nil {
		u.setState(UpdateStateFailed, err.Error())
		return err
	}

	u.setState(UpdateStateComplete, "firmware update complete")
	return nil
}

func (u *FirmwareUpdate) setState(state UpdateState, message string) {
	u.state = state
	if u.statusCb != nil {
		u.statusCb(state, message)
	}
}

func (u *FirmwareUpdate) enterBootloader(ctx context.Context, emergency bool) error {
	if emergency {
		u.setState(UpdateStateEnteringBootloader, "probing for bootloader (emergency mode)")
	} else {
		u.setState(UpdateStateEnteringBootloader, "switching device to bootloader")

		// The device reboots into the bootloader without acknowledging,
		// so a timeout here is the expected outcome
		_, err := u.device.Execute(ctx, Command{
			ID:              cmdEnterBootloader,
			Name:            "EnterBootloader",
			MaxResponseTime: DefaultResponseTimeout,
		})
		if err != nil && !errors.Is(err, ErrTimeout) {
			return &BootloaderEntryError{Err: err}
		}
	}

	if err := u.pollMode(ctx, true, u.entryRetries, u.entryBackoff); err != nil {
		return &BootloaderEntryError{Err: err}
	}

	Debugf("update: device in bootloader mode")
	return nil
}

func (u *FirmwareUpdate) transfer(ctx context.Context) error {
	u.setState(UpdateStateTransferring,
		fmt.Sprintf("transferring %d bytes", u.image.Size()))

	total := u.image.Size()
	sent := 0

	for _, rec := range u.image.DataRecords() {
		data := rec.Data
		addr := rec.Address
		for len(data) > 0 {
			n := u.chunkSize
			if n > len(data) {
				n = len(data)
			}
			if err := u.writeChunk(ctx, addr, data[:n]); err != nil {
				return &ChunkWriteError{Offset: addr, Err: err}
			}
			addr += uint32(n)
			data = data[n:]

			u.lastOffset = addr
			sent += n
			if u.progressCb != nil {
				u.progressCb(float64(sent) / float64(total) * 100)
			}
			if u.statusCb != nil {
				u.statusCb(UpdateStateTransferring,
					fmt.Sprintf("wrote %d/%d bytes", sent, total))
			}
		}
	}

	return nil
}

func (u *FirmwareUpdate) writeChunk(ctx context.Context, addr uint32, data []byte) error {
	payload := make([]byte, chunkAddressSize+len(data))
	binary.BigEndian.PutUint32(payload, addr)
	copy(payload[chunkAddressSize:], data)

	_, err := u.device.Execute(ctx, Command{
		ID:              cmdWriteChunk,
		Data:            payload,
		Name:            "WriteChunk",
		MaxResponseTime: UpdateChunkResponseTimeout,
	})
	return err
}

func (u *FirmwareUpdate) verify(ctx context.Context) error {
	u.setState(UpdateStateVerifying, "verifying image")

	// Flash checksum over the whole image; give the bootloader extra time
	_, err := u.device.Execute(ctx, Command{
		ID:              cmdVerifyImage,
		Name:            "VerifyImage",
		MaxResponseTime: UpdateVerifyResponseTimeout,
	})
	if err != nil {
		return &VerificationError{Err: err}
	}
	return nil
}

func (u *FirmwareUpdate) reboot(ctx context.Context) error {
	u.setState(UpdateStateRebooting, "rebooting into new firmware")

	// Like bootloader entry, the reboot command is not acknowledged
	_, err := u.device.Execute(ctx, Command{
		ID:              cmdRebootToFirmware,
		Name:            "RebootToFirmware",
		MaxResponseTime: DefaultResponseTimeout,
	})
	if err != nil && !errors.Is(err, ErrTimeout) {
		return &RebootError{Err: err}
	}

	if err := u.pollMode(ctx, false, u.rebootRetries, u.rebootBackoff); err != nil {
		return &RebootError{Err: err}
	}
	return nil
}

// pollMode probes the device's product type until it reports the wanted mode
// or the attempts run out. Probe failures are retried since the device is
// mid-reboot and drops frames.
func (u *FirmwareUpdate) pollMode(ctx context.Context, wantBootloader bool, attempts int, backoff time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		productType, err := u.device.GetProductType(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if IsBootloaderProductType(productType) == wantBootloader {
			return nil
		}
		lastErr = fmt.Errorf("device reports product type %q", productType)
	}

	mode := "application"
	if wantBootloader {
		mode = "bootloader"
	}
	return fmt.Errorf("device not in %s mode after %d probes: %w", mode, attempts, lastErr)
}

// IsBootloaderProductType reports whether a product type string identifies a
// device in bootloader mode. Bootloaders answer the identity command with
// the application's product type code with the top bit set.
func IsBootloaderProductType(productType string) bool {
	v, err := strconv.ParseUint(productType, 16, 32)
	if err != nil {
		return false
	}
	return v&0x80000000 != 0
}
