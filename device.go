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
	"errors"
	"fmt"
	"time"
)

// Command describes one typed SHDLC command: opcode, request payload and the
// expected response shape. The dispatcher treats these as opaque parameters;
// product drivers define their command set as Command values.
type Command struct {
	// Data is the request payload sent after the command id
	Data []byte
	// Name appears in error messages; the hex command id is used when empty
	Name string
	// MaxResponseTime bounds the wait for the response frame. Zero selects
	// the device's default timeout.
	MaxResponseTime time.Duration
	// PostProcessingTime is how long the device needs after responding
	// before it accepts the next command
	PostProcessingTime time.Duration
	// MinResponseLength and MaxResponseLength bound the expected response
	// data length (state byte excluded)
	MinResponseLength int
	MaxResponseLength int
	// ID is the command opcode
	ID byte
}

func (c Command) label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("command 0x%02X", c.ID)
}

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for command exchanges
	RetryConfig *RetryConfig
	// Timeout is the default response timeout for commands that do not set
	// MaxResponseTime
	Timeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: &RetryConfig{
			MaxAttempts:       DefaultExecuteRetries,
			InitialBackoff:    ExecuteInitialBackoff,
			MaxBackoff:        ExecuteMaxBackoff,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
			RetryTimeout:      10 * time.Second,
		},
		Timeout: DefaultResponseTimeout,
	}
}

// Device is the generic command dispatcher for one SHDLC slave: it executes
// typed commands over a Transport, retries transient wire failures, and
// translates device-reported state codes into typed errors.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization. SHDLC is a
// strict request/response protocol with one outstanding exchange per serial
// line; for concurrent access, wrap the Device with a mutex.
type Device struct {
	transport    Transport
	config       *DeviceConfig
	deviceErrors map[byte]string
	address      byte
}

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithAddress sets the slave address of the device (default 0)
func WithAddress(address byte) Option {
	return func(d *Device) error {
		d.address = address
		return nil
	}
}

// WithRetryConfig sets the retry configuration for command exchanges
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return errors.New("retry config must not be nil")
		}
		d.config.RetryConfig = config
		return nil
	}
}

// WithTimeout sets the default response timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithDeviceErrors registers product-specific device error descriptions
func WithDeviceErrors(errorTable map[byte]string) Option {
	return func(d *Device) error {
		d.RegisterDeviceErrors(errorTable)
		return nil
	}
}

// New creates a new SHDLC device on the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// RegisterDeviceErrors adds product-specific error code descriptions on top
// of the common SHDLC table. Later registrations override earlier ones.
func (d *Device) RegisterDeviceErrors(errorTable map[byte]string) {
	if d.deviceErrors == nil {
		d.deviceErrors = make(map[byte]string, len(errorTable))
	}
	for code, desc := range errorTable {
		d.deviceErrors[code] = desc
	}
}

func (d *Device) errorDescription(code byte) string {
	if desc, ok := d.deviceErrors[code]; ok {
		return desc
	}
	return deviceErrorDescription(code)
}

// Address returns the slave address this device is bound to
func (d *Device) Address() byte {
	return d.address
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// SetTimeout sets the default response timeout for commands
func (d *Device) SetTimeout(timeout time.Duration) error {
	d.config.Timeout = timeout
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// Execute sends one command and returns the response data with the state
// byte stripped. Transient wire-level failures (timeout, checksum, framing)
// are retried up to the configured bound; an address or command mismatch is
// retried once before becoming fatal. Device-reported errors surface as
// *DeviceError and are never retried, and a response whose data length falls
// outside the command's declared bounds fails with ErrMalformedResponse.
func (d *Device) Execute(ctx context.Context, cmd Command) ([]byte, error) {
	timeout := cmd.MaxResponseTime
	if timeout <= 0 {
		timeout = d.config.Timeout
	}

	var payload []byte
	mismatches := 0
	err := RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, sendErr := d.transport.SendFrame(execCtx, d.address, cmd.ID, cmd.Data)
		if sendErr != nil {
			if errors.Is(sendErr, ErrAddressMismatch) || errors.Is(sendErr, ErrCommandMismatch) {
				mismatches++
				if mismatches > MismatchRetryLimit {
					// Repeated mismatches are a wiring or addressing fault,
					// not a stale reply
					return NewTransportError("Execute", "", sendErr, ErrorTypePermanent)
				}
			}
			return sendErr
		}
		payload = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.label(), err)
	}

	data, err := d.checkResponse(cmd, payload)
	if err != nil {
		return nil, err
	}

	if cmd.PostProcessingTime > 0 {
		select {
		case <-time.After(cmd.PostProcessingTime):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", cmd.label(), ctx.Err())
		}
	}

	return data, nil
}

// checkResponse validates the state byte and the response shape
func (d *Device) checkResponse(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: %w: response carries no state byte", cmd.label(), ErrMalformedResponse)
	}

	// The low 7 bits of the state byte carry the error code; the top bit is
	// reserved for the device's execution flag
	if code := payload[0] & 0x7F; code != 0 {
		return nil, &DeviceError{
			Code:        code,
			Command:     cmd.label(),
			Description: d.errorDescription(code),
		}
	}

	data := payload[1:]
	if len(data) < cmd.MinResponseLength || len(data) > cmd.MaxResponseLength {
		return nil, fmt.Errorf("%s: %w: got %d data bytes, expected %d..%d",
			cmd.label(), ErrMalformedResponse, len(data), cmd.MinResponseLength, cmd.MaxResponseLength)
	}

	return data, nil
}
